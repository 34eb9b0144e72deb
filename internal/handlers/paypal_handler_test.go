package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/middleware"
	"github.com/artgrid/backend/internal/models"
	"github.com/artgrid/backend/internal/services"
	jwtpkg "github.com/artgrid/backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingGateway struct {
	createCalls   atomic.Int64
	captureCalls  atomic.Int64
	getCalls      atomic.Int64
	captureStatus string
	captureErr    error
	orderStatus   string
}

func (g *recordingGateway) CreateOrder(ctx context.Context, in services.CreateOrderInput) (*services.CreateOrderResult, error) {
	g.createCalls.Add(1)
	return &services.CreateOrderResult{OrderID: "ORDER-1", ApprovalLink: "https://gateway.test/approve"}, nil
}

func (g *recordingGateway) CaptureOrder(ctx context.Context, orderToken string) (*services.CaptureResult, error) {
	g.captureCalls.Add(1)
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	status := g.captureStatus
	if status == "" {
		status = "COMPLETED"
	}
	return &services.CaptureResult{Status: status}, nil
}

func (g *recordingGateway) GetOrder(ctx context.Context, orderID string) (*services.OrderStatusResult, error) {
	g.getCalls.Add(1)
	status := g.orderStatus
	if status == "" {
		status = "COMPLETED"
	}
	return &services.OrderStatusResult{Status: status}, nil
}

type captureFixture struct {
	db      *gorm.DB
	cfg     *config.Config
	gateway *recordingGateway
	router  *gin.Engine
	buyer   *models.User
	asset   *models.Asset
}

func newCaptureFixture(t *testing.T) *captureFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))

	cfg := &config.Config{
		Env:                    "test",
		APIUrl:                 "http://api.test",
		FrontendURL:            "http://app.test",
		AssetPriceCents:        500,
		AssetPriceCurrency:     "USD",
		JWTSecret:              "test-secret",
		JWTAccessTokenDuration: 15 * time.Minute,
	}

	buyer := &models.User{Username: "buyer", Email: "buyer@test.local", Password: "x", Name: "Buyer", IsActive: true}
	require.NoError(t, db.Create(buyer).Error)
	owner := &models.User{Username: "seller", Email: "seller@test.local", Password: "x", Name: "Seller", IsActive: true}
	require.NoError(t, db.Create(owner).Error)
	category := &models.Category{ID: uuid.New(), Name: "Nature"}
	require.NoError(t, db.Create(category).Error)
	asset := &models.Asset{
		Title:         "Sunrise",
		FileURL:       "https://cdn.test/sunrise.png",
		ThumbnailURL:  "https://cdn.test/sunrise-thumb.png",
		CategoryID:    category.ID,
		OwnerID:       owner.ID,
		ApprovalState: models.ApprovalStateApproved,
	}
	require.NoError(t, db.Create(asset).Error)

	gateway := &recordingGateway{}
	purchaseService := services.NewPurchaseService(db, nil, cfg, gateway)
	emailService := services.NewEmailService(cfg)
	userService := services.NewUserService(db)
	authService := services.NewAuthService(db, nil, cfg)
	handler := NewPayPalHandler(purchaseService, emailService, userService, cfg)

	router := gin.New()
	// The capture callback is a plain browser GET from the gateway, so it is
	// mounted behind the redirecting auth middleware, same as in main.
	router.GET("/api/v1/paypal/capture",
		middleware.AuthRedirect(authService, cfg.FrontendURL+"/login"),
		handler.HandleCapture)
	router.POST("/api/v1/paypal/webhook", handler.HandleWebhook)

	return &captureFixture{db: db, cfg: cfg, gateway: gateway, router: router, buyer: buyer, asset: asset}
}

// sessionCookie mints the access_token cookie the login handler would have
// set before the payer was sent to the gateway.
func (f *captureFixture) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, err := jwtpkg.GenerateToken(f.buyer.ID.String(), jwtpkg.AccessToken, f.cfg.JWTSecret, f.cfg.JWTAccessTokenDuration)
	require.NoError(t, err)
	return &http.Cookie{Name: "access_token", Value: token}
}

func (f *captureFixture) purchaseCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Purchase{}).Count(&n).Error)
	return n
}

func TestHandleCapture(t *testing.T) {
	t.Run("gateway redirect without a session goes to login", func(t *testing.T) {
		f := newCaptureFixture(t)

		// Exactly what the gateway sends back: no Authorization header, no
		// cookie, and a token query that belongs to the gateway order.
		w := httptest.NewRecorder()
		url := "/api/v1/paypal/capture?token=ORDER-1&PayerID=PAYER-9&assetId=" + f.asset.ID.String()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "http://app.test/login", w.Header().Get("Location"))
		assert.Zero(t, f.gateway.captureCalls.Load())
		assert.Zero(t, f.purchaseCount(t))
	})

	t.Run("missing params has zero side effects", func(t *testing.T) {
		f := newCaptureFixture(t)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/paypal/capture?assetId="+f.asset.ID.String(), nil)
		req.AddCookie(f.sessionCookie(t))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Contains(t, w.Header().Get("Location"), "error=missing-params")
		assert.Zero(t, f.gateway.captureCalls.Load())
		assert.Zero(t, f.purchaseCount(t))
	})

	t.Run("completed capture records and returns to the asset page", func(t *testing.T) {
		f := newCaptureFixture(t)

		w := httptest.NewRecorder()
		url := "/api/v1/paypal/capture?token=ORDER-1&PayerID=PAYER-9&assetId=" + f.asset.ID.String()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.AddCookie(f.sessionCookie(t))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "http://app.test/gallery/"+f.asset.ID.String()+"?success=true", w.Header().Get("Location"))
		assert.EqualValues(t, 1, f.gateway.captureCalls.Load())
		assert.EqualValues(t, 1, f.purchaseCount(t))

		var purchase models.Purchase
		require.NoError(t, f.db.Preload("Payment").First(&purchase).Error)
		assert.Equal(t, f.buyer.ID, purchase.UserID)
		assert.Equal(t, "ORDER-1", purchase.Payment.ProviderID)
	})

	t.Run("failed capture redirects with payment_failed and writes nothing", func(t *testing.T) {
		f := newCaptureFixture(t)
		f.gateway.captureStatus = "DECLINED"

		w := httptest.NewRecorder()
		url := "/api/v1/paypal/capture?token=ORDER-1&PayerID=PAYER-9&assetId=" + f.asset.ID.String()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.AddCookie(f.sessionCookie(t))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Contains(t, w.Header().Get("Location"), "error=payment_failed")
		assert.Zero(t, f.purchaseCount(t))
	})

	t.Run("gateway outage redirects with payment_failed", func(t *testing.T) {
		f := newCaptureFixture(t)
		f.gateway.captureErr = errors.New("gateway timeout")

		w := httptest.NewRecorder()
		url := "/api/v1/paypal/capture?token=ORDER-1&PayerID=PAYER-9&assetId=" + f.asset.ID.String()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.AddCookie(f.sessionCookie(t))
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusFound, w.Code)
		assert.Contains(t, w.Header().Get("Location"), "error=payment_failed")
		assert.Zero(t, f.purchaseCount(t))
	})

	t.Run("double callback stays at one row", func(t *testing.T) {
		f := newCaptureFixture(t)

		url := "/api/v1/paypal/capture?token=ORDER-1&PayerID=PAYER-9&assetId=" + f.asset.ID.String()
		for i := 0; i < 2; i++ {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, url, nil)
			req.AddCookie(f.sessionCookie(t))
			f.router.ServeHTTP(w, req)
			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "http://app.test/gallery/"+f.asset.ID.String()+"?success=true", w.Header().Get("Location"))
		}

		assert.EqualValues(t, 1, f.purchaseCount(t))
	})
}

func TestHandleWebhook(t *testing.T) {
	t.Run("capture completed records a purchase", func(t *testing.T) {
		f := newCaptureFixture(t)

		body := []byte(`{
			"id": "WH-1",
			"event_type": "PAYMENT.CAPTURE.COMPLETED",
			"resource": {
				"id": "CAP-1",
				"status": "COMPLETED",
				"custom_id": "` + f.buyer.ID.String() + `|` + f.asset.ID.String() + `",
				"supplementary_data": {"related_ids": {"order_id": "ORDER-1"}}
			}
		}`)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/paypal/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, f.gateway.getCalls.Load())
		assert.EqualValues(t, 1, f.purchaseCount(t))

		var purchase models.Purchase
		require.NoError(t, f.db.Preload("Payment").First(&purchase).Error)
		assert.Equal(t, "ORDER-1", purchase.Payment.ProviderID)
	})

	t.Run("event the gateway does not confirm writes nothing", func(t *testing.T) {
		f := newCaptureFixture(t)
		f.gateway.orderStatus = "CREATED"

		// A fabricated event naming an order no one ever paid for.
		body := []byte(`{
			"id": "WH-FORGED",
			"event_type": "PAYMENT.CAPTURE.COMPLETED",
			"resource": {
				"custom_id": "` + f.buyer.ID.String() + `|` + f.asset.ID.String() + `",
				"supplementary_data": {"related_ids": {"order_id": "NEVER-PAID"}}
			}
		}`)

		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/paypal/webhook", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, f.gateway.getCalls.Load())
		assert.Zero(t, f.gateway.captureCalls.Load())
		assert.Zero(t, f.purchaseCount(t))
	})

	t.Run("other event types are ignored", func(t *testing.T) {
		f := newCaptureFixture(t)

		body := []byte(`{"id":"WH-2","event_type":"PAYMENT.CAPTURE.DENIED","resource":{}}`)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/paypal/webhook", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, f.purchaseCount(t))
	})

	t.Run("malformed custom_id is ignored with 200", func(t *testing.T) {
		f := newCaptureFixture(t)

		body := []byte(`{"id":"WH-3","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"custom_id":"garbage"}}`)
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/paypal/webhook", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Zero(t, f.purchaseCount(t))
	})

	t.Run("webhook after callback is idempotent", func(t *testing.T) {
		f := newCaptureFixture(t)

		url := "/api/v1/paypal/capture?token=ORDER-1&PayerID=PAYER-9&assetId=" + f.asset.ID.String()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		req.AddCookie(f.sessionCookie(t))
		f.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusFound, w.Code)

		body := []byte(`{
			"id": "WH-4",
			"event_type": "PAYMENT.CAPTURE.COMPLETED",
			"resource": {
				"custom_id": "` + f.buyer.ID.String() + `|` + f.asset.ID.String() + `",
				"supplementary_data": {"related_ids": {"order_id": "ORDER-1"}}
			}
		}`)
		w = httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/paypal/webhook", bytes.NewReader(body)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, f.purchaseCount(t))
	})
}
