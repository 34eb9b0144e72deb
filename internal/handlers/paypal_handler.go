package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PayPalHandler struct {
	purchaseService *services.PurchaseService
	emailService    *services.EmailService
	userService     *services.UserService
	cfg             *config.Config
}

func NewPayPalHandler(purchaseService *services.PurchaseService, emailService *services.EmailService, userService *services.UserService, cfg *config.Config) *PayPalHandler {
	return &PayPalHandler{
		purchaseService: purchaseService,
		emailService:    emailService,
		userService:     userService,
		cfg:             cfg,
	}
}

func (h *PayPalHandler) redirectToGallery(c *gin.Context, assetID, query string) {
	target := fmt.Sprintf("%s/gallery?%s", h.cfg.FrontendURL, query)
	if assetID != "" {
		target = fmt.Sprintf("%s/gallery/%s?%s", h.cfg.FrontendURL, assetID, query)
	}
	c.Redirect(http.StatusFound, target)
}

// HandleCapture is the browser return URL after the payer approves the
// order at the gateway. The gateway appends its own token and PayerID
// parameters; assetId comes from the return URL we supplied when the order
// was created. Every parameter is re-validated here because the redirect
// crosses an untrusted browser.
func (h *PayPalHandler) HandleCapture(c *gin.Context) {
	orderToken := c.Query("token")
	assetIDRaw := c.Query("assetId")
	payerID := c.Query("PayerID")

	if orderToken == "" || assetIDRaw == "" || payerID == "" {
		h.redirectToGallery(c, assetIDRaw, "error=missing-params")
		return
	}

	assetID, err := uuid.Parse(assetIDRaw)
	if err != nil {
		h.redirectToGallery(c, "", "error=missing-params")
		return
	}

	userIDValue, exists := c.Get("userID")
	if !exists {
		h.redirectToGallery(c, assetIDRaw, "error=missing-params")
		return
	}
	userID := userIDValue.(uuid.UUID)

	result, err := h.purchaseService.CaptureAndRecord(c.Request.Context(), orderToken, assetID, userID)
	if err != nil {
		// A failed capture call and a declined capture both mean no money
		// moved; recording_failed is reserved for a capture that succeeded
		// but could not be written.
		if errors.Is(err, services.ErrPaymentNotCompleted) || errors.Is(err, services.ErrCaptureFailed) {
			log.Printf("PayPal capture failed for order %s: %v", orderToken, err)
			h.redirectToGallery(c, assetIDRaw, "error=payment_failed")
			return
		}
		log.Printf("PayPal capture: failed to record purchase for order %s: %v", orderToken, err)
		h.redirectToGallery(c, assetIDRaw, "error=recording_failed")
		return
	}

	if !result.AlreadyExists {
		h.sendReceipt(userID, result.PurchaseID)
	}

	h.redirectToGallery(c, assetIDRaw, "success=true")
}

// PayPalWebhookEvent represents a PayPal webhook event
type PayPalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Amount struct {
			Currency string `json:"currency_code"`
			Value    string `json:"value"`
		} `json:"amount"`
		// CustomID is "userId|assetId" as set at order creation
		CustomID          string `json:"custom_id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// HandleWebhook processes PayPal webhook events. It is a safety net for
// captures whose browser redirect never arrived; recording is idempotent,
// so overlap with the callback path is harmless. The endpoint is
// unauthenticated, so nothing in the body is trusted until the gateway
// confirms the order. Always answers 200 so the gateway does not retry
// forever.
func (h *PayPalHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("PayPal webhook: failed to read body: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	var event PayPalWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("PayPal webhook: failed to parse body: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if event.EventType != "PAYMENT.CAPTURE.COMPLETED" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	parts := strings.SplitN(event.Resource.CustomID, "|", 2)
	if len(parts) != 2 {
		log.Printf("PayPal webhook: malformed custom_id %q in event %s", event.Resource.CustomID, event.ID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	userID, err1 := uuid.Parse(parts[0])
	assetID, err2 := uuid.Parse(parts[1])
	if err1 != nil || err2 != nil {
		log.Printf("PayPal webhook: unparseable custom_id %q in event %s", event.Resource.CustomID, event.ID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	orderToken := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if orderToken == "" {
		orderToken = event.Resource.ID
	}

	// The event body is unauthenticated input; ConfirmAndRecord asks the
	// gateway for the order before any row is written.
	result, err := h.purchaseService.ConfirmAndRecord(c.Request.Context(), orderToken, assetID, userID)
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotCompleted) {
			log.Printf("PayPal webhook: event %s claims a capture the gateway does not confirm (order %s)", event.ID, orderToken)
			h.alertUnverifiedEvent(event.ID, orderToken)
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		log.Printf("PayPal webhook: failed to record purchase for event %s: %v", event.ID, err)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	if !result.AlreadyExists {
		h.sendReceipt(userID, result.PurchaseID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// alertUnverifiedEvent notifies the admin that a webhook claimed a capture
// the gateway does not back up. That is either a misdelivered event or a
// forgery attempt; both are worth a human look.
func (h *PayPalHandler) alertUnverifiedEvent(eventID, orderToken string) {
	if h.cfg.AdminEmail == "" {
		return
	}
	go func() {
		subject := "Unverified payment webhook event"
		body := fmt.Sprintf("Webhook event %s referenced order %s, but the gateway does not report that order as completed. No purchase was recorded.", eventID, orderToken)
		if err := h.emailService.SendGenericTextEmail(h.cfg.AdminEmail, subject, body); err != nil {
			log.Printf("Failed to send webhook alert: %v", err)
		}
	}()
}

func (h *PayPalHandler) sendReceipt(userID, purchaseID uuid.UUID) {
	purchase, err := h.purchaseService.GetPurchaseByID(purchaseID, userID)
	if err != nil {
		log.Printf("Failed to load purchase %s for receipt: %v", purchaseID, err)
		return
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		log.Printf("Failed to load user %s for receipt: %v", userID, err)
		return
	}

	go func() {
		if err := h.emailService.SendPurchaseReceipt(user.Email, purchase); err != nil {
			log.Printf("Failed to send purchase receipt to %s: %v", user.Email, err)
		}
	}()
}
