package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
	"github.com/artgrid/backend/pkg/crypto"
	jwtpkg "github.com/artgrid/backend/pkg/jwt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type AuthService struct {
	db    *gorm.DB
	redis *redis.Client
	cfg   *config.Config
}

func NewAuthService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		db:    db,
		redis: redisClient,
		cfg:   cfg,
	}
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(username, password string) (string, string, *models.User, error) {
	var user models.User

	// Find user by username
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil, errors.New("invalid credentials")
		}
		return "", "", nil, err
	}

	// Check if user is active
	if !user.IsActive {
		return "", "", nil, errors.New("account is deactivated")
	}

	// Verify password
	if !crypto.CheckPassword(password, user.Password) {
		return "", "", nil, errors.New("invalid credentials")
	}

	// Generate tokens
	accessToken, err := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return "", "", nil, err
	}

	refreshToken, err := jwtpkg.GenerateToken(user.ID.String(), jwtpkg.RefreshToken, s.cfg.JWTSecret, s.cfg.JWTRefreshTokenDuration)
	if err != nil {
		return "", "", nil, err
	}

	// Store refresh token in database
	refreshTokenModel := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.cfg.JWTRefreshTokenDuration),
	}

	if err := s.db.Create(refreshTokenModel).Error; err != nil {
		return "", "", nil, err
	}

	return accessToken, refreshToken, &user, nil
}

// Register creates a new user account
func (s *AuthService) Register(username, email, password, name string) (*models.User, error) {
	// Check if username or email already exists
	var existingUser models.User
	if err := s.db.Where("username = ? OR email = ?", username, email).First(&existingUser).Error; err == nil {
		if existingUser.Username == username {
			return nil, errors.New("username already taken")
		}
		return nil, errors.New("email already registered")
	}

	// Hash password
	hashedPassword, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	// Create user
	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashedPassword,
		Name:     name,
		IsActive: true,
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// RefreshToken generates new access token from refresh token
func (s *AuthService) RefreshToken(refreshToken string) (string, error) {
	// Validate refresh token
	claims, err := jwtpkg.ValidateToken(refreshToken, s.cfg.JWTSecret)
	if err != nil {
		return "", errors.New("invalid refresh token")
	}

	if claims.TokenType != jwtpkg.RefreshToken {
		return "", errors.New("invalid token type")
	}

	// Check if refresh token exists in database
	var tokenModel models.RefreshToken
	if err := s.db.Where("token = ?", refreshToken).First(&tokenModel).Error; err != nil {
		return "", errors.New("refresh token not found")
	}

	// Check if token is expired
	if time.Now().After(tokenModel.ExpiresAt) {
		return "", errors.New("refresh token expired")
	}

	// Generate new access token
	accessToken, err := jwtpkg.GenerateToken(claims.UserID, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return "", err
	}

	return accessToken, nil
}

// Logout invalidates the refresh token
func (s *AuthService) Logout(userID uuid.UUID) error {
	// Delete all refresh tokens for the user
	return s.db.Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error
}

// ValidateAccessToken validates an access token and returns claims
func (s *AuthService) ValidateAccessToken(token string) (*jwtpkg.Claims, error) {
	claims, err := jwtpkg.ValidateToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != jwtpkg.AccessToken {
		return nil, errors.New("invalid token type")
	}

	// Optional: Check if token is blacklisted in Redis.
	// If redis is down, we allow the request to proceed.
	if s.redis != nil {
		ctx := context.Background()
		blacklistKey := fmt.Sprintf("blacklist:token:%s", token)
		exists, err := s.redis.Exists(ctx, blacklistKey).Result()
		if err != nil {
			log.Printf("WARN: Could not connect to Redis to check token blacklist: %v", err)
		} else if exists > 0 {
			return nil, errors.New("token is blacklisted")
		}
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CleanupExpiredTokens removes expired refresh tokens
func (s *AuthService) CleanupExpiredTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).Delete(&models.RefreshToken{}).Error
}
