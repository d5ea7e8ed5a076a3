package security

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/r58io/core-service/internal/logging"
)

// JWTClaims represents the claims carried by a control-API session token.
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	IAT      int64  `json:"iat"`
	EXP      int64  `json:"exp"`
}

// ValidRoles defines the valid control-API client roles. Authorization
// policy beyond this coarse role tag is an external concern; the core only
// needs to know whether a connection may issue mutating commands.
var ValidRoles = map[string]bool{
	"viewer":   true,
	"operator": true,
	"admin":    true,
}

// ClientRateInfo represents rate limiting information for a client.
type ClientRateInfo struct {
	ClientID     string
	RequestCount int64
	LastRequest  time.Time
	WindowStart  time.Time
}

// JWTHandler issues and validates HS256 control-API session tokens and
// tracks a simple per-client request rate alongside validation.
type JWTHandler struct {
	secretKey string
	algorithm string
	logger    *logging.Logger

	clientRates map[string]*ClientRateInfo
	rateMutex   sync.RWMutex
	rateLimit   int64
	rateWindow  time.Duration
}

// NewJWTHandler creates a new JWT handler instance. Returns an error if the
// secret key is empty.
func NewJWTHandler(secretKey string, logger *logging.Logger) (*JWTHandler, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("secret key must be provided")
	}

	if logger == nil {
		logger = logging.GetLogger("jwt-handler")
	}

	handler := &JWTHandler{
		secretKey:   secretKey,
		algorithm:   "HS256",
		logger:      logger,
		clientRates: make(map[string]*ClientRateInfo),
		rateLimit:   100,
		rateWindow:  time.Minute,
	}

	handler.logger.WithFields(logging.Fields{
		"algorithm":   handler.algorithm,
		"rate_limit":  handler.rateLimit,
		"rate_window": handler.rateWindow,
	}).Info("JWT handler initialized")
	return handler, nil
}

// GenerateToken creates a new JWT token for a control-API client connection.
func (h *JWTHandler) GenerateToken(clientID, role string, expiryHours int) (string, error) {
	if strings.TrimSpace(clientID) == "" {
		return "", fmt.Errorf("client ID cannot be empty")
	}
	if !ValidRoles[role] {
		return "", fmt.Errorf("invalid role: %s", role)
	}
	if expiryHours <= 0 {
		expiryHours = 24
	}

	now := time.Now().Unix()
	claims := JWTClaims{
		ClientID: clientID,
		Role:     role,
		IAT:      now,
		EXP:      now + int64(expiryHours*3600),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"client_id": claims.ClientID,
		"role":      claims.Role,
		"iat":       claims.IAT,
		"exp":       claims.EXP,
	})

	tokenString, err := token.SignedString([]byte(h.secretKey))
	if err != nil {
		h.logger.Errorf("Failed to sign JWT token: %v", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	h.logger.WithFields(logging.Fields{
		"client_id": clientID,
		"role":      role,
		"expires":   time.Unix(claims.EXP, 0).Format(time.RFC3339),
	}).Debug("JWT token generated")

	return tokenString, nil
}

// CheckRateLimit reports whether clientID is still within its request
// budget for the current window, advancing the window's counters.
func (h *JWTHandler) CheckRateLimit(clientID string) bool {
	h.rateMutex.Lock()
	defer h.rateMutex.Unlock()

	now := time.Now()
	clientRate, exists := h.clientRates[clientID]
	if !exists {
		h.clientRates[clientID] = &ClientRateInfo{ClientID: clientID, RequestCount: 1, LastRequest: now, WindowStart: now}
		return true
	}

	if now.Sub(clientRate.WindowStart) >= h.rateWindow {
		clientRate.RequestCount = 1
		clientRate.WindowStart = now
		clientRate.LastRequest = now
		return true
	}

	if clientRate.RequestCount >= h.rateLimit {
		h.logger.WithFields(logging.Fields{
			"client_id":     clientID,
			"request_count": clientRate.RequestCount,
			"rate_limit":    h.rateLimit,
		}).Warn("Rate limit exceeded for client")
		return false
	}

	clientRate.RequestCount++
	clientRate.LastRequest = now
	return true
}

// SetRateLimit configures the rate limiting parameters.
func (h *JWTHandler) SetRateLimit(limit int64, window time.Duration) {
	h.rateMutex.Lock()
	defer h.rateMutex.Unlock()
	h.rateLimit = limit
	h.rateWindow = window
}

// CleanupExpiredClients removes rate limiting data for inactive clients.
func (h *JWTHandler) CleanupExpiredClients(maxInactive time.Duration) {
	h.rateMutex.Lock()
	defer h.rateMutex.Unlock()

	now := time.Now()
	for clientID, clientRate := range h.clientRates {
		if now.Sub(clientRate.LastRequest) > maxInactive {
			delete(h.clientRates, clientID)
		}
	}
}

// ValidateToken validates a JWT token and extracts its claims, rejecting
// anything not signed with HS256 to prevent algorithm-confusion attacks.
func (h *JWTHandler) ValidateToken(tokenString string) (*JWTClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unsupported signing method: %v", token.Method.Alg())
		}
		return []byte(h.secretKey), nil
	})
	if err != nil {
		h.logger.WithError(err).Warn("JWT token validation failed")
		return nil, fmt.Errorf("failed to validate JWT token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	for _, field := range []string{"client_id", "role", "iat", "exp"} {
		if _, exists := claims[field]; !exists {
			return nil, fmt.Errorf("missing required field: %s", field)
		}
	}

	role, ok := claims["role"].(string)
	if !ok || !ValidRoles[role] {
		return nil, fmt.Errorf("invalid role: %v", claims["role"])
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid issued at timestamp")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, fmt.Errorf("invalid expiration timestamp")
	}
	if time.Now().Unix() > int64(exp) {
		return nil, fmt.Errorf("token has expired")
	}

	clientID, _ := claims["client_id"].(string)
	return &JWTClaims{ClientID: clientID, Role: role, IAT: int64(iat), EXP: int64(exp)}, nil
}

// GetAlgorithm returns the algorithm used for JWT signing.
func (h *JWTHandler) GetAlgorithm() string {
	return h.algorithm
}
