package security

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ClientConnection is the minimal view of a control-API connection that
// authentication middleware needs.
type ClientConnection interface {
	GetClientID() string
	GetRole() string
	IsAuthenticated() bool
}

// MethodHandler handles one control-API method call.
type MethodHandler func(params map[string]interface{}, client ClientConnection) (interface{}, error)

// AuthMiddleware enforces that a control-API method is only invoked on an
// authenticated connection.
type AuthMiddleware struct {
	logger *logrus.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{logger: logger}
}

// RequireAuth wraps handler so it rejects calls from unauthenticated clients.
func (am *AuthMiddleware) RequireAuth(handler MethodHandler) MethodHandler {
	return func(params map[string]interface{}, client ClientConnection) (interface{}, error) {
		if !client.IsAuthenticated() {
			am.logger.WithFields(logrus.Fields{
				"client_id": client.GetClientID(),
				"action":    "auth_bypass_attempt",
			}).Warn("Rejected unauthenticated method call")
			return nil, fmt.Errorf("authentication required")
		}

		am.logger.WithFields(logrus.Fields{
			"client_id": client.GetClientID(),
			"role":      client.GetRole(),
		}).Debug("Authentication check passed")

		return handler(params, client)
	}
}
