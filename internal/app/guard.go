package app

import (
	"context"
	"log"

	"github.com/franckalain/leafmetric/internal/api"
)

// SessionExpiredNotice is shown on the login screen after a forced sign out
const SessionExpiredNotice = "Session expired. Please log in again."

// Decision tells a screen how to present a failed remote call
type Decision struct {
	Relogin bool   // the session was dropped; go to the login screen
	Notice  string // message for the login screen when Relogin is set
	Message string // inline error text otherwise
}

// Guard turns an API error into a screen decision. An expired session is
// logged out here so every caller handles it the same way. A nil logger
// discards.
func Guard(ctx context.Context, logger *log.Logger, sessions Sessions, err error) Decision {
	if api.IsAuthExpired(err) {
		if lerr := sessions.Logout(ctx); lerr != nil && logger != nil {
			logger.Printf("[AUTH] failed to clear expired session: %v", lerr)
		}
		return Decision{Relogin: true, Notice: SessionExpiredNotice}
	}
	return Decision{Message: err.Error()}
}
