package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

type sessionInfoResponse struct {
	SessionID      string            `json:"sessionId"`
	LoginID        string            `json:"loginId"`
	Name           string            `json:"name"`
	CreatedAt      time.Time         `json:"createdAt"`
	LastAccessedAt time.Time         `json:"lastAccessedAt"`
	IdleTimeout    string            `json:"idleTimeout"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// SessionInfoHandler renders the guard-resolved session as JSON. Behind
// the guard on a protected path it never sees an anonymous request, but a
// missing session still answers 401 rather than panicking.
func SessionInfoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := SessionFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sessionInfoResponse{
			SessionID:      info.SessionID,
			LoginID:        info.Principal.LoginID,
			Name:           info.Principal.Name,
			CreatedAt:      info.CreatedAt,
			LastAccessedAt: info.LastAccessedAt,
			IdleTimeout:    info.IdleTimeout.String(),
			Attributes:     info.Attributes,
		})
	})
}
