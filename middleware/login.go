package middleware

import (
	"errors"
	"net/http"

	"github.com/mbyeon/gatekeeper"
	"github.com/mbyeon/gatekeeper/webtoken"
)

// LoginConfig wires the login and logout handlers. Engine is required.
// Tokens is optional and enables redeeming the return-to cookie on
// success.
type LoginConfig struct {
	Engine      *gatekeeper.Engine
	Tokens      *webtoken.Manager
	LoginPath   string
	SuccessPath string
	Secure      bool
}

func (cfg LoginConfig) loginPath() string {
	if cfg.LoginPath == "" {
		return "/login"
	}
	return cfg.LoginPath
}

func (cfg LoginConfig) successPath() string {
	if cfg.SuccessPath == "" {
		return "/home"
	}
	return cfg.SuccessPath
}

// LoginHandler consumes the login form (fields "loginId" and "password").
// On success it sets the session cookie and redirects to the redeemed
// return-to destination or the configured success path. Bad credentials
// redirect back to the login page with error=true; a refused login under
// the session quota uses error=session-limit so the page can say why.
func LoginHandler(cfg LoginConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, cfg.loginPath()+"?error=true", http.StatusFound)
			return
		}

		loginID := r.PostFormValue("loginId")
		plaintext := r.PostFormValue("password")

		result, err := cfg.Engine.Login(r.Context(), loginID, plaintext)
		if err != nil {
			switch {
			case errors.Is(err, gatekeeper.ErrSessionLimitReached):
				http.Redirect(w, r, cfg.loginPath()+"?error=session-limit", http.StatusFound)
			case errors.Is(err, gatekeeper.ErrRegistryUnavailable):
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, cfg.loginPath()+"?error=true", http.StatusFound)
			}
			return
		}

		setSessionCookie(w, result.Token, cfg.Secure)

		destination := cfg.successPath()
		if cfg.Tokens != nil {
			if signed := cookieValue(r, ReturnToCookieName); signed != "" {
				clearReturnToCookie(w)
				if dst, err := cfg.Tokens.Verify(signed); err == nil {
					destination = dst
				}
			}
		}
		http.Redirect(w, r, destination, http.StatusFound)
	})
}

// LogoutHandler invalidates the session behind the cookie and clears it.
// Logging out without a session is fine; the outcome is the same.
func LogoutHandler(cfg LoginConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if token := cookieValue(r, SessionCookieName); token != "" {
			if err := cfg.Engine.Logout(r.Context(), token); err != nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		clearSessionCookie(w)
		http.Redirect(w, r, "/", http.StatusFound)
	})
}
