package middleware

import (
	"errors"
	"net/http"

	"github.com/mbyeon/gatekeeper"
	"github.com/mbyeon/gatekeeper/access"
	"github.com/mbyeon/gatekeeper/webtoken"
)

// GuardConfig wires the guard to its collaborators. Engine and Policy are
// required; Tokens is optional and enables the return-to cookie.
type GuardConfig struct {
	Engine    *gatekeeper.Engine
	Policy    *access.Policy
	Tokens    *webtoken.Manager
	LoginPath string
	Secure    bool
}

// Guard returns middleware enforcing the policy. Requests with a live
// session proceed with the session in context regardless of the rule;
// anonymous requests proceed on public paths and are redirected to the
// login page on protected ones. During a registry outage public paths stay
// up as anonymous requests, so the login page itself remains reachable;
// protected paths answer 503, never a silent logout.
func Guard(cfg GuardConfig) func(http.Handler) http.Handler {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Engine == nil || cfg.Policy == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			requirement := cfg.Policy.Decide(r.URL.Path)

			info, err := resolveSession(r, cfg.Engine)
			if err != nil {
				if requirement == access.AllowAnonymous {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			if info != nil {
				next.ServeHTTP(w, r.WithContext(withSession(r.Context(), info)))
				return
			}

			if requirement == access.AllowAnonymous {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Tokens != nil {
				if signed, err := cfg.Tokens.Sign(requestedPath(r)); err == nil {
					setReturnToCookie(w, signed, cfg.Secure)
				}
			}
			http.Redirect(w, r, loginPath, http.StatusFound)
		})
	}
}

// resolveSession maps the session cookie to a live session. A missing,
// malformed, or dead cookie is an anonymous request; only transport
// failures propagate as errors.
func resolveSession(r *http.Request, engine *gatekeeper.Engine) (*gatekeeper.SessionInfo, error) {
	token := cookieValue(r, SessionCookieName)
	if token == "" {
		return nil, nil
	}

	info, err := engine.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, gatekeeper.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return info, nil
}

func requestedPath(r *http.Request) string {
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	return path
}
