package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/httputil"
	"github.com/snapzone/storefront/internal/logging"
)

// Redirect targets used when the admin gate turns a caller away.
const (
	LoginPath = "/login"
	HomePath  = "/"
)

// RequireAdmin admits only admin identities. Anonymous callers are sent to
// the login page and signed-in non-admins to the home page: browsers get a
// 303, API clients a 401 or 403 naming the redirect.
func RequireAdmin(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			if id != nil && id.IsAdmin {
				next.ServeHTTP(w, r)
				return
			}

			var (
				target string
				err    *errors.ServiceError
			)
			if id == nil {
				target = LoginPath
				err = errors.Unauthorized("Sign in to continue")
			} else {
				target = HomePath
				err = errors.Forbidden("Admin access required")
				logger.LogSecurityEvent(r.Context(), "admin_access_denied", map[string]interface{}{
					"path":   r.URL.Path,
					"method": r.Method,
				})
			}

			if httputil.WantsHTML(r) {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			httputil.WriteError(w, r, err.WithDetails("redirect", target))
		})
	}
}
