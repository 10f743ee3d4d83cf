package web

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"
)

// csrfKeySize est la taille de clé attendue par gorilla/csrf (HMAC des cookies).
const csrfKeySize = 32

// csrfGuard protège les routes contre les soumissions cross-site portées par le cookie access_token.
// Un client qui présente "Authorization: Bearer" ou aucun cookie n'a pas de
// credential ambiant à détourner : le contrôle est sauté pour lui.
func (s *Server) csrfGuard(next http.Handler) http.Handler {
	protect := csrf.Protect(s.opts.CSRFKey,
		csrf.Path("/"),
		csrf.Secure(s.opts.CSRFSecure),
		csrf.TrustedOrigins(s.opts.CSRFTrustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
	)(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case !ambientCredentials(r):
			r = csrf.UnsafeSkipCheck(r)
		case r.Method == http.MethodPost:
			// gorilla/csrf lit le token dans le formulaire avant parsePostForm : même plafond
			r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
		}
		if !s.opts.CSRFSecure {
			r = csrf.PlaintextHTTPRequest(r)
		}
		protect.ServeHTTP(w, r)
	})
}

// ambientCredentials : le navigateur joint le cookie de session de lui-même, sans en-tête Bearer.
func ambientCredentials(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		return false
	}
	c, err := r.Cookie(tokenCookie)
	return err == nil && c.Value != ""
}

// ephemeralCSRFKey sert quand CSRF_KEY n'est pas fourni : les tokens ne survivent pas à un redémarrage.
func ephemeralCSRFKey() []byte {
	key := make([]byte, csrfKeySize)
	if _, err := rand.Read(key); err != nil {
		panic("csrf: " + err.Error())
	}
	return key
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	slog.Warn("CSRF check failed",
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"reason", csrf.FailureReason(r),
	)
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}
