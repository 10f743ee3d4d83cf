package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/arhipvp/hw05-final/internal/core/domain"
)

// handleError traduit les erreurs non gérées par le handler lui-même.
// ErrForbidden et FormErrors demandent le contexte de la page et sont traités sur place.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.notFound(w, r)
	case errors.Is(err, domain.ErrUnauthenticated):
		s.redirectToLogin(w, r)
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "core/404.html", &ViewData{Title: r.URL.Path})
}
