package web

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// bufferedResponse garde la réponse en mémoire pour pouvoir la mettre en cache.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header         { return b.header }
func (b *bufferedResponse) Write(p []byte) (int, error) { return b.body.Write(p) }
func (b *bufferedResponse) WriteHeader(code int)        { b.status = code }

// cachePage mémorise les réponses 200 d'un GET pendant ttl, sans invalidation
// explicite. La clé est le chemin + query, séparée par viewer pour ne jamais
// servir la navigation d'un utilisateur à un autre.
func (s *Server) cachePage(ttl time.Duration, next http.Handler) http.Handler {
	if ttl <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		key := cacheKey(r)
		if body, ok, err := s.cache.Get(r.Context(), key); err != nil {
			slog.Warn("Cache read failed", "key", key, "error", err)
		} else if ok {
			s.metrics.cacheResult("hit")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("X-Cache", "HIT")
			_, _ = w.Write(body)
			return
		}
		s.metrics.cacheResult("miss")

		buf := &bufferedResponse{header: w.Header(), status: http.StatusOK}
		next.ServeHTTP(buf, r)

		if buf.status == http.StatusOK {
			if err := s.cache.Set(r.Context(), key, buf.body.Bytes(), ttl); err != nil {
				slog.Warn("Cache write failed", "key", key, "error", err)
			}
		}
		w.Header().Set("X-Cache", "MISS")
		w.WriteHeader(buf.status)
		_, _ = w.Write(buf.body.Bytes())
	})
}

func cacheKey(r *http.Request) string {
	viewer := "anon"
	if u := ForContext(r.Context()); u != nil {
		viewer = strconv.FormatInt(u.ID, 10)
	}
	return "page:" + viewer + ":" + r.URL.RequestURI()
}
