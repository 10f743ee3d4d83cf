package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/arhipvp/hw05-final/internal/core/ports"
)

type Options struct {
	ServiceName        string
	LoginURL           string
	IndexCacheTTL      time.Duration
	MediaRoot          string // vide = /media/ non servi
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	CSRFKey            []byte   // 32 octets ; sinon une clé éphémère est tirée
	CSRFSecure         bool     // cookie Secure et contrôle du Referer (HTTPS)
	CSRFTrustedOrigins []string // hôtes autorisés en plus de l'hôte servi
}

type Deps struct {
	Posts    ports.PostService
	Comments ports.CommentService
	Follows  ports.FollowService
	Auth     ports.AuthService
	Cache    ports.ResponseCache
	Renderer Renderer
	Metrics  *Metrics
}

// Server est l'adapter primaire HTTP : il traduit les requêtes en appels de services
// et les erreurs du domaine en pages ou redirections.
type Server struct {
	posts    ports.PostService
	comments ports.CommentService
	follows  ports.FollowService
	auth     ports.AuthService
	cache    ports.ResponseCache
	renderer Renderer
	metrics  *Metrics
	limiter  *RateLimiter
	opts     Options
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.LoginURL == "" {
		opts.LoginURL = "/auth/login/"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "yatube"
	}
	if len(opts.CSRFKey) != csrfKeySize {
		slog.Warn("⚠️ CSRF key missing or invalid, using an ephemeral one")
		opts.CSRFKey = ephemeralCSRFKey()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(opts.ServiceName)
	}
	return &Server{
		posts:    deps.Posts,
		comments: deps.Comments,
		follows:  deps.Follows,
		auth:     deps.Auth,
		cache:    deps.Cache,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		limiter:  NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		opts:     opts,
	}
}

// Handler construit le router et la chaîne de middlewares :
// OTEL (racine) -> CORS -> CSRF -> router [métriques, logs, auth, rate limit] -> handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter().StrictSlash(true)
	r.Use(s.metrics.Middleware, logRequests, s.authenticate, s.limiter.Middleware)

	// Les middlewares mux ne s'appliquent pas au NotFoundHandler
	r.NotFoundHandler = s.authenticate(http.HandlerFunc(s.notFound))

	read := []string{http.MethodGet, http.MethodHead}
	form := []string{http.MethodGet, http.MethodHead, http.MethodPost}

	r.Handle("/", s.cachePage(s.opts.IndexCacheTTL, http.HandlerFunc(s.index))).Methods(read...)
	r.HandleFunc("/group/{slug}/", s.groupPosts).Methods(read...)
	r.HandleFunc("/profile/", s.requireUser(s.ownProfile)).Methods(read...)
	r.HandleFunc("/profile/{username}/", s.profile).Methods(read...)
	r.HandleFunc("/profile/{username}/follow/", s.requireUser(s.profileFollow)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/profile/{username}/unfollow/", s.requireUser(s.profileUnfollow)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/posts/{id:[0-9]+}/", s.postDetail).Methods(read...)
	r.HandleFunc("/posts/{id:[0-9]+}/edit/", s.requireUser(s.postEdit)).Methods(form...)
	// GET arrive après un login (?next=...) : il renvoie sur le détail
	r.HandleFunc("/posts/{id:[0-9]+}/comment/", s.requireUser(s.addComment)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/create/", s.requireUser(s.postCreate)).Methods(form...)
	r.HandleFunc("/follow/", s.requireUser(s.followIndex)).Methods(read...)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(read...)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	if s.opts.MediaRoot != "" {
		r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(filesOnly{http.Dir(s.opts.MediaRoot)}))).Methods(read...)
	}

	var h http.Handler = s.csrfGuard(r)

	if len(s.opts.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   s.opts.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-CSRF-Token", "baggage", "traceparent"},
			AllowCredentials: true,
		})
		h = c.Handler(h)
	}

	return otelhttp.NewHandler(h, s.opts.ServiceName, otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path)
	}))
}

// filesOnly sert les fichiers de MEDIA_ROOT sans lister les répertoires.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
