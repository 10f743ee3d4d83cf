package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Drivers
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"

	// Instrumentation
	"github.com/exaring/otelpgx"
	"github.com/redis/go-redis/extra/redisotel/v9"

	// Interne
	"github.com/arhipvp/hw05-final/config"
	grpc_adapter "github.com/arhipvp/hw05-final/internal/adapters/primary/grpc"
	"github.com/arhipvp/hw05-final/internal/adapters/primary/web"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/cache"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/eventbroker"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/media"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/repository"
	"github.com/arhipvp/hw05-final/internal/adapters/secondary/security"
	"github.com/arhipvp/hw05-final/internal/core/ports"
	"github.com/arhipvp/hw05-final/internal/core/services"
	"github.com/arhipvp/hw05-final/internal/platform/migrations"
	"github.com/arhipvp/hw05-final/internal/platform/telemetry"
)

// store regroupe les repositories du backend SQL choisi.
type store struct {
	users    ports.UserRepository
	groups   ports.GroupRepository
	posts    ports.PostRepository
	comments ports.CommentRepository
	follows  ports.FollowRepository
}

func main() {
	// 1. Config & Logger
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(telemetry.NewLogger(os.Stdout, cfg.IsLocal()))
	slog.Info("🚀 Starting Yatube", "env", cfg.Env, "db_driver", cfg.DBDriver, "http_port", cfg.HTTPPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Télémétrie (Tracing)
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OtelEndpoint, cfg.ServiceName, cfg.Env)
	if err != nil {
		slog.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = shutdownTracer(context.Background()) }()
	}

	checks := map[string]grpc_adapter.Check{}

	// 3. Infrastructure: Base de données (Postgres ou SQLite)
	var st store
	switch cfg.DBDriver {
	case "postgres":
		dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
		if err != nil {
			slog.Error("Unable to parse DB config", "error", err)
			os.Exit(1)
		}
		// Instrumentation SQL (Pour voir les requêtes dans Jaeger)
		dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

		dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
		if err != nil {
			slog.Error("Unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		// Le schéma passe par database/sql, le runtime par pgx natif
		sqlDB := stdlib.OpenDBFromPool(dbPool)
		if err := migrations.Apply(ctx, sqlDB, migrations.Postgres); err != nil {
			slog.Error("Unable to migrate database", "error", err)
			os.Exit(1)
		}
		_ = sqlDB.Close()

		pg := repository.NewPostgresStore(dbPool)
		st = store{users: pg.Users, groups: pg.Groups, posts: pg.Posts, comments: pg.Comments, follows: pg.Follows}
		checks["database"] = dbPool.Ping
		slog.Info("✅ Connected to Postgres")

	default:
		db, err := repository.OpenSQLite(ctx, cfg.DBUrl)
		if err != nil {
			slog.Error("Unable to open SQLite database", "path", cfg.DBUrl, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		lite := repository.NewSQLiteStore(db)
		st = store{users: lite.Users, groups: lite.Groups, posts: lite.Posts, comments: lite.Comments, follows: lite.Follows}
		checks["database"] = db.PingContext
		slog.Info("✅ Opened SQLite", "path", cfg.DBUrl)
	}

	// 4. Graphe d'abonnements (Neo4j, optionnel)
	if cfg.Neo4jURI != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			slog.Error("Unable to create Neo4j driver", "error", err)
			os.Exit(1)
		}
		defer driver.Close(context.Background())

		if err := driver.VerifyConnectivity(ctx); err != nil {
			slog.Error("Unable to connect to Neo4j", "error", err)
			os.Exit(1)
		}

		graph := repository.NewNeo4jFollowRepo(driver)
		if err := graph.EnsureSchema(ctx); err != nil {
			slog.Warn("Failed to ensure Neo4j schema", "error", err)
		}
		st.follows = graph
		checks["neo4j"] = driver.VerifyConnectivity
		slog.Info("✅ Connected to Neo4j")
	}

	// 5. Cache de la page d'accueil (Redis ou mémoire)
	var pageCache ports.ResponseCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			slog.Warn("Failed to instrument Redis", "error", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Unable to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		pageCache = cache.NewRedisCache(rdb, cfg.ServiceName)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		slog.Info("✅ Connected to Redis")
	} else {
		mem := cache.NewMemoryCache()
		if err := mem.StartSweeper("@every 1m"); err != nil {
			slog.Error("Unable to schedule cache sweeper", "error", err)
			os.Exit(1)
		}
		defer mem.Stop()
		pageCache = mem
	}

	// 6. Infrastructure: Event Broker (NATS, optionnel)
	var eventPub ports.EventPublisher = eventbroker.NoopPublisher{}
	if cfg.NatsUrl != "" {
		nc, err := nats.Connect(cfg.NatsUrl)
		if err != nil {
			slog.Error("Unable to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()

		eventPub = eventbroker.NewNatsPublisher(nc)
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
		slog.Info("✅ Connected to NATS")
	}

	// 7. Médias & vérification des tokens
	storage, err := media.NewLocalStorage(cfg.MediaRoot)
	if err != nil {
		slog.Error("Unable to prepare media root", "path", cfg.MediaRoot, "error", err)
		os.Exit(1)
	}

	var verifier ports.TokenVerifier
	if cfg.JWTPublicKeyPath != "" {
		verifier, err = security.LoadJWTVerifier(cfg.JWTPublicKeyPath, cfg.JWTIssuer)
		if err != nil {
			slog.Error("Unable to load JWT public key", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("⚠️ No JWT_PUBLIC_KEY_PATH: every visitor is anonymous")
		verifier = security.DisabledVerifier{}
	}

	// 8. Initialisation du Core (Domain Logic)
	postService := services.NewPostService(st.posts, st.groups, st.users, st.follows, st.comments, storage, eventPub, cfg.PageSize)
	commentService := services.NewCommentService(st.posts, st.comments, eventPub)
	followService := services.NewFollowService(st.follows, st.users, st.posts, eventPub, cfg.PageSize)
	authService := services.NewAuthService(verifier, st.users)

	// 9. Primary Adapters (HTTP + gRPC health)
	renderer, err := web.NewTemplateRenderer()
	if err != nil {
		slog.Error("Unable to parse templates", "error", err)
		os.Exit(1)
	}

	webServer := web.NewServer(web.Deps{
		Posts:    postService,
		Comments: commentService,
		Follows:  followService,
		Auth:     authService,
		Cache:    pageCache,
		Renderer: renderer,
	}, web.Options{
		ServiceName:        cfg.ServiceName,
		LoginURL:           cfg.LoginURL,
		IndexCacheTTL:      cfg.IndexCacheTTL,
		MediaRoot:          cfg.MediaRoot,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		CSRFKey:            []byte(cfg.CSRFKey),
		CSRFSecure:         cfg.CSRFSecure,
		CSRFTrustedOrigins: cfg.CSRFTrustedOrigins,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           webServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("🌐 HTTP server listening", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	var healthServer *grpc_adapter.HealthServer
	grpcServer := grpc_adapter.NewServer()
	if cfg.GRPCPort != "" {
		healthServer = grpc_adapter.NewHealthServer(checks)
		healthServer.Register(grpcServer)
		go healthServer.Watch(ctx, 15*time.Second)

		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen", "error", err)
			os.Exit(1)
		}
		go func() {
			slog.Info("📡 gRPC health listening", "port", cfg.GRPCPort)
			if err := grpcServer.Serve(lis); err != nil {
				slog.Error("gRPC server error", "error", err)
				os.Exit(1)
			}
		}()
	}

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("🛑 Shutting down server...")

	if healthServer != nil {
		healthServer.Shutdown()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	slog.Info("👋 Server exited")
}
