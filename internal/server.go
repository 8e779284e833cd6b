package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"

	"github.com/2beens/portfolio/internal/auth"
	"github.com/2beens/portfolio/internal/auth/provider"
	"github.com/2beens/portfolio/internal/cache"
	"github.com/2beens/portfolio/internal/certificates"
	"github.com/2beens/portfolio/internal/config"
	"github.com/2beens/portfolio/internal/db"
	"github.com/2beens/portfolio/internal/files"
	"github.com/2beens/portfolio/internal/geoip"
	"github.com/2beens/portfolio/internal/messages"
	"github.com/2beens/portfolio/internal/middleware"
	"github.com/2beens/portfolio/internal/misc"
	"github.com/2beens/portfolio/internal/profile"
	"github.com/2beens/portfolio/internal/projects"
	"github.com/2beens/portfolio/internal/skills"
	"github.com/2beens/portfolio/internal/telemetry/metrics"
	"github.com/2beens/portfolio/internal/telemetry/tracing"
)

const sessionsCleanupInterval = 8 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config       *config.Config
	dbPool       *pgxpool.Pool
	redisClient  *redis.Client
	geoIp        *geoip.Api
	contentCache cache.Cache
	fileStore    *files.DiskStore

	// auth
	registry       auth.Registry
	provider       auth.IdentityProvider
	localProvider  *provider.Local
	tokens         *auth.Tokens
	loginLimiter   auth.LoginLimiter
	reqRateLimiter middleware.RequestRateLimiter

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	IpInfoAPIKey            string
	VersionInfo             string
	TokenSecret             string
	DBPassword              string
	RedisPassword           string
	RemoteAuthAPIKey        string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     params.DBPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	} else if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbPool); err != nil {
			return nil, fmt.Errorf("migrate db: %w", err)
		}
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "portfolio-backend", rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   10 * time.Second,
	}

	tokens, err := auth.NewTokens([]byte(params.TokenSecret), cfg.TokenTTL.Duration, cfg.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("session tokens: %w", err)
	}

	s := &Server{
		config:      cfg,
		dbPool:      dbPool,
		redisClient: rdb,
		geoIp:       geoip.NewApi(params.IpInfoAPIKey, tracedHttpClient, rdb),
		contentCache: cache.NewContentCache(
			cfg.ContentCacheSizeMB,
			cfg.ContentCacheTTL.Duration,
		),
		versionInfo: params.VersionInfo,

		registry:       auth.NewRegistryRepo(dbPool),
		tokens:         tokens,
		reqRateLimiter: redis_rate.NewLimiter(rdb),

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	switch cfg.AuthProvider {
	case config.AuthProviderRemote:
		s.provider = provider.NewRemote(cfg.RemoteAuthURL, params.RemoteAuthAPIKey)
	default:
		s.localProvider = provider.NewLocal(provider.NewCredentialsRepo(dbPool), rdb, cfg.SessionTTL.Duration)
		s.provider = s.localProvider
	}
	log.Debugf("using [%s] identity provider", cfg.AuthProvider)

	switch cfg.LoginRateLimitStore {
	case config.LimiterStoreRedis:
		s.loginLimiter = auth.NewRedisLimiter(rdb, cfg.LoginRateLimitLimit, cfg.LoginRateLimitWindow.Duration)
	default:
		s.loginLimiter = auth.NewMemoryLimiter(
			cfg.LoginRateLimitLimit,
			cfg.LoginRateLimitWindow.Duration,
			cfg.LoginRateLimitMaxKeys,
		)
	}

	s.fileStore, err = files.NewDiskStore(cfg.FilesRootPath)
	if err != nil {
		return nil, fmt.Errorf("new files disk store: %w", err)
	}

	return s, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	misc.NewHandler(s.geoIp, s.versionInfo).SetupRoutes(r)

	auth.NewHandler(
		s.registry,
		s.provider,
		s.tokens,
		s.loginLimiter,
		s.metricsManager,
	).SetupRoutes(r)

	projects.NewHandler(projects.NewRepo(s.dbPool), s.contentCache).SetupRoutes(r)
	skills.NewHandler(skills.NewRepo(s.dbPool), s.contentCache).SetupRoutes(r)
	certificates.NewHandler(certificates.NewRepo(s.dbPool), s.contentCache).SetupRoutes(r)
	profile.NewHandler(profile.NewRepo(s.dbPool), s.contentCache).SetupRoutes(r)

	messages.NewHandler(
		messages.NewRepo(s.dbPool),
		s.geoIp,
		s.reqRateLimiter,
		s.config.MessagesRateLimitPerMin,
		s.metricsManager,
	).SetupRoutes(r)

	files.NewHandler(s.fileStore, s.config.MaxUploadSizeMB<<20).SetupRoutes(r)

	// preflight for any path, answered by the auth middleware
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}).Name("preflight")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "PATCH", "DELETE").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.tokens)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(middleware.RateLimit(s.reqRateLimiter, "main", s.config.RequestsRateLimitPerMin, s.metricsManager))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", metrics.Handler(s.promRegistry))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	if s.localProvider != nil {
		go s.localProvider.RunCleanup(ctx, sessionsCleanupInterval)
	}

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() error {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	var shutdownErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown http server: %w", err))
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("shutdown metrics server: %w", err))
		}
		log.Warnln("metrics server shut down")
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("close redis client: %w", err))
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	return shutdownErr
}
