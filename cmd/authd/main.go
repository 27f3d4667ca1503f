package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-auth/pkg/authapi"
	"github.com/tendant/simple-auth/pkg/authflow"
	"github.com/tendant/simple-auth/pkg/config"
	"github.com/tendant/simple-auth/pkg/device"
	"github.com/tendant/simple-auth/pkg/login"
	"github.com/tendant/simple-auth/pkg/provider"
	"github.com/tendant/simple-auth/pkg/ratelimit"
	"github.com/tendant/simple-auth/pkg/tokencodec"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Error("Failed to load env file", "path", envFile, "err", err)
			os.Exit(1)
		}
	} else {
		// A missing local .env is fine; the environment still applies.
		_ = godotenv.Load()
	}

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	codecs, err := buildCodecs(cfg.Codec)
	if err != nil {
		slog.Error("Failed to build codecs", "err", err)
		os.Exit(1)
	}

	cookies := authapi.NewCookieManager(cfg.Cookie.Mode, cfg.Cookie.EntryPath, cfg.Cookie.Secure, codecs)

	deviceService, err := buildDeviceService(cfg.Device)
	if err != nil {
		slog.Error("Failed to build device service", "err", err)
		os.Exit(1)
	}

	loginService := login.NewInMemLoginService()
	seedDemoAccounts(loginService)

	flowService, err := buildFlowService(cfg.Login, loginService)
	if err != nil {
		slog.Error("Failed to build login pipeline", "err", err)
		os.Exit(1)
	}

	slidingWindow, err := cfg.Login.ParseSlidingWindow()
	if err != nil {
		slog.Error("Invalid sliding window", "err", err)
		os.Exit(1)
	}

	handleOpts := []authapi.Option{
		authapi.WithDeviceService(deviceService),
		authapi.WithSlidingWindow(slidingWindow),
		authapi.WithVersion(cfg.Version),
		authapi.WithReturnURLBases(cfg.Login.ParseReturnURLBases()...),
	}

	if cfg.RateLimit.LoginBurst > 0 {
		bucketTTL, err := cfg.RateLimit.ParseBucketTTL()
		if err != nil {
			slog.Error("Invalid rate limit bucket TTL", "err", err)
			os.Exit(1)
		}
		limiter := ratelimit.NewLimiter(cfg.RateLimit.LoginBurst, cfg.RateLimit.LoginRefillRate, bucketTTL)
		handleOpts = append(handleOpts, authapi.WithLoginLimiter(ratelimit.Middleware(limiter, ratelimit.ClientIP)))
	}

	if cfg.Provider.File != "" {
		repo, err := provider.LoadFromFile(cfg.Provider.File)
		if err != nil {
			slog.Error("Failed to load providers", "path", cfg.Provider.File, "err", err)
			os.Exit(1)
		}
		providerService := provider.NewService(repo, cfg.Provider.CallbackURL)
		handleOpts = append(handleOpts, authapi.WithProviderService(providerService))
		slog.Info("Remote provider login enabled", "providers_file", cfg.Provider.File)
	}

	handle := authapi.NewHandle(flowService, codecs, cookies, handleOpts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handle.RegisterRoutes(r)

	slog.Info("Starting auth service", "addr", cfg.Server.Addr(), "cookie_mode", cfg.Cookie.Mode)
	if err := http.ListenAndServe(cfg.Server.Addr(), r); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

func buildCodecs(cfg config.CodecConfig) (*tokencodec.CodecService, error) {
	challengeMaxAge, err := cfg.ParseChallengeMaxAge()
	if err != nil {
		return nil, err
	}
	return tokencodec.NewCodecService(
		tokencodec.WithCodec(tokencodec.PurposeToken,
			tokencodec.NewJwtCodec(cfg.TokenSecret, cfg.Issuer, tokencodec.PurposeToken)),
		tokencodec.WithCodec(tokencodec.PurposeCookie,
			tokencodec.NewJwtCodec(cfg.CookieSecret, cfg.Issuer, tokencodec.PurposeCookie)),
		tokencodec.WithCodec(authflow.PurposeChallenge,
			tokencodec.NewJwtCodec(cfg.ChallengeSecret, cfg.Issuer, authflow.PurposeChallenge,
				tokencodec.WithMaxAge(challengeMaxAge))),
	), nil
}

func buildDeviceService(cfg config.DeviceConfig) (*device.DeviceService, error) {
	var db device.DBTX
	if cfg.Repository == device.RepositoryKindPostgres {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		db = pool
	}
	repo, err := device.BuildRepository(cfg.Repository, db)
	if err != nil {
		return nil, err
	}
	return device.NewDeviceService(repo), nil
}

func buildFlowService(cfg config.LoginConfig, loginService login.LoginService) (*authflow.Service, error) {
	expiration, err := cfg.ParseExpiration()
	if err != nil {
		return nil, err
	}
	criticalDurations, err := cfg.ParseCriticalDurations()
	if err != nil {
		return nil, err
	}

	opts := []authflow.Option{authflow.WithExpiration(expiration)}
	for scheme, d := range criticalDurations {
		opts = append(opts, authflow.WithCriticalDuration(scheme, d))
	}
	return authflow.NewService(loginService, opts...), nil
}

// seedDemoAccounts provisions a development account. The in-memory login
// service loses everything on restart; production deployments plug in
// their own identity backend instead.
func seedDemoAccounts(loginService *login.InMemLoginService) {
	if _, err := loginService.AddAccount("Albert", "success", "Albert"); err != nil {
		slog.Warn("Failed to seed demo account", "err", err)
	}
}
