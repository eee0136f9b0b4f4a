package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const version = "1.0.0"

type config struct {
	port int
	env  string
	db   struct {
		dsn                string
		maxOpenConnections int
		maxIdleConnections int
		maxIdleTime        time.Duration
		timeout            time.Duration
	}
	jwt struct {
		secret   string
		issuer   string
		audience string
		ttl      time.Duration
	}
	bcryptCost int
	limiter    struct {
		enabled             bool
		maxRequestPerSecond float64
		burst               int
	}
	login struct {
		maxFailures int
		lockout     time.Duration
	}
	cors struct {
		trustedOrigins []string
	}
	trustProxy bool
	smtp struct {
		host     string
		port     int
		username string
		password string
		sender   string
	}
	seedDemo bool
}

type application struct {
	config config
	logger *slog.Logger
	auth   *authService
	tasks  *taskService
	mailer *mailer
	wg     sync.WaitGroup
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseConfig(args []string) (config, bool, error) {
	var cfg config
	fs := flag.NewFlagSet("api", flag.ContinueOnError)

	fs.IntVar(&cfg.port, "port", envInt("PORT", 4000), "API server port")
	fs.StringVar(&cfg.env, "env", envOr("APP_ENV", "development"), "Environment (development|staging|production)")

	fs.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
	fs.IntVar(&cfg.db.maxOpenConnections, "db-max-open-conns", 25, "PostgreSQL max open connections")
	fs.IntVar(&cfg.db.maxIdleConnections, "db-max-idle-conns", 25, "PostgreSQL max idle connections")
	fs.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max connection idle time")
	fs.DurationVar(&cfg.db.timeout, "db-timeout", 5*time.Second, "Timeout for a single database call")

	fs.StringVar(&cfg.jwt.secret, "jwt-secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	fs.StringVar(&cfg.jwt.issuer, "jwt-issuer", envOr("JWT_ISSUER", "TaskForU.Api"), "JWT issuer")
	fs.StringVar(&cfg.jwt.audience, "jwt-audience", envOr("JWT_AUDIENCE", "TaskForU.Client"), "JWT audience")
	fs.DurationVar(&cfg.jwt.ttl, "jwt-ttl", 24*time.Hour, "JWT lifetime")

	fs.IntVar(&cfg.bcryptCost, "bcrypt-cost", minBcryptCost, "bcrypt cost factor (at least 12)")

	fs.BoolVar(&cfg.limiter.enabled, "limiter-enabled", true, "Enable per-IP rate limiter")
	fs.Float64Var(&cfg.limiter.maxRequestPerSecond, "limiter-rps", 2, "Rate limiter maximum requests per second")
	fs.IntVar(&cfg.limiter.burst, "limiter-burst", 4, "Rate limiter maximum burst")

	fs.BoolVar(&cfg.trustProxy, "trust-proxy", false, "Take the client address from X-Forwarded-For / X-Real-IP (only behind a trusted proxy)")

	fs.IntVar(&cfg.login.maxFailures, "login-max-failures", 5, "Failed logins per email before lockout (0 disables)")
	fs.DurationVar(&cfg.login.lockout, "login-lockout", 15*time.Minute, "Failed login counting window")

	fs.Func("cors-trusted-origins", "Trusted CORS origins (space separated)", func(val string) error {
		cfg.cors.trustedOrigins = strings.Fields(val)
		return nil
	})

	fs.StringVar(&cfg.smtp.host, "smtp-host", os.Getenv("SMTP_HOST"), "SMTP host (empty disables e-mail)")
	fs.IntVar(&cfg.smtp.port, "smtp-port", envInt("SMTP_PORT", 587), "SMTP port")
	fs.StringVar(&cfg.smtp.username, "smtp-username", os.Getenv("SMTP_USERNAME"), "SMTP username")
	fs.StringVar(&cfg.smtp.password, "smtp-password", os.Getenv("SMTP_PASSWORD"), "SMTP password")
	fs.StringVar(&cfg.smtp.sender, "smtp-sender", envOr("SMTP_SENDER", "TaskForU <no-reply@taskforu.com>"), "SMTP sender")

	fs.BoolVar(&cfg.seedDemo, "seed-demo", false, "Create the demo account and sample tasks if missing")

	displayVersion := fs.Bool("version", false, "Display version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if cfg.cors.trustedOrigins == nil {
		cfg.cors.trustedOrigins = strings.Fields(os.Getenv("CORS_TRUSTED_ORIGINS"))
	}
	if cfg.bcryptCost < minBcryptCost {
		return cfg, false, fmt.Errorf("bcrypt-cost must be at least %d", minBcryptCost)
	}
	if cfg.jwt.ttl <= 0 {
		return cfg, false, errors.New("jwt-ttl must be positive")
	}
	return cfg, *displayVersion, nil
}

func setupSlog() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	logger := setupSlog()

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("environment_file_load_failed", "error", err)
	}

	cfg, showVersion, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logger.Error("config_invalid", "error", err)
		os.Exit(2)
	}
	if showVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	if cfg.jwt.secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("jwt_secret_generation_failed", "error", err)
			os.Exit(1)
		}
		cfg.jwt.secret = string(secret)
		logger.Warn("jwt_secret_generated", "detail", "no JWT secret configured; tokens will not survive a restart")
	}

	db, err := openDB(cfg)
	if err != nil {
		logger.Error("database_connection_failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database_connection_established")

	if err := migrate(context.Background(), db); err != nil {
		logger.Error("database_migration_failed", "error", err)
		os.Exit(1)
	}

	gdb, err := openGorm(db, logger)
	if err != nil {
		logger.Error("gorm_initialization_failed", "error", err)
		os.Exit(1)
	}

	tokens := newTokenIssuer(cfg.jwt.secret, cfg.jwt.issuer, cfg.jwt.audience, cfg.jwt.ttl)
	app := &application{
		config: cfg,
		logger: logger,
		auth: &authService{
			users:    newUserStorage(db, cfg.db.timeout),
			tokens:   tokens,
			throttle: newLoginThrottle(cfg.login.maxFailures, cfg.login.lockout),
			hashCost: cfg.bcryptCost,
			logger:   logger,
		},
		tasks: newTaskService(newTaskStorage(gdb, cfg.db.timeout), logger),
	}
	if cfg.smtp.host != "" {
		app.mailer, err = newMailer(cfg.smtp.host, cfg.smtp.port, cfg.smtp.username, cfg.smtp.password, cfg.smtp.sender)
		if err != nil {
			logger.Error("mailer_initialization_failed", "error", err)
			os.Exit(1)
		}
	}

	if cfg.seedDemo {
		if err := app.seedDemo(context.Background()); err != nil {
			logger.Error("demo_seed_failed", "error", err)
			os.Exit(1)
		}
	}

	if err := app.serve(); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}
