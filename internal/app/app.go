// Package app wires configuration, storage and transports into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/analysis"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/bot"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/config"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/db"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/estimator"
	internalhttp "github.com/Xcertik-Realist/X-name-change-bot/internal/http/api/admin"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/logging"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup/xapi"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/ratelimit"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/scanner"
	internalsettings "github.com/Xcertik-Realist/X-name-change-bot/internal/settings"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/store"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultPort     = 8318
	shutdownTimeout = 10 * time.Second
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	conn, err := openDatabase(configPath)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("database migrations applied")
	return nil
}

// RunServer starts the bot, the HTTP server and background refreshers, and
// blocks until ctx is cancelled or the HTTP server fails.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	logCloser, errLogging := logging.Setup(config.LoadLogConfig(configPath))
	if errLogging != nil {
		return errLogging
	}
	defer func() {
		if errClose := logCloser.Close(); errClose != nil {
			log.WithError(errClose).Warn("close log file failed")
		}
	}()

	telegramCfg, errTelegram := config.LoadTelegramConfig(configPath)
	if errTelegram != nil {
		return errTelegram
	}
	xCfg, errX := config.LoadXAPIConfig(configPath)
	if errX != nil {
		return errX
	}
	if xCfg.BearerToken == "" {
		return fmt.Errorf("missing x api bearer token (set %s or `x-api.bearer-token`)", config.EnvTwitterBearerToken)
	}
	jwtCfg, _ := config.LoadJWTConfig(configPath)
	adminCfg, errAdmin := config.LoadAdminConfig(configPath)
	if errAdmin != nil {
		return errAdmin
	}

	conn, err := openDatabase(configPath)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := internalsettings.Refresh(ctx, conn); errRefresh != nil {
		return errRefresh
	}
	internalsettings.NewRefresher(conn, 0).Start(ctx)

	limiter := ratelimit.NewGormLimiter(conn)
	admission := ratelimit.NewManager(nil, limiter, nil, nil)
	defer func() {
		if errClose := admission.Close(); errClose != nil {
			log.WithError(errClose).Warn("close rate limit backend failed")
		}
	}()

	source := xapi.NewClient(xapi.Options{
		BaseURL:           xCfg.BaseURL,
		BearerToken:       xCfg.BearerToken,
		RequestTimeout:    xCfg.RequestTimeout,
		RequestsPerMinute: xCfg.RequestsPerMinute,
	})
	mentions := scanner.NewMentionScanner(source, xCfg.MentionLimit, xCfg.RequestTimeout)
	replies := scanner.NewReplyScanner(source, scanner.ReplyScannerOptions{
		TimelineLimit:    xCfg.TimelineLimit,
		RepliesPerThread: xCfg.RepliesPerThread,
		Concurrency:      xCfg.ReplyConcurrency,
		CallTimeout:      xCfg.RequestTimeout,
	})
	analyzer := analysis.NewAnalyzer(source, mentions, replies, estimator.New(nil))
	queries := store.NewQueryLog(conn)

	telegram, errConnect := bot.NewTelegram(bot.TelegramOptions{
		Token:      telegramCfg.Token,
		WebhookURL: telegramCfg.WebhookURL,
		Debug:      telegramCfg.Debug,
	})
	if errConnect != nil {
		return errConnect
	}
	controller := bot.NewController(bot.NewSessions(), admission, analyzer, queries, telegram)
	dispatcher := bot.NewDispatcher(ctx, controller)
	defer dispatcher.Stop()

	engine := newEngine()
	internalhttp.RegisterAdminRoutes(engine, internalhttp.Options{
		DB:      conn,
		JWT:     jwtCfg,
		Admin:   adminCfg,
		Queries: queries,
		Limiter: limiter,
	})
	if telegram.UseWebhook() {
		engine.POST(telegram.WebhookPath(), telegram.WebhookHandler(dispatcher))
	}

	if port <= 0 {
		port = defaultPort
	}
	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("http server listening on %s", server.Addr)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			serverErr <- errServe
		}
		close(serverErr)
	}()

	if telegram.UseWebhook() {
		if errRegister := telegram.RegisterWebhook(); errRegister != nil {
			shutdownServer(server)
			return errRegister
		}
	} else {
		go func() {
			if errPoll := telegram.Poll(ctx, dispatcher); errPoll != nil {
				log.WithError(errPoll).Error("telegram polling stopped")
			}
		}()
	}

	log.Infof("bot @%s started with config=%s", telegram.Username(), configPath)
	select {
	case <-ctx.Done():
		shutdownServer(server)
		return nil
	case errServe, ok := <-serverErr:
		if ok && errServe != nil {
			return fmt.Errorf("http server: %w", errServe)
		}
		return nil
	}
}

// openDatabase connects to the configured database, falling back to a local
// SQLite file when no DSN is configured.
func openDatabase(configPath string) (*gorm.DB, error) {
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		if !errors.Is(err, config.ErrMissingDatabaseDSN) {
			return nil, err
		}
		dsn = db.SQLiteDSN(db.DefaultSQLitePath)
		log.Infof("no database dsn configured, using %s", db.DefaultSQLitePath)
	}
	if info, errDescribe := describeDSN(dsn); errDescribe == nil {
		log.Infof("database: %s", info)
	}
	return db.Open(dsn)
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	return engine
}

// requestLogger logs completed HTTP requests through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(ctx); errShutdown != nil {
		log.WithError(errShutdown).Warn("http server shutdown failed")
	}
}
