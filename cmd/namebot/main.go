package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/app"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/config"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/security"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if errRun := run(ctx, os.Args[1:], os.Stdout); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run parses flags, loads config, and runs the selected command.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("namebot", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	envPath := fs.String("env-file", ".env", "optional dotenv file with credentials")
	port := fs.Int("port", 8318, "http server port (health, metrics, admin api, webhook)")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")
	hashPassword := fs.String("hash-password", "", "print a bcrypt hash for ADMIN_PASSWORD_HASH and exit")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if *hashPassword != "" {
		hash, errHash := security.HashPassword(*hashPassword)
		if errHash != nil {
			return errHash
		}
		_, errWrite := fmt.Fprintln(stdout, hash)
		return errWrite
	}

	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}
	if errEnv := config.LoadDotEnv(*envPath); errEnv != nil {
		return errEnv
	}

	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(*cfgPath)
	}

	if *migrateOnly {
		return app.Migrate(ctx, appCfg)
	}
	if !config.ConfigExists(appCfg.ConfigPath) {
		log.Infof("config file %s not found, using environment only", appCfg.ConfigPath)
	}
	return app.RunServer(ctx, appCfg, *port)
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
