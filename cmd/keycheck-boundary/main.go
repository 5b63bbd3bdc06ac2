package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~jakintosh/keycheck/internal/boundary"
	"git.sr.ht/~jakintosh/keycheck/internal/config"
	"git.sr.ht/~jakintosh/keycheck/internal/database"
	"git.sr.ht/~jakintosh/keycheck/internal/logging"
	"git.sr.ht/~jakintosh/keycheck/pkg/identity"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("keycheck-boundary", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "YAML config file")
	envFile := flagSet.String("env-file", ".env", "dotenv file loaded before reading the environment")
	listen := flagSet.String("listen", "", "listen address (overrides KEYCHECK_BOUNDARY_LISTEN)")
	upstream := flagSet.String("upstream", "", "data server URL (overrides KEYCHECK_UPSTREAM)")
	dbPath := flagSet.String("db", "", "SQLite database path (overrides KEYCHECK_BOUNDARY_DB_PATH)")
	secrets := flagSet.StringArray("secret", nil, "secret to store as 'name=value' (repeatable)")
	genKey := flagSet.Bool("generate-seal-key", false, "print a new base64 seal key and exit")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *genKey {
		key, err := boundary.GenerateSealKey()
		if err != nil {
			return err
		}
		fmt.Println(base64.StdEncoding.EncodeToString(key[:]))
		return nil
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.LoadBoundary(*configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.Listen = *listen
	}
	if flagSet.Changed("upstream") {
		cfg.Upstream = *upstream
	}
	if flagSet.Changed("db") {
		cfg.DBPath = *dbPath
	}
	for _, raw := range *secrets {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("--secret must be in format 'name=value'")
		}
		if cfg.Secrets == nil {
			cfg.Secrets = make(map[string]string)
		}
		cfg.Secrets[name] = value
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sealKey, err := cfg.SealKeyBytes()
	if err != nil {
		return err
	}

	log := logging.New(cfg.Log)

	db, err := database.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := boundary.New(boundary.Config{
		Store:  db.SecretStore(),
		Sealer: boundary.NewSealer(sealKey),
		User: identity.Caller{
			DisplayName: cfg.User.DisplayName,
			Email:       cfg.User.Email,
		},
		Upstream: cfg.Upstream,
		Log:      log,
	})
	if err != nil {
		return err
	}
	for name, value := range cfg.Secrets {
		if err := b.SetSecret(name, value); err != nil {
			return fmt.Errorf("failed to seed secret '%s': %w", name, err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           b.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv, log)
}

func serve(ctx context.Context, srv *http.Server, log logrus.FieldLogger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("listening on %s, forwarding to upstream", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
