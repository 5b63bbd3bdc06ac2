package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~jakintosh/keycheck/internal/api"
	"git.sr.ht/~jakintosh/keycheck/internal/config"
	"git.sr.ht/~jakintosh/keycheck/internal/database"
	"git.sr.ht/~jakintosh/keycheck/internal/logging"
	"git.sr.ht/~jakintosh/keycheck/internal/resources"
	"git.sr.ht/~jakintosh/keycheck/internal/service"
	"git.sr.ht/~jakintosh/keycheck/pkg/tokens"
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
	flagSet := pflag.NewFlagSet("keycheck-server", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "YAML config file")
	envFile := flagSet.String("env-file", ".env", "dotenv file loaded before reading the environment")
	listen := flagSet.String("listen", "", "listen address (overrides KEYCHECK_LISTEN)")
	dbPath := flagSet.String("db", "", "SQLite database path (overrides KEYCHECK_DB_PATH)")
	catalogDir := flagSet.String("catalog-dir", "", "directory of extra check definitions, reloaded on change")
	signingKey := flagSet.String("signing-key", "", "DER signing key path, created if missing")
	exportKey := flagSet.String("export-verification-key", "", "write the DER verification key to this path")
	keys := flagSet.StringArray("key", nil, "key to register as 'profile:value' or 'profile:label:value' (repeatable)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.Listen = *listen
	}
	if flagSet.Changed("db") {
		cfg.DBPath = *dbPath
	}
	if flagSet.Changed("catalog-dir") {
		cfg.CatalogDir = *catalogDir
	}
	if flagSet.Changed("signing-key") {
		cfg.SigningKeyPath = *signingKey
	}
	for _, raw := range *keys {
		seed, err := config.ParseKeySeed(raw)
		if err != nil {
			return fmt.Errorf("--key: %w", err)
		}
		cfg.Keys = append(cfg.Keys, seed)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logging.New(cfg.Log)

	key, err := tokens.LoadOrCreateSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return err
	}
	if *exportKey != "" {
		if err := writeVerificationKey(*exportKey, &key.PublicKey); err != nil {
			return err
		}
		log.Infof("wrote verification key to %s", *exportKey)
	}

	db, err := database.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := service.NewCheckCatalog(cfg.CatalogDir, cfg.TokenLifetime, log)
	if err != nil {
		return err
	}
	if cfg.CatalogDir != "" {
		watcher, err := catalog.Watch(resources.DefaultDebounce)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	issuer, validator := tokens.InitServer(key, cfg.IssuerDomain)
	svc := service.New(db.KeyStore(), catalog, issuer, validator, service.HashModeProduction, log)
	if err := seedKeys(svc, cfg.Keys, log); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(svc, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv, log)
}

// seedKeys registers configured keys. Keys already registered under the
// same label are left as they are.
func seedKeys(svc *service.Service, seeds []config.KeySeed, log logrus.FieldLogger) error {
	for _, seed := range seeds {
		err := svc.RegisterKey(seed.Profile, seed.Label, seed.Value)
		switch {
		case errors.Is(err, service.ErrKeyExists):
			log.Debugf("key '%s' for %s already registered", seed.Label, seed.Profile)
		case err != nil:
			return fmt.Errorf("failed to seed key '%s' for %s: %w", seed.Label, seed.Profile, err)
		default:
			log.Infof("registered key '%s' for %s", seed.Label, seed.Profile)
		}
	}
	return nil
}

func writeVerificationKey(path string, pub *ecdsa.PublicKey) error {
	der, err := tokens.EncodeVerificationKey(pub)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, der, 0644); err != nil {
		return fmt.Errorf("write verification key: %w", err)
	}
	return nil
}

func serve(ctx context.Context, srv *http.Server, log logrus.FieldLogger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("listening on %s", srv.Addr)
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
