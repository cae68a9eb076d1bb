package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"ccaccess.org/internal/config"
	"ccaccess.org/internal/crypt/kms"
	"ccaccess.org/internal/httpapi"
	"ccaccess.org/internal/identity/cognito"
	"ccaccess.org/internal/notify/ses"
	"ccaccess.org/internal/obs"
	"ccaccess.org/internal/registration"
	replaypg "ccaccess.org/internal/replay/pg"
	"ccaccess.org/internal/token"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	gateway, err := kms.NewFromConfig(awsCfg, cfg.KMSKeyID)
	if err != nil {
		log.Fatalf("kms gateway: %v", err)
	}
	provider, err := cognito.NewProviderFromConfig(awsCfg, cfg.UserPoolID)
	if err != nil {
		log.Fatalf("cognito provider: %v", err)
	}
	notifier := ses.NewFromConfig(awsCfg, cfg.FromEmail, cfg.AdminEmail)

	codec, err := token.NewCodec(cfg.SigningSecret)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// Durable consumed-token store when a DSN is configured; without
	// it links stay valid until expiry, as in the original deployment.
	var db *sql.DB
	opts := []registration.Option{registration.WithTTL(cfg.RegistrationTTL)}
	if cfg.PGDSN != "" {
		store, err := replaypg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open replay store: %v", err)
		}
		db = store.DB()
		opts = append(opts, registration.WithReplayStore(store))
	}

	svc, err := registration.NewService(cfg.AdminEmail, codec, gateway, provider, notifier, opts...)
	if err != nil {
		log.Fatalf("registration service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version, cfg.BaseURL)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting cca-approvald %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
