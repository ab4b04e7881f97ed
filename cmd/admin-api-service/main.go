package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/adminapi"
	"storefront/pkg/config"
	pdb "storefront/pkg/db"
	"storefront/pkg/logger"
	"storefront/pkg/stores"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := pdb.MustConnect(cfg, log)
	var prov stores.Provider
	if pool != nil {
		prov = stores.NewPostgresProvider(pool, log, cfg.EncryptionKey)
	} else {
		prov = stores.NewMemoryProviderFromEnv(cfg, log)
	}

	app, err := adminapi.New(context.Background(), log, pool, prov, adminapi.Config{
		Env:            cfg.Env,
		OIDCIssuer:     cfg.AdminIssuer,
		OIDCAudience:   cfg.AdminAudience,
		JWKSURL:        cfg.AdminJWKSURL,
		AllowedOrigins: cfg.AdminOrigins,
		RegistryDir:    cfg.RegistryDir,
		EncryptionKey:  cfg.EncryptionKey,
	})
	if err != nil {
		log.Fatalf("admin-api: %v", err)
	}

	srv := &http.Server{Addr: cfg.AdminAddr, Handler: app.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infof("admin-api listening at %s", cfg.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
