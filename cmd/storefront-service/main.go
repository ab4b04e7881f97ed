// cmd/storefront-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/medusa"
	"storefront/internal/payments"
	"storefront/internal/storefront"
	"storefront/internal/web"
	"storefront/pkg/config"
	"storefront/pkg/db"
	"storefront/pkg/locks"
	"storefront/pkg/logger"
	"storefront/pkg/middleware"
	"storefront/pkg/regions"
	"storefront/pkg/sessions"
	"storefront/pkg/stores"
	"storefront/pkg/usage"
)

var version = "dev"

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var prov stores.Provider
	if pool != nil {
		prov = stores.NewPostgresProvider(pool, log, cfg.EncryptionKey)
		if err := stores.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if cfg.StoreSeedFile != "" {
			defs, err := stores.LoadDefinitionsFile(cfg.StoreSeedFile, log)
			if err != nil {
				log.Warnw("store seed file", "file", cfg.StoreSeedFile, "err", err)
			} else if n, err := stores.SeedFromDefinitions(context.Background(), pool, defs, []byte(cfg.EncryptionKey)); err != nil {
				log.Warnw("seed", "err", err)
			} else {
				log.Infow("stores seeded", "count", n)
			}
		}
	} else {
		prov = stores.NewMemoryProviderFromEnv(cfg, log)
	}

	var sessStore sessions.Store
	var locker locks.Locker
	if rdb != nil {
		sessStore = sessions.NewRedisStore(rdb, "", cfg.SessionTTL)
		locker = locks.NewRedisLocker(rdb, "")
	} else {
		sessStore = sessions.NewMemoryStore(cfg.SessionTTL)
		locker = locks.NewMemoryLocker()
	}

	usage.MustRegister(prometheus.DefaultRegisterer)
	recorder := usage.NewRecorder(pool, log)
	clients := medusa.NewPool(cfg.UpstreamTimeout, recorder)
	svc := storefront.New(storefront.Deps{
		Clients:  clients,
		Regions:  regions.NewCache(func(s stores.Store) regions.Source { return clients.For(s) }, cfg.RegionCacheTTL),
		Locks:    locker,
		Verifier: payments.NewVerifier(log, nil),
		Log:      log,
	})
	site, err := web.New(svc, web.Options{ServiceName: "storefront-service", Version: version, CookieName: cfg.SessionCookie})
	if err != nil {
		log.Fatalw("templates", "err", err)
	}

	var hashKey []byte
	if cfg.SessionSecret != "" {
		hashKey = []byte(cfg.SessionSecret)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.DebugWriteHeader(log))
	r.Use(middleware.Tracing(cfg))
	r.Use(middleware.WithStore(prov))
	r.Use(middleware.TraceStore())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Session(sessStore, middleware.SessionOptions{
		CookieName: cfg.SessionCookie,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.SecureCookies,
		HashKey:    hashKey,
	}))
	r.Use(middleware.CustomerAuth())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("pong")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	site.Routes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("storefront-service listening", "addr", cfg.HTTPAddr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if err := recorder.Close(ctx); err != nil {
		log.Warnw("usage flush", "err", err)
	}
	if pool != nil {
		pool.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	fmt.Println("storefront-service stopped")
}
