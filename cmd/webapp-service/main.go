// cmd/webapp-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"graphplane/internal/auth"
	"graphplane/internal/graph"
	"graphplane/internal/manager"
	"graphplane/internal/webapp"
	"graphplane/pkg/audit"
	"graphplane/pkg/config"
	"graphplane/pkg/db"
	"graphplane/pkg/logger"
	"graphplane/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)

	var registry tenants.Registry
	if pool != nil {
		registry = tenants.NewPostgresRegistry(pool, log)
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
	} else {
		registry = tenants.NewMemoryRegistry(log)
	}

	// Seed the registry from the tenant configuration file when present.
	if seed, err := config.LoadTenants(cfg.TenantConfigPath); err != nil {
		log.Warnw("tenant config not loaded", "path", cfg.TenantConfigPath, "err", err)
	} else {
		for _, t := range seed {
			if err := registry.Upsert(context.Background(), t); err != nil {
				log.Warnw("seed tenant", "tenant_id", t.TenantID, "err", err)
			}
		}
	}

	store := audit.NewStore(cfg.AuditBufferSize)
	auditLog := audit.New(store, os.Stdout)

	mgr := manager.New(registry, auditLog,
		manager.WithResolverOptions(auth.WithTokenCache(auth.NewTokenCache(db.MustRedis(cfg, log)))),
		manager.WithGraphOptions(graph.WithTimeout(cfg.GraphTimeout), graph.WithMaxRetries(cfg.GraphMaxRetries)),
	)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: webapp.New(mgr, store, log).Router(),
	}
	go func() {
		log.Infow("webapp-service listening", "addr", cfg.HTTPAddr)
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
	fmt.Println("webapp-service stopped")
}
