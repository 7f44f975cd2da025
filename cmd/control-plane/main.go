// cmd/control-plane/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"graphplane/internal/auth"
	"graphplane/internal/graph"
	"graphplane/internal/manager"
	"graphplane/internal/operations"
	"graphplane/pkg/audit"
	"graphplane/pkg/config"
	"graphplane/pkg/db"
	"graphplane/pkg/logger"
	"graphplane/pkg/tenants"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to tenant configuration YAML")
		tenantID   = flag.String("tenant-id", "", "tenant ID to target")
		operation  = flag.String("operation", "", "operation to run: list-users | create-security-group")
		groupName  = flag.String("group-name", "", "display name for group creation")
		groupDesc  = flag.String("group-description", "", "description for group creation")
		top        = flag.Int("top", 10, "number of users to list")
	)
	flag.Parse()
	if *configPath == "" || *tenantID == "" || *operation == "" {
		fmt.Fprintln(os.Stderr, "-config, -tenant-id and -operation are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.New(cfg.Env)

	seed, err := config.LoadTenants(*configPath)
	if err != nil {
		log.Fatalw("load tenants", "err", err)
	}

	store := audit.NewStore(cfg.AuditBufferSize)
	auditLog := audit.New(store, os.Stdout)

	registry := tenants.NewMemoryRegistry(log, seed...)
	mgr := manager.New(registry, auditLog,
		manager.WithResolverOptions(auth.WithTokenCache(auth.NewTokenCache(db.MustRedis(cfg, log)))),
		manager.WithGraphOptions(graph.WithTimeout(cfg.GraphTimeout), graph.WithMaxRetries(cfg.GraphMaxRetries)),
	)

	ctx := context.Background()
	var op manager.Operation
	switch *operation {
	case "list-users":
		op = func(ctx context.Context, ops *operations.Ops) (any, error) {
			return ops.ListUsers(ctx, *top)
		}
	case "create-security-group":
		if *groupName == "" || *groupDesc == "" {
			log.Fatalw("missing flags", "err", "-group-name and -group-description are required for group creation")
		}
		op = func(ctx context.Context, ops *operations.Ops) (any, error) {
			return ops.CreateSecurityGroup(ctx, *groupName, *groupDesc)
		}
	default:
		log.Fatalw("unsupported operation", "operation", *operation)
	}

	result, err := mgr.RunOperation(ctx, *tenantID, op, "")
	if err != nil {
		log.Fatalw("operation failed", "tenant_id", *tenantID, "err", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalw("encode result", "err", err)
	}
	fmt.Println(string(out))
}
