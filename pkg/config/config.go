// pkg/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"graphplane/pkg/tenants"
)

type Config struct {
	Env      string
	HTTPAddr string // webapp-service

	// Path to the tenant configuration YAML.
	TenantConfigPath string

	// Postgres registry & redis token cache (both optional)
	DatabaseURL string
	RedisURL    string

	// Audit ring buffer capacity.
	AuditBufferSize int

	// Graph dispatcher policy.
	GraphTimeout    time.Duration
	GraphMaxRetries int
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:              env("GRAPHPLANE_ENV", "dev"),
		HTTPAddr:         env("GRAPHPLANE_HTTP_ADDR", ":8080"),
		TenantConfigPath: env("TENANT_CONFIG", "config/tenants.yaml"),
		DatabaseURL:      env("DATABASE_URL", ""),
		RedisURL:         env("REDIS_URL", ""),
		AuditBufferSize:  envInt("AUDIT_BUFFER_SIZE", 1000),
		GraphTimeout:     envDur("GRAPH_TIMEOUT_SEC", 30) * time.Second,
		GraphMaxRetries:  envInt("GRAPH_MAX_RETRIES", 3),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory tenant registry")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}

type tenantFile struct {
	Tenants []tenants.TenantConfig `yaml:"tenants"`
}

// LoadTenants reads the tenant configuration YAML. Decoding is strict: any
// unknown field, at any level, fails the load.
func LoadTenants(path string) ([]tenants.TenantConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("configuration file not found: %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var tf tenantFile
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	seen := make(map[string]bool, len(tf.Tenants))
	for _, t := range tf.Tenants {
		if seen[t.TenantID] {
			return nil, fmt.Errorf("duplicate tenant_id %q in %s", t.TenantID, path)
		}
		seen[t.TenantID] = true
	}
	return tf.Tenants, nil
}
