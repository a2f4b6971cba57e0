package cli

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Fuelgate/internal/clock"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/config"
	"github.com/SmitUplenchwar2687/Fuelgate/internal/storage"
)

type storageOptions struct {
	backend           string
	cleanupInterval   time.Duration
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisCluster      bool
	redisClusterNodes []string
	redisPoolSize     int
	redisPrefix       string
}

func (o *storageOptions) addFlags(cmd *cobra.Command) {
	d := config.Default().Storage
	cmd.Flags().StringVar(&o.backend, "storage", d.Backend, "failed-attempt storage backend (memory, redis)")
	cmd.Flags().DurationVar(&o.cleanupInterval, "storage-cleanup-interval", d.CleanupInterval, "expired counter sweep interval for the memory backend")
	cmd.Flags().StringVar(&o.redisHost, "redis-host", d.Redis.Host, "redis host (or host:port)")
	cmd.Flags().IntVar(&o.redisPort, "redis-port", d.Redis.Port, "redis port")
	cmd.Flags().StringVar(&o.redisPassword, "redis-password", "", "redis password")
	cmd.Flags().IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	cmd.Flags().StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	cmd.Flags().IntVar(&o.redisPoolSize, "redis-pool-size", d.Redis.PoolSize, "redis connection pool size")
	cmd.Flags().StringVar(&o.redisPrefix, "redis-prefix", d.Redis.Prefix, "key prefix for attempt counters")
}

// applyTo copies explicitly set flags over cfg.
func (o *storageOptions) applyTo(cmd *cobra.Command, cfg *config.StorageConfig) error {
	f := cmd.Flags()
	if f.Changed("storage") {
		cfg.Backend = o.backend
	}
	if f.Changed("storage-cleanup-interval") {
		cfg.CleanupInterval = o.cleanupInterval
	}
	if f.Changed("redis-host") {
		cfg.Redis.Host = o.redisHost
	}
	if f.Changed("redis-port") {
		cfg.Redis.Port = o.redisPort
	}
	if f.Changed("redis-password") {
		cfg.Redis.Password = o.redisPassword
	}
	if f.Changed("redis-db") {
		cfg.Redis.DB = o.redisDB
	}
	if f.Changed("redis-cluster") {
		cfg.Redis.Cluster = o.redisCluster
	}
	if f.Changed("redis-cluster-nodes") {
		cfg.Redis.ClusterNodes = append([]string(nil), o.redisClusterNodes...)
	}
	if f.Changed("redis-pool-size") {
		cfg.Redis.PoolSize = o.redisPoolSize
	}
	if f.Changed("redis-prefix") {
		cfg.Redis.Prefix = o.redisPrefix
	}

	if cfg.Redis.Cluster {
		return nil
	}
	host, port, err := normalizeRedisHostPort(cfg.Redis.Host, cfg.Redis.Port)
	if err != nil {
		return err
	}
	cfg.Redis.Host = host
	cfg.Redis.Port = port
	return nil
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis host %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}

// createAttemptStore opens the configured backend. For the memory backend
// with a lockout window it also starts the expiry sweep, which stops with
// ctx.
func createAttemptStore(ctx context.Context, cfg config.Config, clk clock.Clock, logger zerolog.Logger) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case storage.BackendMemory:
		mem := storage.NewMemoryStorage(clk)
		if cfg.Lockout.Window > 0 && cfg.Storage.CleanupInterval > 0 {
			go mem.RunCleanup(ctx, cfg.Storage.CleanupInterval)
		}
		logger.Info().Str("backend", storage.BackendMemory).Msg("attempt counters are process-local and reset on restart")
		return mem, nil
	case storage.BackendRedis:
		r := cfg.Storage.Redis
		store, err := storage.NewRedisStorage(ctx, &storage.RedisConfig{
			Host:         r.Host,
			Port:         r.Port,
			Password:     r.Password,
			DB:           r.DB,
			Cluster:      r.Cluster,
			ClusterNodes: r.ClusterNodes,
			PoolSize:     r.PoolSize,
			MaxRetries:   r.MaxRetries,
			DialTimeout:  r.DialTimeout,
			Prefix:       r.Prefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Warn().Str("backend", storage.BackendRedis).Msg("attempt counters are shared and survive restarts")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
