package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fircargo/cargotrack/config"
	"github.com/fircargo/cargotrack/internal/api/adminapi"
	"github.com/fircargo/cargotrack/internal/broker/kafka"
	"github.com/fircargo/cargotrack/internal/cache/rediscache"
	"github.com/fircargo/cargotrack/internal/services/directory"
	"github.com/fircargo/cargotrack/internal/services/registry"
	"github.com/fircargo/cargotrack/internal/storage/pgregistry"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Registry.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.NotifyTopicName
	if topic == "" {
		topic = "trackcode.notify"
	}
	bulkTimeout := time.Duration(cfg.Registry.BulkTimeoutSeconds) * time.Second
	cacheTTL := time.Duration(cfg.Registry.DirectoryCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	st := mustOpenPostgresWithRetry(pgConnString(cfg), bulkTimeout, 60*time.Second)
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	dir := directory.New(st, rediscache.New(redisAddr), cacheTTL)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	notifier := registry.NewKafkaNotifier(kafka.NewProducer(brokers), topic)

	svc := registry.New(st, dir, notifier)

	var limiter adminapi.RateLimiter
	if cfg.Registry.BulkRateLimitPerMinute > 0 {
		limiter = rediscache.NewRateLimiter(redisAddr)
	}
	api := adminapi.New(svc, st, limiter, int64(cfg.Registry.BulkRateLimitPerMinute))

	lis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runRegistryAPI(ctx, lis, api); err != nil && err != context.Canceled {
		panic(err)
	}
}

func pgConnString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func mustOpenPostgresWithRetry(connString string, bulkTimeout, wait time.Duration) *pgregistry.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgregistry.New(connString, bulkTimeout)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
