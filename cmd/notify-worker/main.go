package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fircargo/cargotrack/config"
	"github.com/fircargo/cargotrack/internal/broker/kafka"
	"github.com/fircargo/cargotrack/internal/services/notifier"
	"github.com/fircargo/cargotrack/internal/storage/pgregistry"
	"github.com/fircargo/cargotrack/internal/transport/telegram"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	if cfg.Telegram.Token == "" {
		panic("telegram token is required")
	}

	topic := cfg.Kafka.NotifyTopicName
	if topic == "" {
		topic = "trackcode.notify"
	}
	group := cfg.Registry.KafkaConsumerGroup
	if group == "" {
		group = "notify-worker"
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pgregistry.New(connString, 0)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	tg, err := telegram.New(cfg.Telegram.Token)
	if err != nil {
		panic(err)
	}

	d := notifier.New(tg, st)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	c := kafka.NewConsumer(brokers, topic, group)
	defer func() { _ = c.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.WithFields(log.Fields{"topic": topic, "group": group}).Info("notify worker started")

	for {
		err := runNotifyWorker(ctx, c, d)
		if ctx.Err() != nil {
			return
		}
		log.Errorf("notify worker consume failed, retrying: %v", err)
		time.Sleep(3 * time.Second)
	}
}
