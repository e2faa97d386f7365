package main

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/fircargo/cargotrack/internal/broker/kafka"
	"github.com/fircargo/cargotrack/internal/broker/messages"
)

type dispatcher interface {
	Notify(ctx context.Context, code string, chatID int64, status string) bool
}

type consumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

// runNotifyWorker гонит запросы на уведомления из kafka через диспетчер.
// Битое сообщение пропускается с логом, а не стопорит партицию.
func runNotifyWorker(ctx context.Context, c consumer, d dispatcher) error {
	return c.Consume(ctx, func(_key, value []byte) error {
		var m messages.NotifyRequested
		if err := json.Unmarshal(value, &m); err != nil {
			log.Errorf("skip malformed notify request: %v", err)
			return nil
		}

		delivered := d.Notify(ctx, m.Code, m.ChatID, m.Status)
		log.
			WithFields(log.Fields{
				"code":      m.Code,
				"chat_id":   m.ChatID,
				"status":    m.Status,
				"delivered": delivered,
			}).
			Info("notify request processed")
		return nil
	})
}
