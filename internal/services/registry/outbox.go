package registry

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/fircargo/cargotrack/internal/broker/messages"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaNotifier откладывает доставку уведомлений в kafka: пачка на сотни
// кодов отвечает персоналу сразу, а доставку добивает notify-worker.
// Ключ — код, чтобы уведомления по одному коду шли в одну партицию.
type KafkaNotifier struct {
	producer Producer
	topic    string
}

func NewKafkaNotifier(producer Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, code string, chatID int64, status string) bool {
	b, err := json.Marshal(messages.NotifyRequested{Code: code, ChatID: chatID, Status: status})
	if err != nil {
		log.WithField("code", code).Errorf("marshal notify request: %v", err)
		return false
	}
	if err := n.producer.Publish(ctx, n.topic, []byte(code), b); err != nil {
		log.
			WithFields(log.Fields{"code": code, "chat_id": chatID}).
			Errorf("publish notify request: %v", err)
		return false
	}
	return true
}
