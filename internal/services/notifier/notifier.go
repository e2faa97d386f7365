package notifier

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrRecipientGone — постоянный отказ доставки: чата больше нет или бот
// заблокирован. Транспорт обязан обернуть такие ошибки этим sentinel.
var ErrRecipientGone = errors.New("recipient gone")

type Transport interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type OwnerClearer interface {
	ClearOwner(ctx context.Context, code string, ownerChatID int64) error
}

// Dispatcher доставляет клиенту сообщение о смене статуса best-effort.
// Ошибки доставки классифицируются на два ведра: постоянные лечатся
// сбросом владельца, остальные только логируются. Наружу ошибки не
// поднимаются никогда — один недоступный клиент не должен ронять пачку.
type Dispatcher struct {
	transport Transport
	store     OwnerClearer
}

func New(transport Transport, store OwnerClearer) *Dispatcher {
	return &Dispatcher{transport: transport, store: store}
}

func (d *Dispatcher) Notify(ctx context.Context, code string, chatID int64, status string) bool {
	text, ok := statusMessage(code, status)
	if !ok {
		log.
			WithFields(log.Fields{"code": code, "status": status}).
			Warn("no notification template for status, skipping")
		return false
	}

	err := d.transport.Send(ctx, chatID, text)
	if err == nil {
		return true
	}

	if errors.Is(err, ErrRecipientGone) {
		log.
			WithFields(log.Fields{"code": code, "chat_id": chatID}).
			Warnf("recipient unreachable, unbinding owner: %v", err)

		// Сбрасываем именно недоступного владельца: если код уже
		// перепривязан, чужую свежую привязку не трогаем.
		if cerr := d.store.ClearOwner(ctx, code, chatID); cerr != nil {
			log.
				WithFields(log.Fields{"code": code, "chat_id": chatID}).
				Errorf("clear owner after permanent failure: %v", cerr)
		}
		return false
	}

	// Временный или неопознанный сбой: строку не трогаем, следующий
	// переход статуса попробует ещё раз.
	log.
		WithFields(log.Fields{"code": code, "chat_id": chatID, "status": status}).
		Errorf("notification delivery failed: %v", err)
	return false
}
