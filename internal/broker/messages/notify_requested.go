package messages

// NotifyRequested — запрос на доставку уведомления владельцу кода.
// Публикуется массовым импортом после коммита, потребляется notify-worker.
type NotifyRequested struct {
	Code   string `json:"code"`
	ChatID int64  `json:"chat_id"`
	Status string `json:"status"`
}
