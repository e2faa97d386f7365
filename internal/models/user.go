package models

import (
	"fmt"
	"time"
)

// User — запись справочника клиентов. Короткий внутренний ID (FS0001)
// используется персоналом, chat_id — для доставки уведомлений.
type User struct {
	ID        int64
	ChatID    int64
	Name      string
	Username  *string
	Phone     *string
	CreatedAt time.Time
}

// FormatInternalID renders the staff-facing short ID, e.g. FS0042.
func FormatInternalID(id int64) string {
	return fmt.Sprintf("FS%04d", id)
}
