package models

import "time"

// Статусы трек-кодов. Движок хранит любую строку, но уведомления
// и шаблоны определены только для этих четырёх.
const (
	StatusOutOfStock = "out_of_stock"
	StatusInStock    = "in_stock"
	StatusShipped    = "shipped"
	StatusArrived    = "arrived"
)

type TrackCode struct {
	ID          uint64
	Code        string
	Status      string
	OwnerChatID *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Owned reports whether the code is bound to a customer chat.
func (t *TrackCode) Owned() bool {
	return t.OwnerChatID != nil
}

// BulkEntry — одна позиция массового импорта: код и необязательный
// внутренний ID владельца (из текста вида "AB123 FS0042").
type BulkEntry struct {
	Code       string
	InternalID *int64
}

type BulkSummary struct {
	Created int
	Updated int
	Total   int
}

type AssignSummary struct {
	Assigned int
	Created  int
}
