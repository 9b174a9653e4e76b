package models

import "time"

// Типы событий журнала сервера
const (
	EventSessionOpen = "session_open"
	EventListChanged = "list_changed"
)

// Event представляет одно событие жизненного цикла для подписчиков
// (админ-статистика, backup) и журнала в БД
type Event struct {
	ID        int64     `json:"id"`         // ID автоинкремент в журнале
	User      string    `json:"user"`       // User имя аккаунта
	ClientID  string    `json:"client_id"`  // ClientID устройство-источник
	Type      string    `json:"type"`       // Type тип события
	Detail    string    `json:"detail"`     // Detail описание (имя действия, режим сверки)
	CreatedAt time.Time `json:"created_at"` // CreatedAt время события
}
