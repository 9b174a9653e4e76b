package models

import (
	"encoding/json"
	"time"
)

// Snapshot представляет неизменяемую копию документа списков,
// сделанную перед деструктивной операцией.
// Читается только оператором при восстановлении, движок снапшоты не читает
type Snapshot struct {
	ID        string          `json:"id"`         // ID уникальный идентификатор снапшота (UUID)
	CreatedAt time.Time       `json:"created_at"` // CreatedAt время создания
	Data      json.RawMessage `json:"data"`       // Data сериализованный ListData на момент снапшота
}
