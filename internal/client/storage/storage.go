// Package storage описывает локальную персистентность клиента:
// идентичность устройства и локальная копия документа списков
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/listkeeper/listsync/internal/models"
)

// Common client storage errors
var (
	// ErrIdentityNotFound indicates the device has not been paired yet
	ErrIdentityNotFound = errors.New("device identity not found")
)

// Identity представляет выданную при pairing идентичность устройства
type Identity struct {
	ClientID   string    `json:"clientId"`   // ClientID идентификатор устройства
	Key        string    `json:"key"`        // Key постоянный AES ключ (base64)
	ServerURL  string    `json:"serverUrl"`  // ServerURL адрес relay
	ServerName string    `json:"serverName"` // ServerName имя relay для отображения
	DeviceName string    `json:"deviceName"` // DeviceName имя этого устройства
	PairedAt   time.Time `json:"pairedAt"`   // PairedAt время привязки
}

// IdentityStorage defines interface for storing the device identity
type IdentityStorage interface {
	// SaveIdentity stores the identity issued at pairing
	SaveIdentity(ctx context.Context, identity *Identity) error

	// GetIdentity retrieves the stored identity
	// Returns ErrIdentityNotFound if the device has not been paired
	GetIdentity(ctx context.Context) (*Identity, error)

	// DeleteIdentity removes the stored identity (unpair)
	DeleteIdentity(ctx context.Context) error
}

// ListDataStorage defines interface for the local list-data document
type ListDataStorage interface {
	// GetListData returns the local document.
	// Пустой документ, если данных еще нет
	GetListData(ctx context.Context) (models.ListData, error)

	// SaveListData persists the local document
	SaveListData(ctx context.Context, doc models.ListData) error
}
