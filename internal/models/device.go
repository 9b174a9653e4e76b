package models

import "time"

// DeviceKeyInfo представляет привязанное устройство аккаунта.
// Создается при успешном pairing и хранится на сервере;
// permanentKey - постоянный симметричный ключ устройства.
type DeviceKeyInfo struct {
	ClientID        string    `json:"clientId"`        // ClientID уникальный идентификатор устройства (UUID)
	Key             string    `json:"key"`             // Key постоянный AES-128 ключ (base64, 16 bytes)
	DeviceName      string    `json:"deviceName"`      // DeviceName человекочитаемое имя устройства
	IsMobile        bool      `json:"isMobile"`        // IsMobile мобильное устройство (требует app-level ping)
	LastConnectDate time.Time `json:"lastConnectDate"` // LastConnectDate время последнего подключения
}
