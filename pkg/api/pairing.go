// Package api содержит типы провода, общие для сервера и клиентов
package api

// Заголовки и query-параметры протокола
const (
	// HeaderMessage - заголовок с шифротекстом handshake (AES или RSA стадия)
	HeaderMessage = "m"
	// HeaderClientID - заголовок с идентификатором устройства
	// для пути переподключения по постоянному ключу
	HeaderClientID = "i"

	// QueryClientID - параметр clientId при установке сессии
	QueryClientID = "i"
	// QueryConnectProof - параметр AES(permanentKey, connect) при установке сессии
	QueryConnectProof = "t"
)

// PairResult - полезная нагрузка ответа на pairing по коду подключения.
// Шифруется RSA-OAEP под публичный ключ устройства
type PairResult struct {
	ClientID   string `json:"clientId"`   // ClientID выданный идентификатор устройства
	Key        string `json:"key"`        // Key постоянный AES ключ устройства (base64)
	ServerName string `json:"serverName"` // ServerName имя сервера для отображения
}
