// Package validation проверяет имена аккаунтов и коды подключения
package validation

import (
	"fmt"
	"regexp"
)

// AccountNamePattern определяет допустимый формат имени аккаунта.
// Имя становится сегментом URL при multiUserPath, поэтому только
// латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 1-32 символа
var AccountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,32}$`)

const (
	// MaxAccountNameLen максимальная длина имени аккаунта
	MaxAccountNameLen = 32

	// MinCodeLen минимальная длина кода подключения
	MinCodeLen = 6
)

// ValidateAccountName проверяет, что имя аккаунта пригодно
// как сегмент пути и ключ хранилища
func ValidateAccountName(name string) error {
	if name == "" {
		return fmt.Errorf("account name cannot be empty")
	}

	if len(name) > MaxAccountNameLen {
		return fmt.Errorf("account name must not exceed %d characters", MaxAccountNameLen)
	}

	if !AccountNamePattern.MatchString(name) {
		return fmt.Errorf("account name can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidateConnectionCode проверяет минимальные требования к коду
// подключения. Короткий код тривиально перебирается, несмотря на
// IP-throttle
func ValidateConnectionCode(code string) error {
	if code == "" {
		return fmt.Errorf("connection code cannot be empty")
	}

	if len(code) < MinCodeLen {
		return fmt.Errorf("connection code must be at least %d characters long", MinCodeLen)
	}

	return nil
}
