// Package iocli абстрагирует терминальный ввод-вывод клиента
package iocli

// IO - ввод-вывод команд клиента. Код подключения читается без эха
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}
