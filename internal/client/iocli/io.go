// Package iocli абстрагирует ввод-вывод CLI, чтобы команды можно было тестировать без терминала.
package iocli

// IO - вывод команд и запрос пароля
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadPassword(prompt string) (string, error)
}
