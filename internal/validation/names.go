package validation

import (
	"fmt"
	"regexp"
)

// FragmentPattern определяет допустимое имя фрагмента.
// Имя используется как ключ payload и как имя файла, поэтому только строчные буквы, цифры, '_' и '-'.
var FragmentPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// AccountPattern определяет допустимый идентификатор аккаунта (subject токена)
var AccountPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@:-]*$`)

const (
	// MaxFragmentLen максимальная длина имени фрагмента
	MaxFragmentLen = 64
	// MaxAccountLen максимальная длина идентификатора аккаунта
	MaxAccountLen = 128
)

// ValidateFragmentName проверяет имя фрагмента
func ValidateFragmentName(name string) error {
	if name == "" {
		return fmt.Errorf("fragment name cannot be empty")
	}

	if len(name) > MaxFragmentLen {
		return fmt.Errorf("fragment name must not exceed %d characters", MaxFragmentLen)
	}

	if !FragmentPattern.MatchString(name) {
		return fmt.Errorf("fragment name %q must start with a letter and contain only a-z, 0-9, '_' and '-'", name)
	}

	return nil
}

// ValidateAccountID проверяет идентификатор аккаунта
func ValidateAccountID(id string) error {
	if id == "" {
		return fmt.Errorf("account id cannot be empty")
	}

	if len(id) > MaxAccountLen {
		return fmt.Errorf("account id must not exceed %d characters", MaxAccountLen)
	}

	if !AccountPattern.MatchString(id) {
		return fmt.Errorf("account id %q contains invalid characters", id)
	}

	return nil
}
