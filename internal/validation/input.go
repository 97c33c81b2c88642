package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength            = 3
	MaxUsernameLength            = 30
	MinContractTitleLength       = 3
	MaxContractTitleLength       = 200
	MinContractDescriptionLength = 10
	MaxContractDescriptionLength = 10000
	MinMilestoneTitleLength      = 1
	MaxMilestoneTitleLength      = 200
	MinDisputeReasonLength       = 10
	MaxDisputeReasonLength       = 5000
	MaxResolutionLength          = 5000
	MinSignatureLength           = 2
	MaxSignatureLength           = 200
	MaxDeliverableMessageLength  = 5000
	MinAmount                    = 0.0
	MaxAmount                    = 100000000.0 // 100 миллионов
	MaxMilestonesCount           = 50
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	// Проверка на валидные символы в локальной части
	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	// Проверка на валидные символы в доменной части
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	// Только буквы, цифры и подчеркивание
	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if len(username) > 0 && unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateContractTitle проверяет заголовок контракта.
func ValidateContractTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок контракта обязателен")
	}

	title = strings.TrimSpace(title)

	return ValidateLength("заголовок контракта", title, MinContractTitleLength, MaxContractTitleLength)
}

// ValidateContractDescription проверяет описание контракта.
func ValidateContractDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание контракта обязательно")
	}

	description = strings.TrimSpace(description)

	return ValidateLength("описание контракта", description, MinContractDescriptionLength, MaxContractDescriptionLength)
}

// ValidateMilestoneTitle проверяет заголовок этапа.
func ValidateMilestoneTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок этапа обязателен")
	}

	title = strings.TrimSpace(title)

	return ValidateLength("заголовок этапа", title, MinMilestoneTitleLength, MaxMilestoneTitleLength)
}

// ValidateAmount проверяет денежную сумму.
func ValidateAmount(fieldName string, amount float64) error {
	if amount <= MinAmount {
		return fmt.Errorf("%s должна быть положительной", fieldName)
	}
	if amount > MaxAmount {
		return fmt.Errorf("%s превышает максимально допустимую", fieldName)
	}
	return nil
}

// ValidateSignature проверяет подпись стороны контракта.
func ValidateSignature(signature string) error {
	if strings.TrimSpace(signature) == "" {
		return fmt.Errorf("подпись обязательна")
	}

	return ValidateLength("подпись", strings.TrimSpace(signature), MinSignatureLength, MaxSignatureLength)
}

// ValidateDisputeReason проверяет причину спора.
func ValidateDisputeReason(reason string) error {
	if reason == "" {
		return fmt.Errorf("причина спора обязательна")
	}

	reason = strings.TrimSpace(reason)

	return ValidateLength("причина спора", reason, MinDisputeReasonLength, MaxDisputeReasonLength)
}
