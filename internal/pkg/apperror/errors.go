package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodePaymentFailed ErrorCode = "PAYMENT_FAILED"
)

// Коды контрактного и платёжного workflow. Коды стабильны — на них
// завязаны клиенты, менять можно только сообщения.
const (
	ErrCodeContractNotFound  ErrorCode = "CONTRACT_NOT_FOUND"
	ErrCodeAccessDenied      ErrorCode = "CONTRACT_ACCESS_DENIED"
	ErrCodeInvalidTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeAlreadyFunded     ErrorCode = "CONTRACT_ALREADY_FUNDED"
	ErrCodeNoHeldEntries     ErrorCode = "NO_HELD_ENTRIES"
	ErrCodePayoutMissing     ErrorCode = "PAYOUT_ACCOUNT_MISSING"
	ErrCodeKYCNotVerified    ErrorCode = "kyc_not_verified"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// WithStatus переопределяет HTTP статус (например 402 для отказа процессора).
func (e *AppError) WithStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithDetails прикрепляет структурированные детали, например чеклист KYC требований.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound, ErrCodeContractNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeAccessDenied, ErrCodeKYCNotVerified:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInvalidTransition,
		ErrCodeAlreadyFunded, ErrCodeNoHeldEntries, ErrCodePayoutMissing:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// InvalidRole формирует ошибку несоответствия роли в контракте:
// код вида INVALID_ROLE_CLIENT, статус 403.
func InvalidRole(requiredRole string) *AppError {
	return &AppError{
		Code:       ErrorCode("INVALID_ROLE_" + strings.ToUpper(requiredRole)),
		Message:    fmt.Sprintf("операция доступна только роли %s", requiredRole),
		HTTPStatus: http.StatusForbidden,
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

var (
	ErrContractNotFound  = New(ErrCodeContractNotFound, "контракт не найден")
	ErrMilestoneNotFound = New(ErrCodeNotFound, "этап не найден")
	ErrUserNotFound      = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized      = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrAccessDenied      = New(ErrCodeAccessDenied, "вы не являетесь участником контракта")
	ErrAlreadyFunded     = New(ErrCodeAlreadyFunded, "контракт уже профинансирован")
	ErrNoHeldEntries     = New(ErrCodeNoHeldEntries, "no held entries found")
	ErrPayoutMissing     = New(ErrCodePayoutMissing, "у фрилансера не подключён счёт для выплат")
)
