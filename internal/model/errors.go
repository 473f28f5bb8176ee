package model

import "errors"

// Базовые ошибки ядра. Слои выше различают их через errors.Is,
// подробности добавляются обёртыванием fmt.Errorf("...: %w", err).
var (
	// ErrNotFound — ученик, урок или шаблон с таким id не существует.
	ErrNotFound = errors.New("not found")

	// ErrConflict — дубликат ключа материализации или шаблона,
	// либо попытка повторного списания за уже завершённый урок.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState — переход, недопустимый из текущего статуса
	// (отмена отменённого, восстановление неотменённого).
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation — некорректные входные данные; отклоняется до любых записей.
	ErrValidation = errors.New("validation error")

	// ErrStoreUnavailable — временная недоступность хранилища, можно повторить.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrLedgerInconsistency — журнал платежей разошёлся с жизненным циклом
	// уроков (например, завершённый урок без непогашенного списания).
	// Сообщается наружу, молча не чинится.
	ErrLedgerInconsistency = errors.New("ledger inconsistency")
)

// IsNotFound проверяет, что ошибка означает отсутствие записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict проверяет, что ошибка означает конфликт уникальности.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
