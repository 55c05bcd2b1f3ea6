package services

import "errors"

// Общие ошибки, используемые в разных сервисах и обработчиках.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrInvalidScaffold   = errors.New("scaffold has invalid day of week, time of day or deadline")
	ErrInvalidTransition = errors.New("invalid event status transition")
	ErrEventNotEditable  = errors.New("event is not editable in its current status")
	ErrLastCourt         = errors.New("cannot remove the last court")
	ErrNoParticipants    = errors.New("cannot finalize an event without participants")
	ErrNotMember         = errors.New("participant is not a member of this event")

	// Ошибки конфликтов
	ErrOperationInProgress = errors.New("another operation on this event is already in progress")

	// Ошибки прав и конфигурации
	ErrForbidden       = errors.New("operation not allowed for the current user")
	ErrUnconfigured    = errors.New("no owner resolvable and no admin configured")
	ErrReportsDisabled = errors.New("report storage is not configured")
)
