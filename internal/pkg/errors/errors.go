package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда комната, запись очереди или задача не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда пользователь не является участником комнаты
	// или пытается выполнить действие хоста.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов предусловий при конкурентных мутациях:
	// другой поллер уже продвинул состояние комнаты. Не фатальна — вызывающий
	// перечитывает состояние и решает дальше.
	ErrConflict = errors.New("resource state conflict")

	// ErrCapacityExhausted используется, когда ресурс исчерпан: не удалось выделить
	// уникальный код комнаты, комната заполнена, турнир набрал maxPlayers.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrUpstreamUnavailable используется при сбое внешнего коллаборатора
	// (судья ответов, каталог задач). Состояние комнаты при этом не меняется,
	// вызывающий может повторить запрос.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")

	// ErrInvariantViolation — защитная ошибка. При корректном использовании
	// условных обновлений недостижима; если наблюдается, комната принудительно
	// переводится в терминальное состояние.
	ErrInvariantViolation = errors.New("invariant violation detected")
)
