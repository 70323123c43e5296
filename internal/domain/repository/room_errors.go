package repository

import "errors"

// Ошибки хранилища комнат и очереди. Репозитории возвращают их как сигналы
// проигранной гонки; сервисный слой транслирует в типизированные ошибки приложения.
var (
	// ErrCodeTaken возвращается при коллизии кода комнаты (unique violation).
	// Вызывающий генерирует новый код и повторяет попытку (ограниченно).
	ErrCodeTaken = errors.New("room code already taken")

	// ErrStatusConflict возвращается условным обновлением, когда статус комнаты
	// уже не соответствует ожидаемому: другой конкурентный писатель продвинул состояние.
	ErrStatusConflict = errors.New("room status precondition failed")

	// ErrAlreadyQueued возвращается при попытке поставить в очередь пользователя,
	// у которого уже есть живая запись (unique по user_id).
	ErrAlreadyQueued = errors.New("user already in matchmaking queue")

	// ErrCandidateGone возвращается, когда выбранный кандидат очереди исчез до
	// коммита спаривания (его забрал другой подбор или он вышел). Вызывающий
	// выбирает нового кандидата.
	ErrCandidateGone = errors.New("queue candidate no longer exists")

	// ErrAlreadyJoined возвращается при повторном входе пользователя в турнир.
	ErrAlreadyJoined = errors.New("user already joined this tournament")
)
