package repository

import (
	"time"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
)

// DuelRoomRepository определяет методы для работы с комнатами дуэлей.
// Все мутации после создания идут через ApplyIfStatusIn — единственный
// примитив конкурентности ядра: прочитать под блокировкой, проверить статус,
// применить мутацию, записать. Конкурентные поллеры, проигравшие гонку,
// получают ErrStatusConflict вместо тихой перезаписи.
type DuelRoomRepository interface {
	// Create вставляет новую комнату; коллизия кода → ErrCodeTaken
	Create(room *entity.DuelRoom) error
	GetByCode(code string) (*entity.DuelRoom, error)
	// ApplyIfStatusIn читает комнату под SELECT FOR UPDATE, проверяет что её
	// статус входит в expected, применяет mutate и сохраняет результат.
	// Несовпадение статуса → ErrStatusConflict; ошибка mutate откатывает транзакцию.
	ApplyIfStatusIn(code string, expected []string, mutate func(*entity.DuelRoom) error) (*entity.DuelRoom, error)
	// FindActiveRoomForUser возвращает свежайшую IN_PROGRESS комнату, где
	// пользователь занимает место, созданную не раньше after.
	// Используется поллером очереди для обнаружения состоявшегося матча.
	FindActiveRoomForUser(userID string, after time.Time) (*entity.DuelRoom, error)
	// AbandonStaleWaiting переводит WAITING комнаты старше cutoff в ABANDONED,
	// возвращает число затронутых строк.
	AbandonStaleWaiting(cutoff time.Time) (int64, error)
}
