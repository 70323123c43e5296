package repository

import (
	"time"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
)

// QueueRepository определяет методы для работы с очередью автоподбора
type QueueRepository interface {
	// Enqueue вставляет запись; живая запись того же пользователя → ErrAlreadyQueued
	Enqueue(entry *entity.QueueEntry) error
	// Dequeue удаляет запись пользователя; идемпотентна (отсутствие записи не ошибка)
	Dequeue(userID string) error
	GetByUser(userID string) (*entity.QueueEntry, error)
	// FindCandidate возвращает старейшую совместимую запись (FIFO по created_at),
	// исключая excludeUserID и записи старше maxAge. Нет кандидата → apperrors.ErrNotFound.
	FindCandidate(timeControlSec int, difficulty string, excludeUserID string, maxAge time.Duration) (*entity.QueueEntry, error)
	// PairAndCreateRoom — атомарная единица спаривания: в одной транзакции
	// удаляет запись кандидата по ID (0 строк → ErrCandidateGone, транзакция
	// откатывается), удаляет возможную запись присоединяющегося пользователя
	// и вставляет комнату со статусом IN_PROGRESS. Коллизия кода → ErrCodeTaken.
	PairAndCreateRoom(candidateEntryID uint, joinerUserID string, room *entity.DuelRoom) error
	// PurgeStale удаляет записи старше maxAge, возвращает число удаленных
	PurgeStale(maxAge time.Duration) (int64, error)
}
