package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
)

// QueueRepo реализует repository.QueueRepository
type QueueRepo struct {
	db *gorm.DB
}

// NewQueueRepo создает новый репозиторий очереди автоподбора
func NewQueueRepo(db *gorm.DB) *QueueRepo {
	return &QueueRepo{db: db}
}

// Enqueue вставляет запись очереди. Уникальный индекс по user_id превращает
// повторную постановку в ErrAlreadyQueued.
func (r *QueueRepo) Enqueue(entry *entity.QueueEntry) error {
	if err := r.db.Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", repository.ErrAlreadyQueued, entry.UserID)
		}
		return err
	}
	return nil
}

// Dequeue удаляет запись пользователя; отсутствие записи не ошибка
func (r *QueueRepo) Dequeue(userID string) error {
	return r.db.Where("user_id = ?", userID).Delete(&entity.QueueEntry{}).Error
}

// GetByUser возвращает запись очереди пользователя
func (r *QueueRepo) GetByUser(userID string) (*entity.QueueEntry, error) {
	var entry entity.QueueEntry
	err := r.db.Where("user_id = ?", userID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindCandidate возвращает старейшую совместимую запись (FIFO по created_at).
// Записи старше maxAge считаются протухшими и не участвуют в подборе.
func (r *QueueRepo) FindCandidate(timeControlSec int, difficulty string, excludeUserID string, maxAge time.Duration) (*entity.QueueEntry, error) {
	var entry entity.QueueEntry
	err := r.db.
		Where("time_control_sec = ? AND difficulty = ? AND user_id <> ? AND created_at > ?",
			timeControlSec, difficulty, excludeUserID, time.Now().Add(-maxAge)).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// PairAndCreateRoom выполняет спаривание как одну атомарную единицу:
// удаление записи кандидата, удаление возможной записи присоединяющегося и
// вставка IN_PROGRESS комнаты коммитятся вместе или не коммитятся вовсе.
// Удаление по первичному ключу с проверкой RowsAffected закрывает гонку
// двух подборов за одного кандидата: проигравший получает ErrCandidateGone.
func (r *QueueRepo) PairAndCreateRoom(candidateEntryID uint, joinerUserID string, room *entity.DuelRoom) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", candidateEntryID).Delete(&entity.QueueEntry{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: entry #%d", repository.ErrCandidateGone, candidateEntryID)
		}

		// Присоединяющийся обычно не успел встать в очередь, но если его
		// запись есть — спаривание потребляет и её
		if err := tx.Where("user_id = ?", joinerUserID).Delete(&entity.QueueEntry{}).Error; err != nil {
			return err
		}

		if err := tx.Create(room).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", repository.ErrCodeTaken, room.Code)
			}
			return err
		}
		return nil
	})
}

// PurgeStale удаляет записи старше maxAge
func (r *QueueRepo) PurgeStale(maxAge time.Duration) (int64, error) {
	result := r.db.Where("created_at < ?", time.Now().Add(-maxAge)).Delete(&entity.QueueEntry{})
	return result.RowsAffected, result.Error
}
