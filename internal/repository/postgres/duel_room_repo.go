package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
)

// DuelRoomRepo реализует repository.DuelRoomRepository
type DuelRoomRepo struct {
	db *gorm.DB
}

// NewDuelRoomRepo создает новый репозиторий комнат дуэлей
func NewDuelRoomRepo(db *gorm.DB) *DuelRoomRepo {
	return &DuelRoomRepo{db: db}
}

// Create вставляет новую комнату. Уникальный индекс по code превращает
// коллизию кода в ErrCodeTaken, вызывающий повторяет с новым кодом.
func (r *DuelRoomRepo) Create(room *entity.DuelRoom) error {
	if err := r.db.Create(room).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", repository.ErrCodeTaken, room.Code)
		}
		return err
	}
	return nil
}

// GetByCode возвращает комнату по коду
func (r *DuelRoomRepo) GetByCode(code string) (*entity.DuelRoom, error) {
	var room entity.DuelRoom
	err := r.db.Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ApplyIfStatusIn — условное обновление: SELECT ... FOR UPDATE, проверка
// статуса, мутация, запись — все в одной транзакции. Конкурентный писатель,
// успевший продвинуть статус первым, оставляет второму ErrStatusConflict.
func (r *DuelRoomRepo) ApplyIfStatusIn(code string, expected []string, mutate func(*entity.DuelRoom) error) (*entity.DuelRoom, error) {
	var room entity.DuelRoom
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if !statusIn(room.Status, expected) {
			return fmt.Errorf("%w: room %s is %s", repository.ErrStatusConflict, code, room.Status)
		}

		if err := mutate(&room); err != nil {
			return err
		}

		return tx.Save(&room).Error
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindActiveRoomForUser возвращает свежайшую IN_PROGRESS комнату пользователя,
// созданную не раньше after
func (r *DuelRoomRepo) FindActiveRoomForUser(userID string, after time.Time) (*entity.DuelRoom, error) {
	var room entity.DuelRoom
	err := r.db.
		Where("status = ? AND created_at >= ? AND (host_id = ? OR opponent_id = ?)",
			entity.RoomStatusInProgress, after, userID, userID).
		Order("created_at DESC").
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// AbandonStaleWaiting переводит брошенные WAITING комнаты в ABANDONED
func (r *DuelRoomRepo) AbandonStaleWaiting(cutoff time.Time) (int64, error) {
	result := r.db.Model(&entity.DuelRoom{}).
		Where("status = ? AND created_at < ?", entity.RoomStatusWaiting, cutoff).
		Update("status", entity.RoomStatusAbandoned)
	return result.RowsAffected, result.Error
}

func statusIn(status string, expected []string) bool {
	for _, s := range expected {
		if status == s {
			return true
		}
	}
	return false
}
