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

// TournamentRepo реализует repository.TournamentRepository
type TournamentRepo struct {
	db *gorm.DB
}

// NewTournamentRepo создает новый репозиторий турниров
func NewTournamentRepo(db *gorm.DB) *TournamentRepo {
	return &TournamentRepo{db: db}
}

// Create вставляет новый турнир; коллизия кода → ErrCodeTaken
func (r *TournamentRepo) Create(room *entity.TournamentRoom) error {
	if err := r.db.Create(room).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", repository.ErrCodeTaken, room.Code)
		}
		return err
	}
	return nil
}

// GetByCode возвращает турнир с участниками в порядке присоединения
func (r *TournamentRepo) GetByCode(code string) (*entity.TournamentRoom, error) {
	var room entity.TournamentRoom
	err := r.db.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Where("code = ?", code).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// GetByID возвращает турнир по первичному ключу
func (r *TournamentRepo) GetByID(id uint) (*entity.TournamentRoom, error) {
	var room entity.TournamentRoom
	if err := r.db.First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// AddParticipant добавляет участника под блокировкой комнаты.
// Проверки статуса и вместимости выполняются внутри той же транзакции,
// что и вставка, поэтому два одновременных join не переполнят ростер.
func (r *TournamentRepo) AddParticipant(code string, userID string) (*entity.TournamentParticipant, error) {
	var participant entity.TournamentParticipant
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var room entity.TournamentRoom
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if room.Status != entity.RoomStatusWaiting {
			return fmt.Errorf("%w: tournament %s is %s", repository.ErrStatusConflict, code, room.Status)
		}

		var count int64
		if err := tx.Model(&entity.TournamentParticipant{}).
			Where("room_id = ?", room.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if int(count) >= room.MaxPlayers {
			return fmt.Errorf("%w: tournament %s is full (%d)", apperrors.ErrCapacityExhausted, code, room.MaxPlayers)
		}

		participant = entity.TournamentParticipant{RoomID: room.ID, UserID: userID}
		if err := tx.Create(&participant).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: user %s", repository.ErrAlreadyJoined, userID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// ApplyIfStatusIn — условное обновление турнирной комнаты, аналог дуэльного
func (r *TournamentRepo) ApplyIfStatusIn(code string, expected []string, mutate func(*entity.TournamentRoom) error) (*entity.TournamentRoom, error) {
	var room entity.TournamentRoom
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
			return fmt.Errorf("%w: tournament %s is %s", repository.ErrStatusConflict, code, room.Status)
		}

		if err := mutate(&room); err != nil {
			return err
		}

		return tx.Omit("Participants").Save(&room).Error
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// StartWithMatches стартует турнир и вставляет расписание атомарно.
// Комната блокируется FOR UPDATE, ростер читается под этой блокировкой:
// конкурентный AddParticipant ждет ту же блокировку и не попадет между
// чтением ростера и сменой статуса.
func (r *TournamentRepo) StartWithMatches(code string, build func(*entity.TournamentRoom) ([]entity.TournamentMatch, error)) (*entity.TournamentRoom, []entity.TournamentMatch, error) {
	var room entity.TournamentRoom
	var matches []entity.TournamentMatch
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&room).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if room.Status != entity.RoomStatusWaiting {
			return fmt.Errorf("%w: tournament %s is %s", repository.ErrStatusConflict, code, room.Status)
		}

		if err := tx.Where("room_id = ?", room.ID).
			Order("joined_at ASC").
			Find(&room.Participants).Error; err != nil {
			return err
		}

		ms, err := build(&room)
		if err != nil {
			return err
		}

		if err := tx.Omit("Participants").Save(&room).Error; err != nil {
			return err
		}
		if len(ms) > 0 {
			if err := tx.Create(&ms).Error; err != nil {
				return err
			}
		}
		matches = ms
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &room, matches, nil
}

// CreateMatches вставляет сгенерированное расписание матчей
func (r *TournamentRepo) CreateMatches(matches []entity.TournamentMatch) error {
	if len(matches) == 0 {
		return nil
	}
	return r.db.Create(&matches).Error
}

// GetMatches возвращает матчи турнира по кругам, внутри круга — по ID
func (r *TournamentRepo) GetMatches(roomID uint) ([]entity.TournamentMatch, error) {
	var matches []entity.TournamentMatch
	err := r.db.Where("room_id = ?", roomID).
		Order("round ASC, id ASC").
		Find(&matches).Error
	return matches, err
}

// GetMatchByUID возвращает матч по внешнему идентификатору
func (r *TournamentRepo) GetMatchByUID(matchUID string) (*entity.TournamentMatch, error) {
	var match entity.TournamentMatch
	err := r.db.Where("match_uid = ?", matchUID).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &match, nil
}

// ApplyMatch читает матч под SELECT FOR UPDATE и применяет mutate.
// Завершенный матч больше не принимает мутаций — поздний сабмит получает
// ErrStatusConflict и перечитывает состояние.
func (r *TournamentRepo) ApplyMatch(matchUID string, mutate func(*entity.TournamentMatch) error) (*entity.TournamentMatch, error) {
	var match entity.TournamentMatch
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("match_uid = ?", matchUID).
			First(&match).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		if match.Status == entity.MatchStatusCompleted {
			return fmt.Errorf("%w: match %s already completed", repository.ErrStatusConflict, matchUID)
		}

		if err := mutate(&match); err != nil {
			return err
		}

		return tx.Save(&match).Error
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// AddStandingPoints атомарно накапливает очки и время участника через gorm.Expr
func (r *TournamentRepo) AddStandingPoints(roomID uint, userID string, points int, timeSpentSec int) error {
	return r.db.Model(&entity.TournamentParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]interface{}{
			"points":         gorm.Expr("points + ?", points),
			"time_spent_sec": gorm.Expr("time_spent_sec + ?", timeSpentSec),
		}).Error
}

// MarkEliminated помечает участника выбывшим
func (r *TournamentRepo) MarkEliminated(roomID uint, userID string) error {
	return r.db.Model(&entity.TournamentParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("eliminated", true).Error
}

// Standings возвращает таблицу кругового зачета: очки по убыванию,
// при равенстве — меньше потраченных секунд выше
func (r *TournamentRepo) Standings(roomID uint) ([]entity.TournamentParticipant, error) {
	var participants []entity.TournamentParticipant
	err := r.db.Where("room_id = ?", roomID).
		Order("points DESC, time_spent_sec ASC").
		Find(&participants).Error
	return participants, err
}

// AbandonStaleWaiting переводит брошенные WAITING турниры в ABANDONED
func (r *TournamentRepo) AbandonStaleWaiting(cutoff time.Time) (int64, error) {
	result := r.db.Model(&entity.TournamentRoom{}).
		Where("status = ? AND created_at < ?", entity.RoomStatusWaiting, cutoff).
		Update("status", entity.RoomStatusAbandoned)
	return result.RowsAffected, result.Error
}
