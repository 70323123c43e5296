package repository

import (
	"time"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
)

// TournamentRepository определяет методы для работы с турнирами
type TournamentRepository interface {
	// Create вставляет новый турнир; коллизия кода → ErrCodeTaken
	Create(room *entity.TournamentRoom) error
	// GetByCode возвращает турнир с участниками (joined_at по возрастанию)
	GetByCode(code string) (*entity.TournamentRoom, error)
	// GetByID возвращает турнир по первичному ключу (без участников)
	GetByID(id uint) (*entity.TournamentRoom, error)
	// AddParticipant добавляет участника под блокировкой комнаты:
	// не WAITING → ErrStatusConflict, ростер полон → apperrors.ErrCapacityExhausted,
	// дубликат → ErrAlreadyJoined.
	AddParticipant(code string, userID string) (*entity.TournamentParticipant, error)
	// ApplyIfStatusIn — тот же условный примитив, что и для дуэлей
	ApplyIfStatusIn(code string, expected []string, mutate func(*entity.TournamentRoom) error) (*entity.TournamentRoom, error)
	// StartWithMatches переводит WAITING турнир в IN_PROGRESS и вставляет
	// построенное build расписание в той же транзакции; build получает
	// комнату с ростером, прочитанным под блокировкой. Не WAITING →
	// ErrStatusConflict, сбой вставки откатывает и смену статуса.
	StartWithMatches(code string, build func(*entity.TournamentRoom) ([]entity.TournamentMatch, error)) (*entity.TournamentRoom, []entity.TournamentMatch, error)

	CreateMatches(matches []entity.TournamentMatch) error
	GetMatches(roomID uint) ([]entity.TournamentMatch, error)
	GetMatchByUID(matchUID string) (*entity.TournamentMatch, error)
	// ApplyMatch читает матч под SELECT FOR UPDATE и применяет mutate;
	// завершенный матч → ErrStatusConflict.
	ApplyMatch(matchUID string, mutate func(*entity.TournamentMatch) error) (*entity.TournamentMatch, error)

	// AddStandingPoints накапливает очки и потраченное время участника
	// атомарным UPDATE ... SET points = points + ?
	AddStandingPoints(roomID uint, userID string, points int, timeSpentSec int) error
	// MarkEliminated помечает участника выбывшим (необратимо)
	MarkEliminated(roomID uint, userID string) error
	// Standings возвращает участников по убыванию очков, при равенстве —
	// по возрастанию потраченного времени
	Standings(roomID uint) ([]entity.TournamentParticipant, error)

	// AbandonStaleWaiting переводит WAITING турниры старше cutoff в ABANDONED
	AbandonStaleWaiting(cutoff time.Time) (int64, error)
}
