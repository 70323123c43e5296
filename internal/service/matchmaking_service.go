package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/integral-arena-api/internal/config"
	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
)

// pairAttempts — сколько раз повторить подбор, если кандидата успели забрать
const pairAttempts = 3

// QueueStatus — снимок положения пользователя в автоподборе.
// InQueue и Room взаимоисключающи: либо пользователь еще ждет, либо для него
// уже создана комната.
type QueueStatus struct {
	InQueue  bool             `json:"in_queue"`
	QueuedAt *time.Time       `json:"queued_at,omitempty"`
	Room     *entity.DuelRoom `json:"room,omitempty"`
}

// MatchmakingService реализует FIFO очередь автоподбора соперника.
// Спаривание атомарно: кандидат удаляется из очереди и комната создается
// в одной транзакции, поэтому одна запись очереди порождает не более
// одной комнаты даже под конкурентными JoinQueue.
type MatchmakingService struct {
	queueRepo repository.QueueRepository
	roomRepo  repository.DuelRoomRepository
	cfg       *config.GameConfig
}

// NewMatchmakingService создает новый сервис автоподбора
func NewMatchmakingService(
	queueRepo repository.QueueRepository,
	roomRepo repository.DuelRoomRepository,
	cfg *config.GameConfig,
) *MatchmakingService {
	return &MatchmakingService{
		queueRepo: queueRepo,
		roomRepo:  roomRepo,
		cfg:       cfg,
	}
}

// JoinQueue ставит пользователя в очередь либо немедленно спаривает его
// со старейшим совместимым кандидатом. При спаривании комната создается
// сразу в IN_PROGRESS: оба места заняты, ждать некого.
func (s *MatchmakingService) JoinQueue(userID string, timeControlSec int, difficulty string) (*QueueStatus, error) {
	if !entity.IsValidDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, difficulty)
	}
	timeControlSec = entity.ClampTimeControl(timeControlSec)

	for attempt := 0; attempt < pairAttempts; attempt++ {
		candidate, err := s.queueRepo.FindCandidate(timeControlSec, difficulty, userID, s.cfg.QueueTTL)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				break // очередь пуста, встаем в нее сами
			}
			return nil, err
		}

		room := s.buildMatchedRoom(candidate.UserID, userID, timeControlSec, difficulty)
		err = s.queueRepo.PairAndCreateRoom(candidate.ID, userID, room)
		if err == nil {
			log.Printf("[Matchmaking] Спаривание: %s + %s, комната %s", candidate.UserID, userID, room.Code)
			return &QueueStatus{Room: room}, nil
		}
		if errors.Is(err, repository.ErrCandidateGone) {
			// Кандидата забрал конкурентный JoinQueue — ищем следующего
			continue
		}
		if errors.Is(err, repository.ErrCodeTaken) {
			// Коллизия кода комнаты, повторяем с новым кодом
			continue
		}
		return nil, err
	}

	entry := &entity.QueueEntry{
		UserID:         userID,
		TimeControlSec: timeControlSec,
		Difficulty:     difficulty,
	}
	if err := s.queueRepo.Enqueue(entry); err != nil {
		if errors.Is(err, repository.ErrAlreadyQueued) {
			return nil, fmt.Errorf("%w: already in matchmaking queue", apperrors.ErrConflict)
		}
		return nil, err
	}

	log.Printf("[Matchmaking] Пользователь %s встал в очередь (контроль %dс, сложность %s)",
		userID, timeControlSec, difficulty)
	return &QueueStatus{InQueue: true, QueuedAt: &entry.CreatedAt}, nil
}

// PollQueueStatus возвращает текущее положение пользователя: еще в очереди,
// уже спарен (с комнатой) или вне подбора (ErrNotFound).
func (s *MatchmakingService) PollQueueStatus(userID string) (*QueueStatus, error) {
	entry, err := s.queueRepo.GetByUser(userID)
	if err == nil {
		if entry.IsStale(s.cfg.QueueTTL) {
			// Протухшую запись снимаем сразу, не дожидаясь фоновой чистки
			if derr := s.queueRepo.Dequeue(userID); derr != nil {
				log.Printf("[Matchmaking] Не удалось снять протухшую запись %s: %v", userID, derr)
			}
			return nil, fmt.Errorf("%w: queue entry expired", apperrors.ErrNotFound)
		}
		return &QueueStatus{InQueue: true, QueuedAt: &entry.CreatedAt}, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	// Записи нет — возможно, пользователя уже спарили. Смотрим только свежие
	// комнаты, чтобы давно завершенные игры не выдавались за результат подбора.
	room, err := s.roomRepo.FindActiveRoomForUser(userID, time.Now().Add(-s.cfg.QueueTTL))
	if err != nil {
		return nil, err
	}
	return &QueueStatus{Room: room}, nil
}

// LeaveQueue снимает пользователя с очереди. Идемпотентна: выход без записи
// не считается ошибкой.
func (s *MatchmakingService) LeaveQueue(userID string) error {
	return s.queueRepo.Dequeue(userID)
}

// PurgeStale удаляет записи старше QueueTTL. Вызывается фоновой чисткой.
func (s *MatchmakingService) PurgeStale() (int64, error) {
	return s.queueRepo.PurgeStale(s.cfg.QueueTTL)
}

// buildMatchedRoom собирает комнату для спаренной пары: кандидат садится
// хостом, оба места заняты, игра сразу IN_PROGRESS
func (s *MatchmakingService) buildMatchedRoom(hostID, opponentID string, timeControlSec int, difficulty string) *entity.DuelRoom {
	now := time.Now()
	return &entity.DuelRoom{
		Code:                  generateRoomCode(),
		HostID:                hostID,
		OpponentID:            &opponentID,
		Status:                entity.RoomStatusInProgress,
		Phase:                 entity.PhaseCountdown,
		TimeControlSec:        timeControlSec,
		Difficulty:            difficulty,
		QuestionsToWin:        entity.DefaultQuestionsToWin,
		HostTimeRemaining:     timeControlSec,
		OpponentTimeRemaining: timeControlSec,
		StartedAt:             &now,
	}
}
