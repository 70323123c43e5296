package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/integral-arena-api/internal/config"
	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
	"github.com/yourusername/integral-arena-api/internal/service/mathjudge"
)

// DuelService владеет машиной состояний дуэли 1 на 1: создание, вход,
// цикл вопросов, счет, таймеры, завершение. Все мутации после создания
// условны по статусу комнаты, поэтому конкурентные поллеры не затирают
// друг друга: проигравший гонку получает ErrConflict и перечитывает состояние.
type DuelService struct {
	roomRepo    repository.DuelRoomRepository
	problemRepo repository.ProblemRepository
	cacheRepo   repository.CacheRepository
	judge       mathjudge.Judge
	cfg         *config.GameConfig
}

// NewDuelService создает новый сервис дуэлей
func NewDuelService(
	roomRepo repository.DuelRoomRepository,
	problemRepo repository.ProblemRepository,
	cacheRepo repository.CacheRepository,
	judge mathjudge.Judge,
	cfg *config.GameConfig,
) *DuelService {
	return &DuelService{
		roomRepo:    roomRepo,
		problemRepo: problemRepo,
		cacheRepo:   cacheRepo,
		judge:       judge,
		cfg:         cfg,
	}
}

// inProgress — ожидаемый статус для всех внутриигровых мутаций
var inProgress = []string{entity.RoomStatusInProgress}

// answeredKey формирует ключ маркера «место уже отвечало на вопрос questionSeq».
// Привязка к QuestionSeq очищает маркер автоматически: новый вопрос — новый ключ.
func answeredKey(code string, questionSeq int, seat string) string {
	return fmt.Sprintf("duel:%s:q%d:answered:%s", code, questionSeq, seat)
}

// CreateDuel создает комнату дуэли со статусом WAITING.
// Параметры зажимаются в допустимые диапазоны, код выделяется с повтором
// при коллизии; исчерпание попыток → ErrCapacityExhausted.
func (s *DuelService) CreateDuel(hostID string, timeControlSec int, difficulty string, questionsToWin int) (*entity.DuelRoom, error) {
	if !entity.IsValidDifficulty(difficulty) {
		return nil, fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrValidation, difficulty)
	}

	timeControlSec = entity.ClampTimeControl(timeControlSec)

	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		room := &entity.DuelRoom{
			Code:                  generateRoomCode(),
			HostID:                hostID,
			Status:                entity.RoomStatusWaiting,
			Phase:                 entity.PhaseCountdown,
			TimeControlSec:        timeControlSec,
			Difficulty:            difficulty,
			QuestionsToWin:        entity.ClampQuestionsToWin(questionsToWin),
			HostTimeRemaining:     timeControlSec,
			OpponentTimeRemaining: timeControlSec,
		}

		err := s.roomRepo.Create(room)
		if err == nil {
			log.Printf("[DuelService] Комната %s создана пользователем %s", room.Code, hostID)
			return room, nil
		}
		if errors.Is(err, repository.ErrCodeTaken) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: unable to allocate a unique room code after %d attempts",
		apperrors.ErrCapacityExhausted, s.cfg.CodeAttempts)
}

// GetRoom возвращает комнату по коду
func (s *DuelService) GetRoom(code string) (*entity.DuelRoom, error) {
	return s.roomRepo.GetByCode(code)
}

// JoinDuel занимает место оппонента и запускает игру.
// Переход WAITING→IN_PROGRESS выполняется одним условным обновлением,
// поэтому из двух одновременных попыток входа победит ровно одна.
func (s *DuelService) JoinDuel(code string, userID string) (*entity.DuelRoom, error) {
	room, err := s.roomRepo.ApplyIfStatusIn(code, []string{entity.RoomStatusWaiting}, func(r *entity.DuelRoom) error {
		if r.HostID == userID {
			return fmt.Errorf("%w: cannot join your own duel", apperrors.ErrValidation)
		}
		if r.OpponentID != nil {
			return fmt.Errorf("%w: duel room is full", apperrors.ErrCapacityExhausted)
		}
		now := time.Now()
		r.OpponentID = &userID
		r.Status = entity.RoomStatusInProgress
		r.Phase = entity.PhaseCountdown
		r.StartedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: duel has already started or finished", apperrors.ErrConflict)
		}
		return nil, err
	}

	log.Printf("[DuelService] Пользователь %s вошел в комнату %s, игра началась", userID, code)
	return room, nil
}

// GameState возвращает снимок комнаты и активную задачу (без решения).
// Только для участников комнаты.
func (s *DuelService) GameState(code string, userID string) (*entity.DuelRoom, *entity.Problem, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, nil, err
	}

	if _, ok := room.SeatOf(userID); !ok {
		return nil, nil, fmt.Errorf("%w: not a participant of room %s", apperrors.ErrForbidden, code)
	}

	var problem *entity.Problem
	if room.IsInProgress() && room.CurrentProblemID != nil {
		problem, err = s.problemRepo.GetByID(*room.CurrentProblemID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, err
		}
	}

	return room, problem, nil
}

// StartQuestion выдает комнате следующий вопрос и переводит фазу в playing.
// Идемпотентна под конкурентным двойным вызовом: если вопрос уже активен,
// возвращается существующая задача, а не новая — вопрос нельзя молча
// подменить под отвечающим игроком.
func (s *DuelService) StartQuestion(code string, userID string) (*entity.DuelRoom, *entity.Problem, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := room.SeatOf(userID); !ok {
		return nil, nil, fmt.Errorf("%w: not a participant of room %s", apperrors.ErrForbidden, code)
	}
	if !room.IsInProgress() {
		return nil, nil, fmt.Errorf("%w: game is not in progress", apperrors.ErrConflict)
	}

	// Быстрый идемпотентный путь без обращения к каталогу
	if room.Phase == entity.PhasePlaying && room.CurrentProblemID != nil {
		problem, err := s.problemRepo.GetByID(*room.CurrentProblemID)
		if err != nil {
			return nil, nil, err
		}
		return room, problem, nil
	}

	problem, err := s.problemRepo.GetRandomByDifficulty(resolveDifficulty(room.Difficulty))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: problem catalog: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	var existingID *uint
	updated, err := s.roomRepo.ApplyIfStatusIn(code, inProgress, func(r *entity.DuelRoom) error {
		// Повторная проверка под блокировкой: конкурентный advance мог успеть раньше
		if r.Phase == entity.PhasePlaying && r.CurrentProblemID != nil {
			existingID = r.CurrentProblemID
			return nil
		}
		now := time.Now()
		r.CurrentProblemID = &problem.ID
		r.QuestionSeq++
		r.QuestionStartedAt = &now
		r.Phase = entity.PhasePlaying
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, nil, fmt.Errorf("%w: game is not in progress", apperrors.ErrConflict)
		}
		return nil, nil, err
	}

	if existingID != nil {
		problem, err = s.problemRepo.GetByID(*existingID)
		if err != nil {
			return nil, nil, err
		}
	}

	return updated, problem, nil
}

// SubmitAnswer обрабатывает ответ места на активный вопрос.
// Порядок жесткий: проверка маркера → судья → SetNX маркера → условная запись
// счета. Сбой судьи не потребляет попытку; из двух конкурентных сабмитов
// одного места маркер пропустит ровно один.
func (s *DuelService) SubmitAnswer(ctx context.Context, code string, userID string, answer string) (*entity.DuelRoom, *mathjudge.Verdict, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, nil, err
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: not a participant of room %s", apperrors.ErrForbidden, code)
	}
	if !room.IsInProgress() {
		return nil, nil, fmt.Errorf("%w: game is not in progress", apperrors.ErrConflict)
	}
	if room.Phase != entity.PhasePlaying || room.CurrentProblemID == nil {
		return nil, nil, fmt.Errorf("%w: no active question", apperrors.ErrConflict)
	}

	marker := answeredKey(code, room.QuestionSeq, seat)
	answered, err := s.cacheRepo.Exists(marker)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: answer marker store: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if answered {
		return nil, nil, fmt.Errorf("%w: seat already answered this question", apperrors.ErrConflict)
	}

	problem, err := s.problemRepo.GetByID(*room.CurrentProblemID)
	if err != nil {
		return nil, nil, err
	}

	verdict, err := s.judge.Evaluate(ctx, answer, problem.Solution, problem.AlternativeForms)
	if err != nil {
		// Попытка не потрачена: маркер не ставим, состояние не трогаем
		log.Printf("[DuelService] Судья недоступен для комнаты %s: %v", code, err)
		return nil, nil, fmt.Errorf("%w: answer judge: %v", apperrors.ErrUpstreamUnavailable, err)
	}

	set, err := s.cacheRepo.SetNX(marker, "1", s.cfg.AnsweredMarkerTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: answer marker store: %v", apperrors.ErrUpstreamUnavailable, err)
	}
	if !set {
		return nil, nil, fmt.Errorf("%w: seat already answered this question", apperrors.ErrConflict)
	}

	questionSeq := room.QuestionSeq
	var invariantBroken bool
	updated, err := s.roomRepo.ApplyIfStatusIn(code, inProgress, func(r *entity.DuelRoom) error {
		if r.WinnerID != nil {
			// Недостижимо при корректных условных переходах; принудительно
			// закрываем комнату вместо приема дальнейших мутаций
			log.Printf("[DuelService] ОБНАРУЖЕНО НАРУШЕНИЕ ИНВАРИАНТА: комната %s IN_PROGRESS с установленным winner_id", code)
			now := time.Now()
			r.Status = entity.RoomStatusAbandoned
			r.Phase = entity.PhaseFinished
			r.CompletedAt = &now
			invariantBroken = true
			return nil
		}
		if r.QuestionSeq != questionSeq || r.Phase != entity.PhasePlaying {
			return fmt.Errorf("%w: question already resolved", apperrors.ErrConflict)
		}

		if !verdict.IsCorrect {
			r.Phase = entity.PhaseResult
			return nil
		}

		if seat == entity.SeatHost {
			r.HostScore++
		} else {
			r.OpponentScore++
		}

		// Победный балл завершает комнату тем же атомарным шагом
		if r.ScoreOf(seat) >= r.QuestionsToWin {
			now := time.Now()
			r.Status = entity.RoomStatusCompleted
			r.Phase = entity.PhaseFinished
			r.WinnerID = &userID
			r.CompletedAt = &now
		} else {
			r.Phase = entity.PhaseResult
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Комната завершилась между судейством и записью (таймер или
			// победный ответ соперника) — ответ опоздал
			return nil, nil, fmt.Errorf("%w: room is no longer in progress", apperrors.ErrConflict)
		}
		return nil, nil, err
	}
	if invariantBroken {
		return updated, nil, fmt.Errorf("%w: room %s forced to ABANDONED", apperrors.ErrInvariantViolation, code)
	}

	return updated, verdict, nil
}

// TickTimer уменьшает часы места на одну секунду (пол — ноль).
// Ноль завершает комнату победой другого места тем же условным шагом.
// Поздний тик по уже терминальной комнате — безопасный no-op.
func (s *DuelService) TickTimer(code string, userID string) (*entity.DuelRoom, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return nil, fmt.Errorf("%w: not a participant of room %s", apperrors.ErrForbidden, code)
	}

	updated, err := s.roomRepo.ApplyIfStatusIn(code, inProgress, func(r *entity.DuelRoom) error {
		remaining := r.TimeRemainingOf(seat)
		if remaining > 0 {
			remaining--
		}
		if seat == entity.SeatHost {
			r.HostTimeRemaining = remaining
		} else {
			r.OpponentTimeRemaining = remaining
		}

		if remaining == 0 {
			winner := r.UserAt(entity.OtherSeat(seat))
			if winner == nil {
				// IN_PROGRESS комната всегда имеет оба места; защитная ветка
				return fmt.Errorf("%w: in-progress room %s has an empty seat", apperrors.ErrInvariantViolation, code)
			}
			now := time.Now()
			r.Status = entity.RoomStatusCompleted
			r.Phase = entity.PhaseFinished
			r.WinnerID = winner
			r.CompletedAt = &now
			log.Printf("[DuelService] Время места %s в комнате %s истекло, победитель %s", seat, code, *winner)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Комната уже терминальна — запоздавший тик ничего не делает
			return s.roomRepo.GetByCode(code)
		}
		return nil, err
	}

	return updated, nil
}

// Abandon переводит комнату в ABANDONED из любого нетерминального состояния.
// Идемпотентна: повторный вызов по терминальной комнате возвращает её как есть.
func (s *DuelService) Abandon(code string, userID string) (*entity.DuelRoom, error) {
	room, err := s.roomRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if _, ok := room.SeatOf(userID); !ok {
		return nil, fmt.Errorf("%w: not a participant of room %s", apperrors.ErrForbidden, code)
	}

	updated, err := s.roomRepo.ApplyIfStatusIn(code,
		[]string{entity.RoomStatusWaiting, entity.RoomStatusInProgress},
		func(r *entity.DuelRoom) error {
			now := time.Now()
			r.Status = entity.RoomStatusAbandoned
			r.Phase = entity.PhaseFinished
			r.CompletedAt = &now
			return nil
		})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return s.roomRepo.GetByCode(code)
		}
		return nil, err
	}

	log.Printf("[DuelService] Комната %s помечена как покинутая", code)
	return updated, nil
}
