package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/integral-arena-api/internal/config"
	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
	"github.com/yourusername/integral-arena-api/internal/service/mathjudge"
)

// ============================================================================
// Моки для DuelService
// ============================================================================

// MockDuelRoomRepo реализует repository.DuelRoomRepository
type MockDuelRoomRepo struct {
	mock.Mock
}

func (m *MockDuelRoomRepo) Create(room *entity.DuelRoom) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockDuelRoomRepo) GetByCode(code string) (*entity.DuelRoom, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.DuelRoom), args.Error(1)
}

// ApplyIfStatusIn воспроизводит контракт реального репозитория: если мок
// сконфигурирован вернуть комнату, mutate применяется к ней; ошибка mutate
// имеет приоритет над сконфигурированным результатом.
func (m *MockDuelRoomRepo) ApplyIfStatusIn(code string, expected []string, mutate func(*entity.DuelRoom) error) (*entity.DuelRoom, error) {
	args := m.Called(code, expected)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	room := args.Get(0).(*entity.DuelRoom)
	if err := mutate(room); err != nil {
		return nil, err
	}
	return room, args.Error(1)
}

func (m *MockDuelRoomRepo) FindActiveRoomForUser(userID string, after time.Time) (*entity.DuelRoom, error) {
	args := m.Called(userID, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.DuelRoom), args.Error(1)
}

func (m *MockDuelRoomRepo) AbandonStaleWaiting(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockProblemRepo реализует repository.ProblemRepository
type MockProblemRepo struct {
	mock.Mock
}

func (m *MockProblemRepo) GetByID(id uint) (*entity.Problem, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Problem), args.Error(1)
}

func (m *MockProblemRepo) GetRandomByDifficulty(difficulty string) (*entity.Problem, error) {
	args := m.Called(difficulty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Problem), args.Error(1)
}

func (m *MockProblemRepo) Create(problem *entity.Problem) error {
	args := m.Called(problem)
	return args.Error(0)
}

func (m *MockProblemRepo) CreateBatch(problems []entity.Problem) error {
	args := m.Called(problems)
	return args.Error(0)
}

func (m *MockProblemRepo) List(limit, offset int) ([]entity.Problem, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Problem), args.Error(1)
}

func (m *MockProblemRepo) CountByDifficulty(difficulty string) (int64, error) {
	args := m.Called(difficulty)
	return args.Get(0).(int64), args.Error(1)
}

// MockCacheRepo реализует repository.CacheRepository
type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepo) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepo) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepo) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepo) Increment(key string) (int64, error) {
	args := m.Called(key)
	return args.Get(0).(int64), args.Error(1)
}

// MockJudge реализует mathjudge.Judge
type MockJudge struct {
	mock.Mock
}

func (m *MockJudge) Evaluate(_ context.Context, submitted, solution string, alternatives []string) (*mathjudge.Verdict, error) {
	args := m.Called(submitted, solution, alternatives)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mathjudge.Verdict), args.Error(1)
}

// ============================================================================
// Вспомогательные функции
// ============================================================================

func testGameConfig() *config.GameConfig {
	return &config.GameConfig{
		QueueTTL:          5 * time.Minute,
		WaitingRoomTTL:    30 * time.Minute,
		CodeAttempts:      3,
		AnsweredMarkerTTL: time.Hour,
		SweepInterval:     time.Minute,
	}
}

func newDuelServiceWithMocks() (*DuelService, *MockDuelRoomRepo, *MockProblemRepo, *MockCacheRepo, *MockJudge) {
	roomRepo := new(MockDuelRoomRepo)
	problemRepo := new(MockProblemRepo)
	cacheRepo := new(MockCacheRepo)
	judge := new(MockJudge)
	svc := NewDuelService(roomRepo, problemRepo, cacheRepo, judge, testGameConfig())
	return svc, roomRepo, problemRepo, cacheRepo, judge
}

func inProgressRoom(code string) *entity.DuelRoom {
	opponent := "user-2"
	now := time.Now()
	return &entity.DuelRoom{
		ID:                    1,
		Code:                  code,
		HostID:                "user-1",
		OpponentID:            &opponent,
		Status:                entity.RoomStatusInProgress,
		Phase:                 entity.PhaseCountdown,
		TimeControlSec:        180,
		Difficulty:            entity.DifficultyBasic,
		QuestionsToWin:        5,
		HostTimeRemaining:     180,
		OpponentTimeRemaining: 180,
		StartedAt:             &now,
	}
}

// ============================================================================
// CreateDuel
// ============================================================================

func TestCreateDuel_ClampsParameters(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	roomRepo.On("Create", mock.AnythingOfType("*entity.DuelRoom")).Return(nil).Once()

	room, err := svc.CreateDuel("user-1", 10, entity.DifficultyBasic, 100)
	require.NoError(t, err)

	assert.Equal(t, entity.MinTimeControlSec, room.TimeControlSec)
	assert.Equal(t, entity.MaxQuestionsToWin, room.QuestionsToWin)
	assert.Equal(t, entity.RoomStatusWaiting, room.Status)
	assert.Equal(t, room.TimeControlSec, room.HostTimeRemaining)
	assert.Equal(t, room.TimeControlSec, room.OpponentTimeRemaining)
	assert.Len(t, room.Code, 6)
	roomRepo.AssertExpectations(t)
}

func TestCreateDuel_RetriesOnCodeCollision(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	roomRepo.On("Create", mock.AnythingOfType("*entity.DuelRoom")).Return(repository.ErrCodeTaken).Once()
	roomRepo.On("Create", mock.AnythingOfType("*entity.DuelRoom")).Return(nil).Once()

	room, err := svc.CreateDuel("user-1", 180, entity.DifficultyMixed, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, room.Code)
	roomRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestCreateDuel_CodeSpaceExhausted(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	roomRepo.On("Create", mock.AnythingOfType("*entity.DuelRoom")).Return(repository.ErrCodeTaken)

	_, err := svc.CreateDuel("user-1", 180, entity.DifficultyBasic, 5)
	assert.ErrorIs(t, err, apperrors.ErrCapacityExhausted)
	roomRepo.AssertNumberOfCalls(t, "Create", 3)
}

func TestCreateDuel_InvalidDifficulty(t *testing.T) {
	svc, _, _, _, _ := newDuelServiceWithMocks()

	_, err := svc.CreateDuel("user-1", 180, "Nightmare", 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// ============================================================================
// JoinDuel
// ============================================================================

func TestJoinDuel_StartsGame(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	room := &entity.DuelRoom{
		Code:   "123456",
		HostID: "user-1",
		Status: entity.RoomStatusWaiting,
	}
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusWaiting}).Return(room, nil).Once()

	updated, err := svc.JoinDuel("123456", "user-2")
	require.NoError(t, err)

	assert.Equal(t, entity.RoomStatusInProgress, updated.Status)
	assert.Equal(t, entity.PhaseCountdown, updated.Phase)
	require.NotNil(t, updated.OpponentID)
	assert.Equal(t, "user-2", *updated.OpponentID)
	assert.NotNil(t, updated.StartedAt)
}

func TestJoinDuel_SelfJoinRejected(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	room := &entity.DuelRoom{
		Code:   "123456",
		HostID: "user-1",
		Status: entity.RoomStatusWaiting,
	}
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusWaiting}).Return(room, nil).Once()

	_, err := svc.JoinDuel("123456", "user-1")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestJoinDuel_AlreadyStarted(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusWaiting}).
		Return(nil, repository.ErrStatusConflict).Once()

	_, err := svc.JoinDuel("123456", "user-3")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ============================================================================
// StartQuestion
// ============================================================================

func TestStartQuestion_AssignsProblem(t *testing.T) {
	svc, roomRepo, problemRepo, _, _ := newDuelServiceWithMocks()

	room := inProgressRoom("123456")
	problem := &entity.Problem{ID: 42, Difficulty: entity.DifficultyBasic, Statement: "∫ x dx", Solution: "x^2/2 + C"}

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	problemRepo.On("GetRandomByDifficulty", entity.DifficultyBasic).Return(problem, nil).Once()
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusInProgress}).Return(room, nil).Once()

	updated, got, err := svc.StartQuestion("123456", "user-1")
	require.NoError(t, err)

	assert.Equal(t, uint(42), got.ID)
	assert.Equal(t, entity.PhasePlaying, updated.Phase)
	assert.Equal(t, 1, updated.QuestionSeq)
	require.NotNil(t, updated.CurrentProblemID)
	assert.Equal(t, uint(42), *updated.CurrentProblemID)
	assert.NotNil(t, updated.QuestionStartedAt)
}

func TestStartQuestion_IdempotentWhileQuestionActive(t *testing.T) {
	svc, roomRepo, problemRepo, _, _ := newDuelServiceWithMocks()

	pid := uint(42)
	room := inProgressRoom("123456")
	room.Phase = entity.PhasePlaying
	room.CurrentProblemID = &pid
	room.QuestionSeq = 1

	problem := &entity.Problem{ID: 42, Statement: "∫ x dx"}

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	problemRepo.On("GetByID", pid).Return(problem, nil).Once()

	updated, got, err := svc.StartQuestion("123456", "user-2")
	require.NoError(t, err)

	// Вопрос не подменился и счетчик не сдвинулся
	assert.Equal(t, uint(42), got.ID)
	assert.Equal(t, 1, updated.QuestionSeq)
	roomRepo.AssertNotCalled(t, "ApplyIfStatusIn", mock.Anything, mock.Anything)
	problemRepo.AssertNotCalled(t, "GetRandomByDifficulty", mock.Anything)
}

func TestStartQuestion_CatalogUnavailable(t *testing.T) {
	svc, roomRepo, problemRepo, _, _ := newDuelServiceWithMocks()

	room := inProgressRoom("123456")
	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	problemRepo.On("GetRandomByDifficulty", entity.DifficultyBasic).
		Return(nil, errors.New("connection refused")).Once()

	_, _, err := svc.StartQuestion("123456", "user-1")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
}

func TestStartQuestion_NotParticipant(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	roomRepo.On("GetByCode", "123456").Return(inProgressRoom("123456"), nil).Once()

	_, _, err := svc.StartQuestion("123456", "stranger")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

// ============================================================================
// SubmitAnswer
// ============================================================================

// submittableRoom — комната с активным вопросом под сабмит
func submittableRoom(code string, questionSeq int) (*entity.DuelRoom, *entity.Problem) {
	pid := uint(42)
	now := time.Now()
	room := inProgressRoom(code)
	room.Phase = entity.PhasePlaying
	room.CurrentProblemID = &pid
	room.QuestionSeq = questionSeq
	room.QuestionStartedAt = &now

	problem := &entity.Problem{
		ID:         42,
		Difficulty: entity.DifficultyBasic,
		Statement:  "∫ x dx",
		Solution:   "x^2/2 + C",
	}
	return room, problem
}

func TestSubmitAnswer_CorrectIncrementsScore(t *testing.T) {
	svc, roomRepo, problemRepo, cacheRepo, judge := newDuelServiceWithMocks()

	room, problem := submittableRoom("123456", 1)
	marker := "duel:123456:q1:answered:host"

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	cacheRepo.On("Exists", marker).Return(false, nil).Once()
	problemRepo.On("GetByID", uint(42)).Return(problem, nil).Once()
	judge.On("Evaluate", "x^2/2 + C", "x^2/2 + C", mock.Anything).
		Return(&mathjudge.Verdict{IsCorrect: true, Feedback: "Correct! +1 point"}, nil).Once()
	cacheRepo.On("SetNX", marker, "1", time.Hour).Return(true, nil).Once()
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusInProgress}).Return(room, nil).Once()

	updated, verdict, err := svc.SubmitAnswer(context.Background(), "123456", "user-1", "x^2/2 + C")
	require.NoError(t, err)

	assert.True(t, verdict.IsCorrect)
	assert.Equal(t, 1, updated.HostScore)
	assert.Equal(t, entity.PhaseResult, updated.Phase)
	assert.Equal(t, entity.RoomStatusInProgress, updated.Status)
	assert.Nil(t, updated.WinnerID)
}

func TestSubmitAnswer_WinningAnswerCompletesRoomAtomically(t *testing.T) {
	svc, roomRepo, problemRepo, cacheRepo, judge := newDuelServiceWithMocks()

	room, problem := submittableRoom("123456", 7)
	room.HostScore = 4 // следующий правильный ответ — победный при пороге 5
	marker := "duel:123456:q7:answered:host"

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	cacheRepo.On("Exists", marker).Return(false, nil).Once()
	problemRepo.On("GetByID", uint(42)).Return(problem, nil).Once()
	judge.On("Evaluate", "x^2/2", "x^2/2 + C", mock.Anything).
		Return(&mathjudge.Verdict{IsCorrect: true, Feedback: "Correct! +1 point"}, nil).Once()
	cacheRepo.On("SetNX", marker, "1", time.Hour).Return(true, nil).Once()
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusInProgress}).Return(room, nil).Once()

	updated, _, err := svc.SubmitAnswer(context.Background(), "123456", "user-1", "x^2/2")
	require.NoError(t, err)

	// Победный балл и завершение комнаты — один атомарный шаг
	assert.Equal(t, 5, updated.HostScore)
	assert.Equal(t, entity.RoomStatusCompleted, updated.Status)
	assert.Equal(t, entity.PhaseFinished, updated.Phase)
	require.NotNil(t, updated.WinnerID)
	assert.Equal(t, "user-1", *updated.WinnerID)
	assert.NotNil(t, updated.CompletedAt)
}

func TestSubmitAnswer_SecondAttemptSameQuestionRejected(t *testing.T) {
	svc, roomRepo, _, cacheRepo, _ := newDuelServiceWithMocks()

	room, _ := submittableRoom("123456", 2)
	marker := "duel:123456:q2:answered:opponent"

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	cacheRepo.On("Exists", marker).Return(true, nil).Once()

	_, _, err := svc.SubmitAnswer(context.Background(), "123456", "user-2", "whatever")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	roomRepo.AssertNotCalled(t, "ApplyIfStatusIn", mock.Anything, mock.Anything)
}

func TestSubmitAnswer_JudgeFailureDoesNotConsumeAttempt(t *testing.T) {
	svc, roomRepo, problemRepo, cacheRepo, judge := newDuelServiceWithMocks()

	room, problem := submittableRoom("123456", 3)
	marker := "duel:123456:q3:answered:host"

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	cacheRepo.On("Exists", marker).Return(false, nil).Once()
	problemRepo.On("GetByID", uint(42)).Return(problem, nil).Once()
	judge.On("Evaluate", "x^2/2", "x^2/2 + C", mock.Anything).
		Return(nil, errors.New("judge timeout")).Once()

	_, _, err := svc.SubmitAnswer(context.Background(), "123456", "user-1", "x^2/2")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)

	// Маркер не поставлен, состояние не тронуто: игрок может повторить попытку
	cacheRepo.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything)
	roomRepo.AssertNotCalled(t, "ApplyIfStatusIn", mock.Anything, mock.Anything)
	assert.Equal(t, 0, room.HostScore)
}

func TestSubmitAnswer_LateAnswerAfterRoomCompleted(t *testing.T) {
	svc, roomRepo, problemRepo, cacheRepo, judge := newDuelServiceWithMocks()

	room, problem := submittableRoom("123456", 4)
	marker := "duel:123456:q4:answered:host"

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	cacheRepo.On("Exists", marker).Return(false, nil).Once()
	problemRepo.On("GetByID", uint(42)).Return(problem, nil).Once()
	judge.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).
		Return(&mathjudge.Verdict{IsCorrect: true, Feedback: "Correct! +1 point"}, nil).Once()
	cacheRepo.On("SetNX", marker, "1", time.Hour).Return(true, nil).Once()
	// Комната завершилась между судейством и записью
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusInProgress}).
		Return(nil, repository.ErrStatusConflict).Once()

	_, _, err := svc.SubmitAnswer(context.Background(), "123456", "user-1", "x^2/2")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

// ============================================================================
// TickTimer
// ============================================================================

func TestTickTimer_Decrements(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	room := inProgressRoom("123456")
	room.HostTimeRemaining = 100

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusInProgress}).Return(room, nil).Once()

	updated, err := svc.TickTimer("123456", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 99, updated.HostTimeRemaining)
	assert.Equal(t, entity.RoomStatusInProgress, updated.Status)
}

func TestTickTimer_ZeroCompletesRoomForOpponent(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	room := inProgressRoom("123456")
	room.HostTimeRemaining = 1

	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusInProgress}).Return(room, nil).Once()

	updated, err := svc.TickTimer("123456", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, updated.HostTimeRemaining)
	assert.Equal(t, entity.RoomStatusCompleted, updated.Status)
	require.NotNil(t, updated.WinnerID)
	assert.Equal(t, "user-2", *updated.WinnerID)
}

func TestTickTimer_LateTickOnTerminalRoomIsNoOp(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	room := inProgressRoom("123456")
	room.Status = entity.RoomStatusCompleted

	roomRepo.On("GetByCode", "123456").Return(room, nil)
	roomRepo.On("ApplyIfStatusIn", "123456", []string{entity.RoomStatusInProgress}).
		Return(nil, repository.ErrStatusConflict).Once()

	updated, err := svc.TickTimer("123456", "user-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RoomStatusCompleted, updated.Status)
}

// ============================================================================
// Abandon
// ============================================================================

func TestAbandon_MarksRoomAbandoned(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	room := inProgressRoom("123456")
	roomRepo.On("GetByCode", "123456").Return(room, nil).Once()
	roomRepo.On("ApplyIfStatusIn", "123456",
		[]string{entity.RoomStatusWaiting, entity.RoomStatusInProgress}).Return(room, nil).Once()

	updated, err := svc.Abandon("123456", "user-2")
	require.NoError(t, err)
	assert.Equal(t, entity.RoomStatusAbandoned, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
}

func TestAbandon_IdempotentOnTerminalRoom(t *testing.T) {
	svc, roomRepo, _, _, _ := newDuelServiceWithMocks()

	room := inProgressRoom("123456")
	room.Status = entity.RoomStatusAbandoned

	roomRepo.On("GetByCode", "123456").Return(room, nil)
	roomRepo.On("ApplyIfStatusIn", "123456",
		[]string{entity.RoomStatusWaiting, entity.RoomStatusInProgress}).
		Return(nil, repository.ErrStatusConflict).Once()

	updated, err := svc.Abandon("123456", "user-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RoomStatusAbandoned, updated.Status)
}
