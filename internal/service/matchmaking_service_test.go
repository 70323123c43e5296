package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
)

// MockQueueRepo реализует repository.QueueRepository
type MockQueueRepo struct {
	mock.Mock
}

func (m *MockQueueRepo) Enqueue(entry *entity.QueueEntry) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockQueueRepo) Dequeue(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockQueueRepo) GetByUser(userID string) (*entity.QueueEntry, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.QueueEntry), args.Error(1)
}

func (m *MockQueueRepo) FindCandidate(timeControlSec int, difficulty string, excludeUserID string, maxAge time.Duration) (*entity.QueueEntry, error) {
	args := m.Called(timeControlSec, difficulty, excludeUserID, maxAge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.QueueEntry), args.Error(1)
}

func (m *MockQueueRepo) PairAndCreateRoom(candidateEntryID uint, joinerUserID string, room *entity.DuelRoom) error {
	args := m.Called(candidateEntryID, joinerUserID, room)
	return args.Error(0)
}

func (m *MockQueueRepo) PurgeStale(maxAge time.Duration) (int64, error) {
	args := m.Called(maxAge)
	return args.Get(0).(int64), args.Error(1)
}

func newMatchmakingServiceWithMocks() (*MatchmakingService, *MockQueueRepo, *MockDuelRoomRepo) {
	queueRepo := new(MockQueueRepo)
	roomRepo := new(MockDuelRoomRepo)
	svc := NewMatchmakingService(queueRepo, roomRepo, testGameConfig())
	return svc, queueRepo, roomRepo
}

func TestJoinQueue_PairsWithWaitingCandidate(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	candidate := &entity.QueueEntry{ID: 7, UserID: "user-1", TimeControlSec: 180, Difficulty: entity.DifficultyBasic}
	queueRepo.On("FindCandidate", 180, entity.DifficultyBasic, "user-2", 5*time.Minute).
		Return(candidate, nil).Once()
	queueRepo.On("PairAndCreateRoom", uint(7), "user-2", mock.AnythingOfType("*entity.DuelRoom")).
		Return(nil).Once()

	status, err := svc.JoinQueue("user-2", 180, entity.DifficultyBasic)
	require.NoError(t, err)

	require.NotNil(t, status.Room)
	assert.False(t, status.InQueue)
	// Комната автоподбора сразу в игре: кандидат — хост, оба места заняты
	assert.Equal(t, "user-1", status.Room.HostID)
	require.NotNil(t, status.Room.OpponentID)
	assert.Equal(t, "user-2", *status.Room.OpponentID)
	assert.Equal(t, entity.RoomStatusInProgress, status.Room.Status)
	assert.Equal(t, entity.DefaultQuestionsToWin, status.Room.QuestionsToWin)
	queueRepo.AssertNotCalled(t, "Enqueue", mock.Anything)
}

func TestJoinQueue_RetriesWhenCandidateTaken(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	first := &entity.QueueEntry{ID: 7, UserID: "user-1"}
	second := &entity.QueueEntry{ID: 8, UserID: "user-3"}

	queueRepo.On("FindCandidate", 180, entity.DifficultyBasic, "user-2", 5*time.Minute).
		Return(first, nil).Once()
	// Первого кандидата успел забрать конкурентный JoinQueue
	queueRepo.On("PairAndCreateRoom", uint(7), "user-2", mock.AnythingOfType("*entity.DuelRoom")).
		Return(repository.ErrCandidateGone).Once()
	queueRepo.On("FindCandidate", 180, entity.DifficultyBasic, "user-2", 5*time.Minute).
		Return(second, nil).Once()
	queueRepo.On("PairAndCreateRoom", uint(8), "user-2", mock.AnythingOfType("*entity.DuelRoom")).
		Return(nil).Once()

	status, err := svc.JoinQueue("user-2", 180, entity.DifficultyBasic)
	require.NoError(t, err)

	require.NotNil(t, status.Room)
	assert.Equal(t, "user-3", status.Room.HostID)
}

func TestJoinQueue_EnqueuesWhenNoCandidate(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	queueRepo.On("FindCandidate", 180, entity.DifficultyMixed, "user-1", 5*time.Minute).
		Return(nil, apperrors.ErrNotFound).Once()
	queueRepo.On("Enqueue", mock.AnythingOfType("*entity.QueueEntry")).Return(nil).Once()

	status, err := svc.JoinQueue("user-1", 180, entity.DifficultyMixed)
	require.NoError(t, err)

	assert.True(t, status.InQueue)
	assert.Nil(t, status.Room)
}

func TestJoinQueue_DuplicateEntryRejected(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	queueRepo.On("FindCandidate", 180, entity.DifficultyBasic, "user-1", 5*time.Minute).
		Return(nil, apperrors.ErrNotFound).Once()
	queueRepo.On("Enqueue", mock.AnythingOfType("*entity.QueueEntry")).
		Return(repository.ErrAlreadyQueued).Once()

	_, err := svc.JoinQueue("user-1", 180, entity.DifficultyBasic)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestJoinQueue_InvalidDifficulty(t *testing.T) {
	svc, _, _ := newMatchmakingServiceWithMocks()

	_, err := svc.JoinQueue("user-1", 180, "Impossible")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPollQueueStatus_StillWaiting(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	entry := &entity.QueueEntry{ID: 1, UserID: "user-1", CreatedAt: time.Now()}
	queueRepo.On("GetByUser", "user-1").Return(entry, nil).Once()

	status, err := svc.PollQueueStatus("user-1")
	require.NoError(t, err)
	assert.True(t, status.InQueue)
	assert.Nil(t, status.Room)
}

func TestPollQueueStatus_MatchedRoomFound(t *testing.T) {
	svc, queueRepo, roomRepo := newMatchmakingServiceWithMocks()

	queueRepo.On("GetByUser", "user-2").Return(nil, apperrors.ErrNotFound).Once()

	room := inProgressRoom("654321")
	roomRepo.On("FindActiveRoomForUser", "user-2", mock.AnythingOfType("time.Time")).
		Return(room, nil).Once()

	status, err := svc.PollQueueStatus("user-2")
	require.NoError(t, err)
	assert.False(t, status.InQueue)
	require.NotNil(t, status.Room)
	assert.Equal(t, "654321", status.Room.Code)
}

func TestPollQueueStatus_StaleEntryPurged(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	entry := &entity.QueueEntry{ID: 1, UserID: "user-1", CreatedAt: time.Now().Add(-10 * time.Minute)}
	queueRepo.On("GetByUser", "user-1").Return(entry, nil).Once()
	queueRepo.On("Dequeue", "user-1").Return(nil).Once()

	_, err := svc.PollQueueStatus("user-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	queueRepo.AssertCalled(t, "Dequeue", "user-1")
}

func TestLeaveQueue_Idempotent(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	queueRepo.On("Dequeue", "user-1").Return(nil).Twice()

	require.NoError(t, svc.LeaveQueue("user-1"))
	require.NoError(t, svc.LeaveQueue("user-1"))
}

func TestPurgeStale_DelegatesTTL(t *testing.T) {
	svc, queueRepo, _ := newMatchmakingServiceWithMocks()

	queueRepo.On("PurgeStale", 5*time.Minute).Return(int64(3), nil).Once()

	purged, err := svc.PurgeStale()
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
}
