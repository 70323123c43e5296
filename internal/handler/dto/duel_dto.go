package dto

import (
	"time"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/service"
	"github.com/yourusername/integral-arena-api/internal/service/mathjudge"
)

// ProblemResponse представляет задачу в формате для ответа клиенту.
// Решение и альтернативные формы никогда не попадают в ответ.
type ProblemResponse struct {
	ID         uint   `json:"id"`
	Difficulty string `json:"difficulty"`
	Statement  string `json:"statement"`
	Hint       string `json:"hint,omitempty"`
}

// NewProblemResponse создает DTO для задачи
func NewProblemResponse(p *entity.Problem) *ProblemResponse {
	if p == nil {
		return nil
	}
	return &ProblemResponse{
		ID:         p.ID,
		Difficulty: p.Difficulty,
		Statement:  p.Statement,
		Hint:       p.Hint,
	}
}

// DuelRoomResponse представляет комнату дуэли в формате для ответа клиенту
type DuelRoomResponse struct {
	Code       string  `json:"code"`
	HostID     string  `json:"host_id"`
	OpponentID *string `json:"opponent_id,omitempty"`
	Status     string  `json:"status"`
	Phase      string  `json:"phase"`

	TimeControlSec int    `json:"time_control_sec"`
	Difficulty     string `json:"difficulty"`
	QuestionsToWin int    `json:"questions_to_win"`

	HostScore             int `json:"host_score"`
	OpponentScore         int `json:"opponent_score"`
	HostTimeRemaining     int `json:"host_time_remaining"`
	OpponentTimeRemaining int `json:"opponent_time_remaining"`

	QuestionSeq    int              `json:"question_seq"`
	CurrentProblem *ProblemResponse `json:"current_problem,omitempty"`

	WinnerID    *string    `json:"winner_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewDuelRoomResponse создает DTO комнаты; problem может быть nil
func NewDuelRoomResponse(room *entity.DuelRoom, problem *entity.Problem) *DuelRoomResponse {
	return &DuelRoomResponse{
		Code:                  room.Code,
		HostID:                room.HostID,
		OpponentID:            room.OpponentID,
		Status:                room.Status,
		Phase:                 room.Phase,
		TimeControlSec:        room.TimeControlSec,
		Difficulty:            room.Difficulty,
		QuestionsToWin:        room.QuestionsToWin,
		HostScore:             room.HostScore,
		OpponentScore:         room.OpponentScore,
		HostTimeRemaining:     room.HostTimeRemaining,
		OpponentTimeRemaining: room.OpponentTimeRemaining,
		QuestionSeq:           room.QuestionSeq,
		CurrentProblem:        NewProblemResponse(problem),
		WinnerID:              room.WinnerID,
		CreatedAt:             room.CreatedAt,
		StartedAt:             room.StartedAt,
		CompletedAt:           room.CompletedAt,
	}
}

// AnswerResultResponse — вердикт судьи плюс состояние комнаты после ответа
type AnswerResultResponse struct {
	IsCorrect bool              `json:"is_correct"`
	Feedback  string            `json:"feedback"`
	Room      *DuelRoomResponse `json:"room"`
}

// NewAnswerResultResponse создает DTO результата ответа
func NewAnswerResultResponse(room *entity.DuelRoom, verdict *mathjudge.Verdict) *AnswerResultResponse {
	return &AnswerResultResponse{
		IsCorrect: verdict.IsCorrect,
		Feedback:  verdict.Feedback,
		Room:      NewDuelRoomResponse(room, nil),
	}
}

// QueueStatusResponse представляет статус автоподбора для клиента
type QueueStatusResponse struct {
	InQueue  bool              `json:"in_queue"`
	QueuedAt *time.Time        `json:"queued_at,omitempty"`
	Room     *DuelRoomResponse `json:"room,omitempty"`
}

// NewQueueStatusResponse создает DTO статуса очереди
func NewQueueStatusResponse(status *service.QueueStatus) *QueueStatusResponse {
	resp := &QueueStatusResponse{
		InQueue:  status.InQueue,
		QueuedAt: status.QueuedAt,
	}
	if status.Room != nil {
		resp.Room = NewDuelRoomResponse(status.Room, nil)
	}
	return resp
}
