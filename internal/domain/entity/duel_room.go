package entity

import (
	"time"
)

// Константы статусов комнаты (дуэли и турниры)
const (
	RoomStatusWaiting    = "WAITING"
	RoomStatusInProgress = "IN_PROGRESS"
	RoomStatusCompleted  = "COMPLETED"
	RoomStatusAbandoned  = "ABANDONED"
)

// Константы фаз внутри IN_PROGRESS
const (
	PhaseCountdown = "countdown"
	PhasePlaying   = "playing"
	PhaseResult    = "result"
	PhaseFinished  = "finished"
)

// Константы мест в дуэли
const (
	SeatHost     = "host"
	SeatOpponent = "opponent"
)

// Константы сложности задач
const (
	DifficultyBasic        = "Basic"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
	DifficultyMixed        = "Mixed"
)

// Границы игровых параметров дуэли
const (
	MinTimeControlSec = 60
	MaxTimeControlSec = 600
	MinQuestionsToWin = 3
	MaxQuestionsToWin = 10

	// DefaultQuestionsToWin применяется к комнатам, созданным автоподбором
	DefaultQuestionsToWin = 5
)

// DuelRoom представляет комнату дуэли 1 на 1.
// Оба таймера — независимые «шахматные часы» на место; опустевший таймер
// немедленно завершает комнату победой другого места.
type DuelRoom struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	Code       string  `gorm:"size:6;not null;uniqueIndex" json:"code"`
	HostID     string  `gorm:"size:64;not null;index" json:"host_id"`
	OpponentID *string `gorm:"size:64;index" json:"opponent_id,omitempty"`

	Status string `gorm:"size:20;not null;default:'WAITING';index" json:"status"`
	Phase  string `gorm:"size:20;not null;default:'countdown'" json:"phase"`

	// Неизменяемые игровые параметры, фиксируются при создании
	TimeControlSec int    `gorm:"not null" json:"time_control_sec"`
	Difficulty     string `gorm:"size:20;not null" json:"difficulty"`
	QuestionsToWin int    `gorm:"not null;default:5" json:"questions_to_win"`

	HostScore             int `gorm:"not null;default:0" json:"host_score"`
	OpponentScore         int `gorm:"not null;default:0" json:"opponent_score"`
	HostTimeRemaining     int `gorm:"not null" json:"host_time_remaining"`
	OpponentTimeRemaining int `gorm:"not null" json:"opponent_time_remaining"`

	// Текущий вопрос; QuestionSeq растет на каждом advance и служит якорем
	// для маркеров «место уже отвечало на этот вопрос»
	CurrentProblemID  *uint      `json:"current_problem_id,omitempty"`
	QuestionSeq       int        `gorm:"not null;default:0" json:"question_seq"`
	QuestionStartedAt *time.Time `json:"question_started_at,omitempty"`

	WinnerID *string `gorm:"size:64" json:"winner_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (DuelRoom) TableName() string {
	return "duel_rooms"
}

// IsWaiting проверяет, ждет ли комната второго игрока
func (r *DuelRoom) IsWaiting() bool {
	return r.Status == RoomStatusWaiting
}

// IsInProgress проверяет, идет ли игра
func (r *DuelRoom) IsInProgress() bool {
	return r.Status == RoomStatusInProgress
}

// IsTerminal проверяет, достигла ли комната терминального статуса
func (r *DuelRoom) IsTerminal() bool {
	return r.Status == RoomStatusCompleted || r.Status == RoomStatusAbandoned
}

// SeatOf возвращает место пользователя в комнате ("host"/"opponent")
// и false, если пользователь не участник.
func (r *DuelRoom) SeatOf(userID string) (string, bool) {
	if r.HostID == userID {
		return SeatHost, true
	}
	if r.OpponentID != nil && *r.OpponentID == userID {
		return SeatOpponent, true
	}
	return "", false
}

// UserAt возвращает ID пользователя на месте seat (nil, если место свободно)
func (r *DuelRoom) UserAt(seat string) *string {
	if seat == SeatHost {
		host := r.HostID
		return &host
	}
	return r.OpponentID
}

// OtherSeat возвращает противоположное место
func OtherSeat(seat string) string {
	if seat == SeatHost {
		return SeatOpponent
	}
	return SeatHost
}

// ScoreOf возвращает счет места
func (r *DuelRoom) ScoreOf(seat string) int {
	if seat == SeatHost {
		return r.HostScore
	}
	return r.OpponentScore
}

// TimeRemainingOf возвращает оставшееся время места в секундах
func (r *DuelRoom) TimeRemainingOf(seat string) int {
	if seat == SeatHost {
		return r.HostTimeRemaining
	}
	return r.OpponentTimeRemaining
}

// ClampTimeControl ограничивает time control допустимым диапазоном (1–10 минут)
func ClampTimeControl(sec int) int {
	if sec < MinTimeControlSec {
		return MinTimeControlSec
	}
	if sec > MaxTimeControlSec {
		return MaxTimeControlSec
	}
	return sec
}

// ClampQuestionsToWin ограничивает порог победы диапазоном 3–10
func ClampQuestionsToWin(n int) int {
	if n < MinQuestionsToWin {
		return MinQuestionsToWin
	}
	if n > MaxQuestionsToWin {
		return MaxQuestionsToWin
	}
	return n
}

// IsValidDifficulty проверяет допустимость уровня сложности
func IsValidDifficulty(d string) bool {
	switch d {
	case DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced, DifficultyMixed:
		return true
	}
	return false
}
