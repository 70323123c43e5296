package entity

import "time"

// Форматы турнира
const (
	TournamentFormatRoundRobin = "round_robin"
	TournamentFormatKnockout   = "knockout"
)

// Статусы матча турнира
const (
	MatchStatusScheduled  = "SCHEDULED"
	MatchStatusInProgress = "IN_PROGRESS"
	MatchStatusCompleted  = "COMPLETED"
)

// Границы параметров турнира
const (
	MinTournamentPlayers = 2
	MaxTournamentPlayers = 16

	// Базовые очки за правильный ответ в круговом формате и потолок бонуса за скорость
	RoundRobinBasePoints = 1000
	RoundRobinSpeedBonus = 500
)

// TournamentRoom представляет турнирную комнату.
// Жизненный цикл статусов тот же, что у дуэли: WAITING → IN_PROGRESS → {COMPLETED, ABANDONED}.
type TournamentRoom struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Code   string `gorm:"size:6;not null;uniqueIndex" json:"code"`
	HostID string `gorm:"size:64;not null;index" json:"host_id"`
	Status string `gorm:"size:20;not null;default:'WAITING';index" json:"status"`

	Format             string `gorm:"size:20;not null;default:'round_robin'" json:"format"`
	MaxPlayers         int    `gorm:"not null;default:8" json:"max_players"`
	Difficulty         string `gorm:"size:20;not null;default:'Mixed'" json:"difficulty"`
	QuestionsPerMatch  int    `gorm:"not null;default:3" json:"questions_per_match"`
	TimePerQuestionSec int    `gorm:"not null;default:60" json:"time_per_question_sec"`

	WinnerID *string `gorm:"size:64" json:"winner_id,omitempty"`

	Participants []TournamentParticipant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName определяет имя таблицы для GORM
func (TournamentRoom) TableName() string {
	return "tournament_rooms"
}

// IsWaiting проверяет, набирает ли турнир участников
func (t *TournamentRoom) IsWaiting() bool {
	return t.Status == RoomStatusWaiting
}

// IsTerminal проверяет, достиг ли турнир терминального статуса
func (t *TournamentRoom) IsTerminal() bool {
	return t.Status == RoomStatusCompleted || t.Status == RoomStatusAbandoned
}

// HasParticipant проверяет, состоит ли пользователь в ростере
func (t *TournamentRoom) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ClampMaxPlayers ограничивает размер ростера диапазоном 2–16
func ClampMaxPlayers(n int) int {
	if n < MinTournamentPlayers {
		return MinTournamentPlayers
	}
	if n > MaxTournamentPlayers {
		return MaxTournamentPlayers
	}
	return n
}

// TournamentParticipant представляет участника турнира.
// Points и TimeSpentSec — накопительные величины кругового зачета;
// Eliminated выставляется проигравшему в олимпийской сетке и никогда не снимается.
type TournamentParticipant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RoomID       uint      `gorm:"not null;index;uniqueIndex:idx_tournament_room_user" json:"room_id"`
	UserID       string    `gorm:"size:64;not null;uniqueIndex:idx_tournament_room_user" json:"user_id"`
	Points       int       `gorm:"not null;default:0" json:"points"`
	TimeSpentSec int       `gorm:"not null;default:0" json:"time_spent_sec"`
	Eliminated   bool      `gorm:"not null;default:false" json:"eliminated"`
	JoinedAt     time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// TableName определяет имя таблицы для GORM
func (TournamentParticipant) TableName() string {
	return "tournament_participants"
}

// TournamentMatch представляет один матч сетки или кругового расписания.
// Player2ID == nil означает bye: участник проходит в следующий круг без игры.
type TournamentMatch struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	MatchUID string  `gorm:"size:36;not null;uniqueIndex" json:"match_uid"`
	RoomID   uint    `gorm:"not null;index" json:"room_id"`
	Round    int     `gorm:"not null;default:1" json:"round"`
	Player1  string  `gorm:"column:player1_id;size:64;not null" json:"player1_id"`
	Player2  *string `gorm:"column:player2_id;size:64" json:"player2_id,omitempty"`

	Status       string  `gorm:"size:20;not null;default:'SCHEDULED'" json:"status"`
	Player1Score int     `gorm:"not null;default:0" json:"player1_score"`
	Player2Score int     `gorm:"not null;default:0" json:"player2_score"`
	WinnerID     *string `gorm:"size:64" json:"winner_id,omitempty"`

	// Текущий вопрос матча; семантика полей идентична DuelRoom
	CurrentProblemID  *uint      `json:"current_problem_id,omitempty"`
	QuestionSeq       int        `gorm:"not null;default:0" json:"question_seq"`
	QuestionStartedAt *time.Time `json:"question_started_at,omitempty"`

	// Флаги «ответил на текущий вопрос»: выставляются в той же транзакции,
	// что и запись счета, и определяют момент закрытия вопроса
	Player1Answered bool `gorm:"not null;default:false" json:"player1_answered"`
	Player2Answered bool `gorm:"not null;default:false" json:"player2_answered"`

	// SuddenDeath выставляется, когда бюджет вопросов исчерпан при равном счете
	SuddenDeath bool `gorm:"not null;default:false" json:"sudden_death"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (TournamentMatch) TableName() string {
	return "tournament_matches"
}

// IsBye проверяет, является ли матч техническим проходом
func (m *TournamentMatch) IsBye() bool {
	return m.Player2 == nil
}

// IsCompleted проверяет, завершен ли матч
func (m *TournamentMatch) IsCompleted() bool {
	return m.Status == MatchStatusCompleted
}

// HasPlayer проверяет, играет ли пользователь в этом матче
func (m *TournamentMatch) HasPlayer(userID string) bool {
	if m.Player1 == userID {
		return true
	}
	return m.Player2 != nil && *m.Player2 == userID
}

// ScoreOf возвращает счет игрока в матче
func (m *TournamentMatch) ScoreOf(userID string) int {
	if m.Player1 == userID {
		return m.Player1Score
	}
	return m.Player2Score
}
