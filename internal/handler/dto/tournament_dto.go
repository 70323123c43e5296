package dto

import (
	"time"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/service/mathjudge"
)

// ParticipantResponse представляет участника турнира для клиента
type ParticipantResponse struct {
	UserID       string    `json:"user_id"`
	Points       int       `json:"points"`
	TimeSpentSec int       `json:"time_spent_sec"`
	Eliminated   bool      `json:"eliminated"`
	JoinedAt     time.Time `json:"joined_at"`
}

// TournamentResponse представляет турнирную комнату для клиента
type TournamentResponse struct {
	Code   string `json:"code"`
	HostID string `json:"host_id"`
	Status string `json:"status"`

	Format             string `json:"format"`
	MaxPlayers         int    `json:"max_players"`
	Difficulty         string `json:"difficulty"`
	QuestionsPerMatch  int    `json:"questions_per_match"`
	TimePerQuestionSec int    `json:"time_per_question_sec"`

	WinnerID     *string               `json:"winner_id,omitempty"`
	Participants []ParticipantResponse `json:"participants,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTournamentResponse создает DTO турнира
func NewTournamentResponse(room *entity.TournamentRoom) *TournamentResponse {
	resp := &TournamentResponse{
		Code:               room.Code,
		HostID:             room.HostID,
		Status:             room.Status,
		Format:             room.Format,
		MaxPlayers:         room.MaxPlayers,
		Difficulty:         room.Difficulty,
		QuestionsPerMatch:  room.QuestionsPerMatch,
		TimePerQuestionSec: room.TimePerQuestionSec,
		WinnerID:           room.WinnerID,
		CreatedAt:          room.CreatedAt,
		StartedAt:          room.StartedAt,
		CompletedAt:        room.CompletedAt,
	}
	for _, p := range room.Participants {
		resp.Participants = append(resp.Participants, ParticipantResponse{
			UserID:       p.UserID,
			Points:       p.Points,
			TimeSpentSec: p.TimeSpentSec,
			Eliminated:   p.Eliminated,
			JoinedAt:     p.JoinedAt,
		})
	}
	return resp
}

// MatchResponse представляет матч турнира для клиента
type MatchResponse struct {
	MatchUID string  `json:"match_uid"`
	Round    int     `json:"round"`
	Player1  string  `json:"player1_id"`
	Player2  *string `json:"player2_id,omitempty"`

	Status       string  `json:"status"`
	Player1Score int     `json:"player1_score"`
	Player2Score int     `json:"player2_score"`
	WinnerID     *string `json:"winner_id,omitempty"`

	QuestionSeq     int              `json:"question_seq"`
	CurrentProblem  *ProblemResponse `json:"current_problem,omitempty"`
	Player1Answered bool             `json:"player1_answered"`
	Player2Answered bool             `json:"player2_answered"`
	SuddenDeath     bool             `json:"sudden_death"`
	IsBye           bool             `json:"is_bye"`
}

// NewMatchResponse создает DTO матча; problem может быть nil
func NewMatchResponse(m *entity.TournamentMatch, problem *entity.Problem) *MatchResponse {
	return &MatchResponse{
		MatchUID:       m.MatchUID,
		Round:          m.Round,
		Player1:        m.Player1,
		Player2:        m.Player2,
		Status:         m.Status,
		Player1Score:   m.Player1Score,
		Player2Score:   m.Player2Score,
		WinnerID:       m.WinnerID,
		QuestionSeq:     m.QuestionSeq,
		CurrentProblem:  NewProblemResponse(problem),
		Player1Answered: m.Player1Answered,
		Player2Answered: m.Player2Answered,
		SuddenDeath:     m.SuddenDeath,
		IsBye:           m.IsBye(),
	}
}

// NewMatchListResponse создает список DTO матчей
func NewMatchListResponse(matches []entity.TournamentMatch) []*MatchResponse {
	out := make([]*MatchResponse, 0, len(matches))
	for i := range matches {
		out = append(out, NewMatchResponse(&matches[i], nil))
	}
	return out
}

// MatchAnswerResultResponse — вердикт судьи плюс состояние матча после ответа
type MatchAnswerResultResponse struct {
	IsCorrect bool           `json:"is_correct"`
	Feedback  string         `json:"feedback"`
	Match     *MatchResponse `json:"match"`
}

// NewMatchAnswerResultResponse создает DTO результата ответа в матче
func NewMatchAnswerResultResponse(match *entity.TournamentMatch, verdict *mathjudge.Verdict) *MatchAnswerResultResponse {
	return &MatchAnswerResultResponse{
		IsCorrect: verdict.IsCorrect,
		Feedback:  verdict.Feedback,
		Match:     NewMatchResponse(match, nil),
	}
}

// StandingsResponse представляет турнирную таблицу
type StandingsResponse struct {
	Standings []ParticipantResponse `json:"standings"`
}

// NewStandingsResponse создает DTO таблицы
func NewStandingsResponse(participants []entity.TournamentParticipant) *StandingsResponse {
	resp := &StandingsResponse{Standings: make([]ParticipantResponse, 0, len(participants))}
	for _, p := range participants {
		resp.Standings = append(resp.Standings, ParticipantResponse{
			UserID:       p.UserID,
			Points:       p.Points,
			TimeSpentSec: p.TimeSpentSec,
			Eliminated:   p.Eliminated,
			JoinedAt:     p.JoinedAt,
		})
	}
	return resp
}
