package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/integral-arena-api/internal/handler/dto"
	"github.com/yourusername/integral-arena-api/internal/middleware"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
	"github.com/yourusername/integral-arena-api/internal/service"
)

// TournamentHandler обрабатывает запросы, связанные с турнирами
type TournamentHandler struct {
	tournamentService *service.TournamentService
}

// NewTournamentHandler создает новый обработчик турниров
func NewTournamentHandler(tournamentService *service.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

// CreateTournamentRequest представляет запрос на создание турнира
type CreateTournamentRequest struct {
	Format             string `json:"format" binding:"required,oneof=round_robin knockout"`
	MaxPlayers         int    `json:"max_players" binding:"required,min=2"`
	Difficulty         string `json:"difficulty" binding:"required"`
	QuestionsPerMatch  int    `json:"questions_per_match"`   // Опционально, 0 = дефолт
	TimePerQuestionSec int    `json:"time_per_question_sec"` // Опционально, 0 = дефолт
}

// CreateTournament обрабатывает запрос на создание турнира
// POST /api/tournaments
func (h *TournamentHandler) CreateTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CreateTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.tournamentService.CreateTournament(
		userID, req.Format, req.MaxPlayers, req.Difficulty,
		req.QuestionsPerMatch, req.TimePerQuestionSec,
	)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewTournamentResponse(room))
}

// GetTournament возвращает турнир с ростером
// GET /api/tournaments/:code
func (h *TournamentHandler) GetTournament(c *gin.Context) {
	code := c.MustGet("roomCode").(string)

	room, err := h.tournamentService.GetTournament(code)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTournamentResponse(room))
}

// JoinTournament добавляет пользователя в ростер
// POST /api/tournaments/:code/join
func (h *TournamentHandler) JoinTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, err := h.tournamentService.JoinTournament(code, userID)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTournamentResponse(room))
}

// StartTournament запускает турнир и возвращает расписание первого круга
// POST /api/tournaments/:code/start
func (h *TournamentHandler) StartTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, matches, err := h.tournamentService.StartTournament(code, userID)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tournament": dto.NewTournamentResponse(room),
		"matches":    dto.NewMatchListResponse(matches),
	})
}

// GetMatches возвращает расписание матчей турнира
// GET /api/tournaments/:code/matches
func (h *TournamentHandler) GetMatches(c *gin.Context) {
	code := c.MustGet("roomCode").(string)

	room, matches, err := h.tournamentService.GetMatches(code)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tournament": dto.NewTournamentResponse(room),
		"matches":    dto.NewMatchListResponse(matches),
	})
}

// GetStandings возвращает турнирную таблицу
// GET /api/tournaments/:code/standings
func (h *TournamentHandler) GetStandings(c *gin.Context) {
	code := c.MustGet("roomCode").(string)

	standings, err := h.tournamentService.Standings(code)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewStandingsResponse(standings))
}

// AbandonTournament помечает турнир покинутым (только хост)
// POST /api/tournaments/:code/abandon
func (h *TournamentHandler) AbandonTournament(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, err := h.tournamentService.AbandonTournament(code, userID)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewTournamentResponse(room))
}

// NextMatchQuestion выдает матчу очередной вопрос
// POST /api/tournaments/matches/:match_uid/question
func (h *TournamentHandler) NextMatchQuestion(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	matchUID := c.Param("match_uid")

	match, problem, err := h.tournamentService.StartMatchQuestion(matchUID, userID)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMatchResponse(match, problem))
}

// SubmitMatchAnswer обрабатывает ответ игрока в матче
// POST /api/tournaments/matches/:match_uid/answer
func (h *TournamentHandler) SubmitMatchAnswer(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	matchUID := c.Param("match_uid")

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	match, verdict, err := h.tournamentService.SubmitMatchAnswer(c.Request.Context(), matchUID, userID, req.Answer)
	if err != nil {
		h.handleTournamentError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMatchAnswerResultResponse(match, verdict))
}

// handleTournamentError преобразует ошибки сервиса в HTTP статусы
func (h *TournamentHandler) handleTournamentError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrCapacityExhausted) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "capacity_exhausted"})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "error_type": "upstream_unavailable"})
	} else if errors.Is(err, apperrors.ErrInvariantViolation) {
		log.Printf("ERROR: Invariant violation in TournamentHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "invariant_violation"})
	} else {
		log.Printf("ERROR: Internal server error in TournamentHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
