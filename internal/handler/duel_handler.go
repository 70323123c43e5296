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

// DuelHandler обрабатывает запросы, связанные с дуэлями 1 на 1
type DuelHandler struct {
	duelService *service.DuelService
}

// NewDuelHandler создает новый обработчик дуэлей
func NewDuelHandler(duelService *service.DuelService) *DuelHandler {
	return &DuelHandler{duelService: duelService}
}

// CreateDuelRequest представляет запрос на создание дуэли
type CreateDuelRequest struct {
	TimeControlSec int    `json:"time_control_sec" binding:"required,min=1"`
	Difficulty     string `json:"difficulty" binding:"required"`
	QuestionsToWin int    `json:"questions_to_win"` // Опционально, 0 = дефолт
}

// CreateDuel обрабатывает запрос на создание комнаты дуэли
// POST /api/duels
func (h *DuelHandler) CreateDuel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req CreateDuelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.duelService.CreateDuel(userID, req.TimeControlSec, req.Difficulty, req.QuestionsToWin)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewDuelRoomResponse(room, nil))
}

// JoinDuel обрабатывает вход второго игрока в комнату
// POST /api/duels/:code/join
func (h *DuelHandler) JoinDuel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, err := h.duelService.JoinDuel(code, userID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDuelRoomResponse(room, nil))
}

// GetGameState возвращает снимок комнаты для поллинга
// GET /api/duels/:code
func (h *DuelHandler) GetGameState(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, problem, err := h.duelService.GameState(code, userID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDuelRoomResponse(room, problem))
}

// NextQuestion выдает комнате следующий вопрос
// POST /api/duels/:code/question
func (h *DuelHandler) NextQuestion(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, problem, err := h.duelService.StartQuestion(code, userID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDuelRoomResponse(room, problem))
}

// SubmitAnswerRequest представляет запрос с ответом на задачу
type SubmitAnswerRequest struct {
	Answer string `json:"answer" binding:"required,max=255"`
}

// SubmitAnswer обрабатывает ответ игрока на активный вопрос
// POST /api/duels/:code/answer
func (h *DuelHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, verdict, err := h.duelService.SubmitAnswer(c.Request.Context(), code, userID, req.Answer)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAnswerResultResponse(room, verdict))
}

// TickTimer уменьшает часы вызывающего места на секунду
// POST /api/duels/:code/tick
func (h *DuelHandler) TickTimer(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, err := h.duelService.TickTimer(code, userID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDuelRoomResponse(room, nil))
}

// AbandonDuel помечает комнату покинутой
// POST /api/duels/:code/abandon
func (h *DuelHandler) AbandonDuel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	code := c.MustGet("roomCode").(string)

	room, err := h.duelService.Abandon(code, userID)
	if err != nil {
		h.handleDuelError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewDuelRoomResponse(room, nil))
}

// handleDuelError преобразует ошибки сервисов в HTTP статусы
func (h *DuelHandler) handleDuelError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrCapacityExhausted) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "capacity_exhausted"})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "error_type": "upstream_unavailable"})
	} else if errors.Is(err, apperrors.ErrInvariantViolation) {
		log.Printf("ERROR: Invariant violation in DuelHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "invariant_violation"})
	} else {
		log.Printf("ERROR: Internal server error in DuelHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
