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

// MatchmakingHandler обрабатывает запросы автоподбора соперника
type MatchmakingHandler struct {
	matchmakingService *service.MatchmakingService
}

// NewMatchmakingHandler создает новый обработчик автоподбора
func NewMatchmakingHandler(matchmakingService *service.MatchmakingService) *MatchmakingHandler {
	return &MatchmakingHandler{matchmakingService: matchmakingService}
}

// JoinQueueRequest представляет запрос на вход в очередь
type JoinQueueRequest struct {
	TimeControlSec int    `json:"time_control_sec" binding:"required,min=1"`
	Difficulty     string `json:"difficulty" binding:"required"`
}

// JoinQueue ставит пользователя в очередь или сразу возвращает комнату
// POST /api/matchmaking/queue
func (h *MatchmakingHandler) JoinQueue(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := h.matchmakingService.JoinQueue(userID, req.TimeControlSec, req.Difficulty)
	if err != nil {
		h.handleMatchmakingError(c, err)
		return
	}

	// Немедленное спаривание отдаем как 201: комната создана этим запросом
	if status.Room != nil {
		c.JSON(http.StatusCreated, dto.NewQueueStatusResponse(status))
		return
	}
	c.JSON(http.StatusOK, dto.NewQueueStatusResponse(status))
}

// PollQueueStatus возвращает положение пользователя в подборе
// GET /api/matchmaking/queue
func (h *MatchmakingHandler) PollQueueStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	status, err := h.matchmakingService.PollQueueStatus(userID)
	if err != nil {
		h.handleMatchmakingError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewQueueStatusResponse(status))
}

// LeaveQueue снимает пользователя с очереди (идемпотентно)
// DELETE /api/matchmaking/queue
func (h *MatchmakingHandler) LeaveQueue(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.matchmakingService.LeaveQueue(userID); err != nil {
		h.handleMatchmakingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left matchmaking queue"})
}

// handleMatchmakingError преобразует ошибки сервиса в HTTP статусы
func (h *MatchmakingHandler) handleMatchmakingError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrCapacityExhausted) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "capacity_exhausted"})
	} else {
		log.Printf("ERROR: Internal server error in MatchmakingHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
