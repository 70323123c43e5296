package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
)

var roomCodeRe = regexp.MustCompile(`^\d{6}$`)

// ExtractRoomCode создает middleware для извлечения и валидации кода комнаты.
// Код — всегда ровно 6 цифр; всё остальное отсекается до обращения к хранилищу.
func ExtractRoomCode(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param(paramName)
		if !roomCodeRe.MatchString(code) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s: must be a 6-digit code", paramName)})
			c.Abort()
			return
		}
		c.Set(contextKey, code)
		c.Next()
	}
}

// ExtractUintParam создает middleware для извлечения и валидации числового параметра URL.
// paramName - имя параметра в URL (например, "id").
// contextKey - ключ, под которым значение будет сохранено в контексте Gin.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		id, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		// Сохраняем как uint для единообразия
		c.Set(contextKey, uint(id))
		c.Next()
	}
}
