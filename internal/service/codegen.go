package service

import (
	"fmt"
	"math/rand"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
)

// generateRoomCode возвращает случайный 6-значный код комнаты.
// Уникальность обеспечивает не генератор, а unique index в хранилище:
// вызывающий повторяет генерацию при ErrCodeTaken (ограниченное число раз).
func generateRoomCode() string {
	return fmt.Sprintf("%d", 100000+rand.Intn(900000))
}

// resolveDifficulty разрешает "Mixed" в конкретный уровень равномерной выборкой.
// Конкретные уровни возвращаются как есть.
func resolveDifficulty(difficulty string) string {
	if difficulty != entity.DifficultyMixed {
		return difficulty
	}
	tiers := []string{entity.DifficultyBasic, entity.DifficultyIntermediate, entity.DifficultyAdvanced}
	return tiers[rand.Intn(len(tiers))]
}
