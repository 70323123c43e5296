package repository

import "github.com/yourusername/integral-arena-api/internal/domain/entity"

// ProblemRepository определяет методы каталога задач на интегрирование.
// GetRandomByDifficulty — это контракт ProblemCatalog: одна случайная задача
// заданного конкретного уровня ("Mixed" разрешается вызывающим до обращения).
type ProblemRepository interface {
	GetByID(id uint) (*entity.Problem, error)
	GetRandomByDifficulty(difficulty string) (*entity.Problem, error)
	Create(problem *entity.Problem) error
	CreateBatch(problems []entity.Problem) error
	List(limit, offset int) ([]entity.Problem, error)
	CountByDifficulty(difficulty string) (int64, error)
}
