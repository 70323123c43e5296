package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
)

// ProblemRepo реализует repository.ProblemRepository
type ProblemRepo struct {
	db *gorm.DB
}

// NewProblemRepo создает новый репозиторий каталога задач
func NewProblemRepo(db *gorm.DB) *ProblemRepo {
	return &ProblemRepo{db: db}
}

// GetByID возвращает задачу по ID
func (r *ProblemRepo) GetByID(id uint) (*entity.Problem, error) {
	var problem entity.Problem
	err := r.db.First(&problem, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &problem, nil
}

// GetRandomByDifficulty возвращает одну случайную задачу заданного уровня.
// Каталог невелик (сотни строк), ORDER BY RANDOM() здесь дешевле поддержки
// отдельного индекса выборки.
func (r *ProblemRepo) GetRandomByDifficulty(difficulty string) (*entity.Problem, error) {
	var problem entity.Problem
	err := r.db.Where("difficulty = ?", difficulty).
		Order("RANDOM()").
		First(&problem).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &problem, nil
}

// Create добавляет задачу в каталог
func (r *ProblemRepo) Create(problem *entity.Problem) error {
	return r.db.Create(problem).Error
}

// CreateBatch добавляет пакет задач (используется импортом из xlsx/csv)
func (r *ProblemRepo) CreateBatch(problems []entity.Problem) error {
	if len(problems) == 0 {
		return nil
	}
	return r.db.Create(&problems).Error
}

// List возвращает задачи с пагинацией; limit <= 0 отдает весь каталог
func (r *ProblemRepo) List(limit, offset int) ([]entity.Problem, error) {
	query := r.db.Order("id")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	var problems []entity.Problem
	err := query.Find(&problems).Error
	return problems, err
}

// CountByDifficulty возвращает количество задач уровня
func (r *ProblemRepo) CountByDifficulty(difficulty string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Problem{}).
		Where("difficulty = ?", difficulty).
		Count(&count).Error
	return count, err
}
