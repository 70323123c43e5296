package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/integral-arena-api/internal/domain/entity"
	"github.com/yourusername/integral-arena-api/internal/domain/repository"
	apperrors "github.com/yourusername/integral-arena-api/internal/pkg/errors"
)

// ProblemHandler обрабатывает запросы каталога задач на интегрирование
type ProblemHandler struct {
	problemRepo repository.ProblemRepository
}

// NewProblemHandler создает новый обработчик каталога задач
func NewProblemHandler(problemRepo repository.ProblemRepository) *ProblemHandler {
	return &ProblemHandler{problemRepo: problemRepo}
}

// CreateProblemRequest представляет запрос на добавление задачи
type CreateProblemRequest struct {
	Difficulty       string   `json:"difficulty" binding:"required"`
	Statement        string   `json:"statement" binding:"required,min=3,max=500"`
	Solution         string   `json:"solution" binding:"required,max=255"`
	AlternativeForms []string `json:"alternative_forms"`
	Hint             string   `json:"hint,omitempty"`
}

// CreateProblem добавляет одну задачу в каталог
// POST /api/problems
func (h *ProblemHandler) CreateProblem(c *gin.Context) {
	var req CreateProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !entity.IsValidDifficulty(req.Difficulty) || req.Difficulty == entity.DifficultyMixed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty must be Basic, Intermediate or Advanced"})
		return
	}

	problem := &entity.Problem{
		Difficulty:       req.Difficulty,
		Statement:        req.Statement,
		Solution:         req.Solution,
		AlternativeForms: entity.StringArray(req.AlternativeForms),
		Hint:             req.Hint,
	}
	if err := h.problemRepo.Create(problem); err != nil {
		h.handleProblemError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": problem.ID, "message": "Problem created"})
}

// BulkUploadProblemsRequest представляет запрос на массовую загрузку задач
type BulkUploadProblemsRequest struct {
	Problems []CreateProblemRequest `json:"problems" binding:"required,min=1"`
}

// BulkUploadProblems загружает пакет задач из JSON
// POST /api/problems/bulk
func (h *ProblemHandler) BulkUploadProblems(c *gin.Context) {
	var req BulkUploadProblemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	problems := make([]entity.Problem, 0, len(req.Problems))
	for i, p := range req.Problems {
		if !entity.IsValidDifficulty(p.Difficulty) || p.Difficulty == entity.DifficultyMixed {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("invalid difficulty %q for problem #%d", p.Difficulty, i+1),
			})
			return
		}
		problems = append(problems, entity.Problem{
			Difficulty:       p.Difficulty,
			Statement:        p.Statement,
			Solution:         p.Solution,
			AlternativeForms: entity.StringArray(p.AlternativeForms),
			Hint:             p.Hint,
		})
	}

	if err := h.problemRepo.CreateBatch(problems); err != nil {
		h.handleProblemError(c, err)
		return
	}

	// Подсчитываем задачи по сложности для ответа
	difficultyCount := make(map[string]int)
	for _, p := range problems {
		difficultyCount[p.Difficulty]++
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Problems uploaded successfully",
		"total":         len(problems),
		"by_difficulty": difficultyCount,
	})
}

// ImportProblems загружает задачи из xlsx файла.
// Колонки: A — сложность, B — условие, C — решение,
// D — альтернативные формы через ';', E — подсказка.
// POST /api/problems/import
func (h *ProblemHandler) ImportProblems(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid xlsx file"})
		return
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read sheet rows"})
		return
	}

	var problems []entity.Problem
	var skipped []int
	for i, row := range rows {
		if i == 0 {
			continue // строка заголовков
		}
		if len(row) < 3 || strings.TrimSpace(row[1]) == "" || strings.TrimSpace(row[2]) == "" {
			skipped = append(skipped, i+1)
			continue
		}

		difficulty := strings.TrimSpace(row[0])
		if !entity.IsValidDifficulty(difficulty) || difficulty == entity.DifficultyMixed {
			skipped = append(skipped, i+1)
			continue
		}

		var alternatives entity.StringArray
		if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
			for _, alt := range strings.Split(row[3], ";") {
				if a := strings.TrimSpace(alt); a != "" {
					alternatives = append(alternatives, a)
				}
			}
		}
		hint := ""
		if len(row) > 4 {
			hint = strings.TrimSpace(row[4])
		}

		problems = append(problems, entity.Problem{
			Difficulty:       difficulty,
			Statement:        strings.TrimSpace(row[1]),
			Solution:         strings.TrimSpace(row[2]),
			AlternativeForms: alternatives,
			Hint:             hint,
		})
	}

	if len(problems) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid problems in file", "skipped_rows": skipped})
		return
	}

	if err := h.problemRepo.CreateBatch(problems); err != nil {
		h.handleProblemError(c, err)
		return
	}

	log.Printf("[ProblemHandler] Импортировано %d задач из %s (пропущено строк: %d)",
		len(problems), fileHeader.Filename, len(skipped))
	c.JSON(http.StatusOK, gin.H{
		"message":      "Problems imported successfully",
		"imported":     len(problems),
		"skipped_rows": skipped,
	})
}

// ExportProblems выгружает каталог в CSV или Excel формате
// GET /api/problems/export?format=csv|xlsx
func (h *ProblemHandler) ExportProblems(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	// Весь каталог без пагинации
	problems, err := h.problemRepo.List(0, 0)
	if err != nil {
		h.handleProblemError(c, err)
		return
	}

	filename := fmt.Sprintf("problems_%s", time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, problems, filename)
	default:
		h.exportCSV(c, problems, filename)
	}
}

// exportCSV выгружает каталог в CSV с правильным экранированием спецсимволов
func (h *ProblemHandler) exportCSV(c *gin.Context, problems []entity.Problem, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"ID", "Сложность", "Условие", "Решение", "Альтернативные формы", "Подсказка"})
	for _, p := range problems {
		writer.Write([]string{
			strconv.Itoa(int(p.ID)),
			p.Difficulty,
			p.Statement,
			p.Solution,
			strings.Join(p.AlternativeForms, ";"),
			p.Hint,
		})
	}
}

// exportXLSX выгружает каталог в Excel с использованием StreamWriter
func (h *ProblemHandler) exportXLSX(c *gin.Context, problems []entity.Problem, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Задачи"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[ProblemHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"ID", "Сложность", "Условие", "Решение", "Альтернативные формы", "Подсказка"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[ProblemHandler] Ошибка записи заголовков: %v", err)
	}

	for i, p := range problems {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			int(p.ID),
			p.Difficulty,
			p.Statement,
			p.Solution,
			strings.Join(p.AlternativeForms, ";"),
			p.Hint,
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[ProblemHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[ProblemHandler] Ошибка завершения StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to finalize Excel file"})
		return
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[ProblemHandler] Ошибка отправки Excel файла: %v", err)
	}
}

// ListProblems возвращает страницу каталога (без решений)
// GET /api/problems?page=1&per_page=20
func (h *ProblemHandler) ListProblems(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	problems, err := h.problemRepo.List(perPage, (page-1)*perPage)
	if err != nil {
		h.handleProblemError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": problems,
		"page":     page,
		"per_page": perPage,
	})
}

// GetCatalogStats возвращает число задач по уровням сложности
// GET /api/problems/stats
func (h *ProblemHandler) GetCatalogStats(c *gin.Context) {
	stats := make(map[string]int64)
	for _, d := range []string{entity.DifficultyBasic, entity.DifficultyIntermediate, entity.DifficultyAdvanced} {
		count, err := h.problemRepo.CountByDifficulty(d)
		if err != nil {
			h.handleProblemError(c, err)
			return
		}
		stats[d] = count
	}

	c.JSON(http.StatusOK, gin.H{"by_difficulty": stats})
}

// handleProblemError преобразует ошибки репозитория в HTTP статусы
func (h *ProblemHandler) handleProblemError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in ProblemHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
