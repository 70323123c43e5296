package mathjudge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Verdict — результат проверки ответа
type Verdict struct {
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback"`
}

// Judge проверяет, эквивалентен ли присланный ответ каноническому решению.
// Ошибка означает «проверить сейчас невозможно» (таймаут, сбой внешнего
// сервиса); вызывающий обязан не менять состояние комнаты и дать игроку
// отправить ответ повторно.
type Judge interface {
	Evaluate(ctx context.Context, submitted, solution string, alternatives []string) (*Verdict, error)
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	constantRe   = regexp.MustCompile(`(?i)\+\s*(c|constant)$`)
)

// normalize приводит математическое выражение к сравнимой форме:
// нижний регистр, без пробелов, ** → ^
func normalize(expr string) string {
	s := strings.ToLower(expr)
	s = whitespaceRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "^")
	return s
}

// stripConstant отбрасывает хвостовую константу интегрирования (+C)
func stripConstant(expr string) string {
	return constantRe.ReplaceAllString(expr, "")
}

// LocalJudge сравнивает нормализованные формы ответа с каноническим решением
// и допустимыми альтернативными записями. Не понимает глубокой алгебраической
// эквивалентности — для неё предназначен удаленный судья.
type LocalJudge struct{}

// NewLocalJudge создает локального судью
func NewLocalJudge() *LocalJudge {
	return &LocalJudge{}
}

// Evaluate проверяет ответ нормализующим сравнением
func (j *LocalJudge) Evaluate(_ context.Context, submitted, solution string, alternatives []string) (*Verdict, error) {
	user := normalize(submitted)
	if user == "" {
		return &Verdict{IsCorrect: false, Feedback: "Empty answer"}, nil
	}

	correct := normalize(solution)
	if user == correct || stripConstant(user) == stripConstant(correct) {
		return correctVerdict(), nil
	}

	for _, alt := range alternatives {
		a := normalize(alt)
		if user == a || stripConstant(user) == stripConstant(a) {
			return correctVerdict(), nil
		}
	}

	return &Verdict{
		IsCorrect: false,
		Feedback:  fmt.Sprintf("Incorrect. The answer was: %s", solution),
	}, nil
}

func correctVerdict() *Verdict {
	return &Verdict{IsCorrect: true, Feedback: "Correct! +1 point"}
}
