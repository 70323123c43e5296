package mathjudge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteJudge проверяет ответы через внешний сервис математической проверки.
// Любой сбой транспорта или не-2xx ответ возвращается ошибкой: вызывающий
// трактует её как UpstreamUnavailable и не засчитывает попытку игрока.
type RemoteJudge struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewRemoteJudge создает судью, обращающегося к внешнему сервису проверки
func NewRemoteJudge(url string, timeout time.Duration) *RemoteJudge {
	return &RemoteJudge{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type remoteRequest struct {
	Answer           string   `json:"answer"`
	Solution         string   `json:"solution"`
	AlternativeForms []string `json:"alternative_forms,omitempty"`
}

type remoteResponse struct {
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback"`
}

// Evaluate отправляет ответ на проверку внешнему сервису
func (j *RemoteJudge) Evaluate(ctx context.Context, submitted, solution string, alternatives []string) (*Verdict, error) {
	body, err := json.Marshal(remoteRequest{
		Answer:           submitted,
		Solution:         solution,
		AlternativeForms: alternatives,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal judge request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judge returned status %d", resp.StatusCode)
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode judge response: %w", err)
	}

	return &Verdict{IsCorrect: out.IsCorrect, Feedback: out.Feedback}, nil
}
