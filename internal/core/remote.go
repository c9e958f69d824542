package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"pl-ner-backend/internal/core/types"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	remoteTimeout    = 30 * time.Second
	remoteRetries    = 3
	defaultRemoteRPS = 5
)

var ErrRemoteModelFailed = errors.New("remote model request failed")

// RemoteModel calls a hosted token classification endpoint that speaks the
// Hugging Face inference API.
type RemoteModel struct {
	client  *resty.Client
	limiter *rate.Limiter
}

type remoteRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		AggregationStrategy string `json:"aggregation_strategy"`
	} `json:"parameters"`
}

type remoteEntity struct {
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
	Word        string  `json:"word"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

func NewRemoteModel(url, token string, rps float64) (*RemoteModel, error) {
	if url == "" {
		return nil, fmt.Errorf("remote model url must be specified")
	}
	if rps <= 0 {
		rps = defaultRemoteRPS
	}

	client := resty.New().
		SetBaseURL(url).
		SetTimeout(remoteTimeout).
		SetRetryCount(remoteRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 503 || r.StatusCode() == 429
		})
	if token != "" {
		client.SetAuthToken(token)
	}

	return &RemoteModel{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (m *RemoteModel) Predict(text string) ([]types.Entity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout*remoteRetries)
	defer cancel()

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	var req remoteRequest
	req.Inputs = text
	req.Parameters.AggregationStrategy = "simple"

	var result []remoteEntity
	res, err := m.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&result).
		Post("")
	if err != nil {
		slog.Error("unable to reach remote model", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRemoteModelFailed, err)
	}

	if !res.IsSuccess() {
		slog.Error("remote model returned error", "status_code", res.StatusCode(), "body", res.String())
		return nil, fmt.Errorf("%w: status %d", ErrRemoteModelFailed, res.StatusCode())
	}

	// offsets from the endpoint count characters, not bytes
	runes := []rune(text)
	ents := make([]types.Entity, 0, len(result))
	for _, e := range result {
		ents = append(ents, types.CreateEntityWithRune(e.EntityGroup, runes, e.Start, e.End, e.Score))
	}
	return ents, nil
}

func (m *RemoteModel) Release() {}
