package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	types "github.com/yungbote/pathfinder-backend/internal/domain"
	"github.com/yungbote/pathfinder-backend/internal/observability"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
	"github.com/yungbote/pathfinder-backend/internal/platform/logger"
	"github.com/yungbote/pathfinder-backend/internal/platform/openai"
)

// Oracle scores a catalog for a profile. The returned hints may be partial,
// duplicated or reference unknown ids. Failures are *apierr.Error values.
type Oracle interface {
	Rank(ctx context.Context, profile ProfileSnapshot, catalog []*types.Suggestion) ([]ScoredID, error)
}

type OracleConfig struct {
	Timeout time.Duration
	// RPS <= 0 disables the limiter.
	RPS   float64
	Burst int
	TopN  int
}

const breakerName = "ranking-oracle"

const rankingSchemaName = "ranking"

var rankingSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"suggestions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"external_id": map[string]any{"type": "string"},
					"score":       map[string]any{"type": "number"},
				},
				"required":             []string{"external_id", "score"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"suggestions"},
	"additionalProperties": false,
}

const systemRulesTemplate = `You rank high school clubs, tutoring programs and competitions for one student. You receive the student's basic information, interests, goals and additional information, followed by the list of suggestions.

Tasks:
- Give every suggestion a score between 0 and 100 based only on the information provided. Do not invent facts.
- Return the %[1]d highest-scoring suggestions. When there are %[1]d or fewer suggestions, return all of them.
- Use the external_id exactly as given.

Scoring:
- +40 when the tags relate to the student's interests.
- +30 when the tags relate to the student's goals.
- +30 when the tags relate to the student's additional information.
- -20 when the tags relate to none of the above.

Output: JSON only.`

type oracleSuggestion struct {
	ExternalID  string   `json:"external_id"`
	Name        string   `json:"name"`
	Category    []string `json:"category"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type oraclePayload struct {
	BasicInfo      map[string]any     `json:"basic_info"`
	Interests      []string           `json:"interests"`
	Goals          []string           `json:"goals"`
	AdditionalInfo string             `json:"additional_info"`
	Suggestions    []oracleSuggestion `json:"suggestions"`
}

type oracleResponse struct {
	Suggestions []struct {
		ExternalID *string  `json:"external_id"`
		Score      *float64 `json:"score"`
	} `json:"suggestions"`
}

type llmOracle struct {
	log     *logger.Logger
	llm     openai.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]ScoredID]
	timeout time.Duration
	system  string
}

func NewLLMOracle(log *logger.Logger, llm openai.Client, cfg OracleConfig) (Oracle, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if llm == nil {
		return nil, fmt.Errorf("llm client required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 20
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	olog := log.With("service", "RankingOracle")
	observability.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]ScoredID](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// Opens at 60% failures over at least 5 calls in the window.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		// A caller hanging up says nothing about the oracle.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			olog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			observability.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &llmOracle{
		log:     olog,
		llm:     llm,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		cb:      cb,
		timeout: cfg.Timeout,
		system:  fmt.Sprintf(systemRulesTemplate, cfg.TopN),
	}, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (o *llmOracle) Rank(ctx context.Context, profile ProfileSnapshot, catalog []*types.Suggestion) ([]ScoredID, error) {
	start := time.Now()
	hints, err := o.rank(ctx, profile, catalog)
	observability.OracleLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		var ae *apierr.Error
		if !errors.As(err, &ae) {
			ae = apierr.Upstream(err)
		}
		observability.OracleRequests.WithLabelValues(ae.Code).Inc()
		return nil, ae
	}
	observability.OracleRequests.WithLabelValues("ok").Inc()
	return hints, nil
}

func (o *llmOracle) rank(ctx context.Context, profile ProfileSnapshot, catalog []*types.Suggestion) ([]ScoredID, error) {
	user, err := buildOraclePayload(profile, catalog)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("build oracle payload: %w", err))
	}

	if err := o.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, apierr.Upstream(ctx.Err())
		}
		return nil, apierr.Upstream(fmt.Errorf("%w: rate limited: %v", apierr.ErrUnavailable, err))
	}

	hints, err := o.cb.Execute(func() ([]ScoredID, error) {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		obj, err := o.llm.GenerateJSON(callCtx, o.system, user, rankingSchemaName, rankingSchema)
		if err != nil {
			if callCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("ranking oracle timed out after %s: %w", o.timeout, context.DeadlineExceeded)
			}
			return nil, err
		}
		return parseOracleResponse(obj)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apierr.Upstream(fmt.Errorf("%w: %v", apierr.ErrUnavailable, err))
	}
	if err != nil {
		o.log.Warn("ranking oracle failed", "error", err, "catalog_size", len(catalog))
		return nil, apierr.Upstream(err)
	}
	return hints, nil
}

func buildOraclePayload(profile ProfileSnapshot, catalog []*types.Suggestion) (string, error) {
	p := oraclePayload{
		BasicInfo:   profile.BasicInformation,
		Interests:   profile.Interests,
		Goals:       profile.Goals,
		Suggestions: make([]oracleSuggestion, 0, len(catalog)),
	}
	if p.BasicInfo == nil {
		p.BasicInfo = map[string]any{}
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.Goals == nil {
		p.Goals = []string{}
	}
	if profile.OtherGoals != nil {
		p.AdditionalInfo = strings.TrimSpace(*profile.OtherGoals)
	}
	for _, s := range CatalogOrder(catalog) {
		p.Suggestions = append(p.Suggestions, oracleSuggestion{
			ExternalID:  s.ExternalID,
			Name:        s.Name,
			Category:    nonNilStrings(s.Category),
			Description: s.Description,
			Tags:        nonNilStrings(s.Tags),
		})
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// parseOracleResponse rejects anything that does not match the ranking
// schema. Duplicate and unknown ids are left for Merge.
func parseOracleResponse(obj map[string]any) ([]ScoredID, error) {
	if obj == nil {
		return nil, errors.New("ranking oracle: empty response")
	}
	if _, ok := obj["suggestions"]; !ok {
		return nil, errors.New("ranking oracle: response missing suggestions")
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("ranking oracle: %w", err)
	}
	var resp oracleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("ranking oracle: malformed response: %w", err)
	}
	out := make([]ScoredID, 0, len(resp.Suggestions))
	for i, s := range resp.Suggestions {
		if s.ExternalID == nil || strings.TrimSpace(*s.ExternalID) == "" {
			return nil, fmt.Errorf("ranking oracle: suggestion %d has no external_id", i)
		}
		if s.Score == nil {
			return nil, fmt.Errorf("ranking oracle: suggestion %d has no score", i)
		}
		score := *s.Score
		out = append(out, ScoredID{ExternalID: strings.TrimSpace(*s.ExternalID), Score: &score})
	}
	return out, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
