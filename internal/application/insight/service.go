package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-insight/internal/application"
	"github.com/bryanwahyu/automaton-insight/internal/domain/events"
	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/domain/severity"
	"github.com/bryanwahyu/automaton-insight/internal/metrics"
)

// Invoker is anything that can answer a structured request.
type Invoker interface {
	Invoke(ctx context.Context, req domain.Request) (domain.Result, error)
}

// Service implements the structured insight use-case.
// Runs, Payloads and Events are optional; Gateway is required.
// Service is safe for concurrent use.
type Service struct {
	Gateway  domain.Gateway
	Runs     domain.Repository
	Payloads domain.PayloadStore
	Events   events.Publisher
	Clock    application.Clock
	Logger   *zap.Logger
	// Timeout bounds a single Invoke, retries included. Zero means no limit.
	Timeout time.Duration
}

// Invoke issues one structured request and returns the validated result.
// Identical requests are never memoized: each call reaches the gateway.
func (s *Service) Invoke(ctx context.Context, req domain.Request) (domain.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.Gateway == nil {
		return nil, errors.New("insight: no gateway configured")
	}

	start := s.now()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	ctx = domain.WithAttempts(ctx)

	raw, err := s.Gateway.Complete(ctx, domain.Completion{Prompt: req.Prompt, Schema: req.Schema})
	var res domain.Result
	var counts severity.Counts
	if err != nil {
		err = domain.Classify(ctx, err)
	} else {
		res, err = Decode(raw, req.Schema)
		if err == nil {
			counts = severity.Normalize(map[string]any(res), req.Schema)
		}
	}

	attempts := domain.AttemptsFrom(ctx)
	if attempts == 0 {
		attempts = 1
	}
	s.record(context.WithoutCancel(ctx), req, res, err, counts, attempts, s.now().Sub(start))
	return res, err
}

func (s *Service) record(ctx context.Context, req domain.Request, res domain.Result, err error, counts severity.Counts, attempts int, took time.Duration) {
	provider := s.Gateway.Name()
	run := &domain.Run{
		ID:         domain.RunID(uuid.New().String()),
		TenantID:   req.TenantID,
		Slot:       req.Slot,
		Provider:   provider,
		Prompt:     req.Prompt,
		SchemaJSON: req.Schema.String(),
		Status:     domain.RunSucceeded,
		Attempts:   attempts,
		DurationMS: took.Milliseconds(),
		CreatedAt:  s.now(),
	}

	log := s.log().With(
		zap.String("run_id", string(run.ID)),
		zap.String("tenant", req.TenantID),
		zap.String("slot", req.Slot),
		zap.String("provider", provider),
		zap.Int("attempts", attempts),
		zap.Duration("took", took),
	)

	if err == nil {
		if b, mErr := json.Marshal(res); mErr == nil {
			run.ResultJSON = string(b)
		}
		log.Info("insight completed")
	} else {
		var rf *domain.RequestFailed
		errors.As(err, &rf)
		run.ErrorMessage = err.Error()
		run.Status = domain.RunFailed
		if rf != nil {
			run.ErrorKind = rf.Kind
			if rf.Kind == domain.KindCancelled {
				run.Status = domain.RunCancelled
			}
			if rf.Kind == domain.KindInvalidResponse && s.Payloads != nil && len(rf.Payload) > 0 {
				key := fmt.Sprintf("%s/payloads/%s.txt", tenantOrDefault(req.TenantID), run.ID)
				url, pErr := s.Payloads.PutPayload(ctx, key, rf.Payload)
				if pErr != nil {
					log.Warn("failed to archive invalid payload", zap.Error(pErr))
				} else {
					run.PayloadURL = url
					rf.PayloadURL = url
				}
			}
		}
		if run.Status == domain.RunCancelled {
			log.Debug("insight cancelled", zap.Error(err))
		} else {
			log.Warn("insight failed", zap.String("kind", string(run.ErrorKind)), zap.Error(err))
		}
	}

	metrics.InsightRequestsTotal.WithLabelValues(provider, string(run.Status), string(run.ErrorKind)).Inc()
	metrics.InsightDuration.WithLabelValues(provider).Observe(took.Seconds())

	if s.Runs != nil {
		if sErr := s.Runs.Save(ctx, run); sErr != nil {
			log.Error("failed to save run", zap.Error(sErr))
		}
	}
	s.publish(ctx, run, counts)
}

func (s *Service) publish(ctx context.Context, run *domain.Run, counts severity.Counts) {
	if s.Events == nil || run.Status == domain.RunCancelled {
		return
	}
	e := events.Event{
		Kind:     events.InsightCompleted,
		TenantID: run.TenantID,
		Source:   run.Slot,
		Attrs: map[string]string{
			"run_id":   string(run.ID),
			"provider": run.Provider,
			"attempts": strconv.Itoa(run.Attempts),
		},
	}
	if run.Status == domain.RunFailed {
		e.Kind = events.InsightFailed
		e.Attrs["error_kind"] = string(run.ErrorKind)
	} else if lvl, ok := counts.Max(); ok {
		e.Severity = lvl
		e.Attrs["findings"] = strconv.Itoa(counts.Total)
	}
	s.Events.Publish(ctx, e)
}

// Get returns one recorded run.
func (s *Service) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.Run, error) {
	if s.Runs == nil {
		return nil, fmt.Errorf("%w: run history is disabled", domain.ErrRunNotFound)
	}
	return s.Runs.Get(ctx, tenant, id)
}

// ListRuns returns a page of recorded runs, newest first.
func (s *Service) ListRuns(ctx context.Context, tenant string, page, pageSize int) (domain.Page, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if s.Runs == nil {
		return domain.Page{Data: []*domain.Run{}, Page: page, PageSize: pageSize}, nil
	}
	list, err := s.Runs.Paginate(ctx, tenant, page, pageSize)
	if err != nil {
		return domain.Page{}, err
	}
	if list == nil {
		list = []*domain.Run{}
	}
	return domain.Page{Data: list, Page: page, PageSize: pageSize}, nil
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func tenantOrDefault(t string) string {
	if t == "" {
		return "default"
	}
	return t
}
