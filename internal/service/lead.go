package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/config"
	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/dto"
	"github.com/raczniakservices/HVAC/internal/metrics"
	"github.com/raczniakservices/HVAC/internal/queue"
	"github.com/raczniakservices/HVAC/internal/repository"
	"github.com/raczniakservices/HVAC/internal/sla"
)

const publishTimeout = 5 * time.Second

// LeadService implements LeadServicer on top of the event store
type LeadService struct {
	repository repository.EventRepository
	ledger     repository.ActivityRepository
	publisher  queue.ActivityPublisher
	evaluator  sla.Evaluator
	recorder   *metrics.Recorder
	dashboard  config.Dashboard
	now        func() time.Time
	log        *zap.Logger
}

// Option configures a LeadService
type Option func(*LeadService)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *LeadService) { s.now = now }
}

// WithMetrics records ingestion and mutation counters on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *LeadService) { s.recorder = r }
}

// WithDashboard sets the options served to the dashboard.
func WithDashboard(d config.Dashboard) Option {
	return func(s *LeadService) { s.dashboard = d }
}

// WithLedger enables response-time reports backed by the activity ledger.
func WithLedger(ledger repository.ActivityRepository) Option {
	return func(s *LeadService) { s.ledger = ledger }
}

// NewLeadService creates a new lead service. A nil publisher drops activity.
func NewLeadService(repo repository.EventRepository, publisher queue.ActivityPublisher, evaluator sla.Evaluator, log *zap.Logger, opts ...Option) *LeadService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	s := &LeadService{
		repository: repo,
		publisher:  publisher,
		evaluator:  evaluator,
		dashboard:  *config.DefaultDashboard(),
		now:        time.Now,
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LeadService) clock() time.Time {
	return s.now().UTC()
}

func (s *LeadService) render(e *domain.Event, now time.Time) *dto.EventResponse {
	r := dto.NewEventResponse(sla.AnnotateOne(s.evaluator, e, now))
	return &r
}

// CreateEvent validates and stores a new inbound event
func (s *LeadService) CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	draft, err := req.Draft()
	if err != nil {
		return nil, err
	}

	now := s.clock()
	event, err := domain.NewEvent(draft, now)
	if err != nil {
		s.log.Warn("Rejected event",
			zap.String("source", req.Source),
			zap.Error(err))
		return nil, err
	}

	if err := s.repository.Create(ctx, event); err != nil {
		return nil, err
	}

	s.log.Info("Event recorded",
		zap.Int64("event_id", event.ID),
		zap.String("source", string(event.Source)),
		zap.String("status", string(event.Status)))

	s.recorder.EventIngested(string(event.Source), "created")
	s.publish(ctx, domain.ActivityCreated, event, now)
	return s.render(event, now), nil
}

// ListEvents returns the newest leads first
func (s *LeadService) ListEvents(ctx context.Context, limit int) ([]dto.EventResponse, error) {
	events, err := s.repository.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewEventResponses(sla.Annotate(s.evaluator, events, s.clock())), nil
}

// GetEvent returns one lead
func (s *LeadService) GetEvent(ctx context.Context, id int64) (*dto.EventResponse, error) {
	event, err := s.repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.render(event, s.clock()), nil
}

// SetOwner assigns or clears the owner of a lead
func (s *LeadService) SetOwner(ctx context.Context, req *dto.OwnerRequest) (*dto.EventResponse, error) {
	return s.mutate(ctx, "owner", req.EventID, func(e *domain.Event, now time.Time) (domain.ActivityKind, error) {
		e.AssignOwner(req.Owner, now)
		return domain.ActivityOwnerSet, nil
	})
}

// SetNextStep sets or clears the next step of a lead
func (s *LeadService) SetNextStep(ctx context.Context, req *dto.NextStepRequest) (*dto.EventResponse, error) {
	step, err := domain.ParseNextStep(req.NextStep)
	if err != nil {
		s.recorder.Mutation("next_step", metrics.ResultInvalid)
		return nil, err
	}
	return s.mutate(ctx, "next_step", req.EventID, func(e *domain.Event, now time.Time) (domain.ActivityKind, error) {
		e.SetNextStep(step, now)
		return domain.ActivityNextStepSet, nil
	})
}

// SetResult sets or clears the outcome of a lead. The result must be sent
// explicitly; null clears it.
func (s *LeadService) SetResult(ctx context.Context, req *dto.ResultRequest) (*dto.EventResponse, error) {
	if !req.Result.Present {
		s.recorder.Mutation("result", metrics.ResultInvalid)
		return nil, domain.NewValidationError("result", "result is required; send null to clear it")
	}
	outcome, err := domain.ParseOutcome(req.Result.Value)
	if err != nil {
		s.recorder.Mutation("result", metrics.ResultInvalid)
		return nil, err
	}
	return s.mutate(ctx, "result", req.EventID, func(e *domain.Event, now time.Time) (domain.ActivityKind, error) {
		e.SetOutcome(outcome, now)
		if outcome == nil {
			return domain.ActivityOutcomeCleared, nil
		}
		return domain.ActivityOutcomeSet, nil
	})
}

type mutation func(e *domain.Event, now time.Time) (domain.ActivityKind, error)

// mutate runs apply inside one store transaction and publishes the change.
func (s *LeadService) mutate(ctx context.Context, field string, id int64, apply mutation) (*dto.EventResponse, error) {
	now := s.clock()

	var kind domain.ActivityKind
	event, err := s.repository.Update(ctx, id, func(e *domain.Event) error {
		k, err := apply(e, now)
		kind = k
		return err
	})
	if err != nil {
		s.recorder.Mutation(field, mutationResult(err))
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error("Triage update failed",
				zap.String("field", field),
				zap.Int64("event_id", id),
				zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("Lead updated",
		zap.String("field", field),
		zap.Int64("event_id", id),
		zap.String("state", string(event.State())))

	s.recorder.Mutation(field, metrics.ResultOK)
	s.publish(ctx, kind, event, now)
	return s.render(event, now), nil
}

// DeleteEvent removes one lead
func (s *LeadService) DeleteEvent(ctx context.Context, id int64, confirmUnresolved bool) error {
	now := s.clock()
	event, err := s.repository.Delete(ctx, id, confirmUnresolved)
	if err != nil {
		s.recorder.Mutation("delete", mutationResult(err))
		return err
	}

	s.log.Info("Lead deleted",
		zap.Int64("event_id", id),
		zap.Bool("was_resolved", event.Resolved()))

	s.recorder.Mutation("delete", metrics.ResultOK)
	s.publish(ctx, domain.ActivityDeleted, event, now)
	return nil
}

// ClearAll removes every lead
func (s *LeadService) ClearAll(ctx context.Context, confirmUnresolved bool) (int64, error) {
	removed, err := s.repository.DeleteAll(ctx, confirmUnresolved)
	if err != nil {
		s.recorder.Mutation("clear_all", mutationResult(err))
		return 0, err
	}
	s.recorder.Mutation("clear_all", metrics.ResultOK)
	return removed, nil
}

// Summary counts the latest leads per triage state
func (s *LeadService) Summary(ctx context.Context) (*dto.SummaryResponse, error) {
	events, err := s.repository.List(ctx, repository.MaxListLimit)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	summary := domain.Summarize(sla.Annotate(s.evaluator, events, now))
	s.recorder.SetOverdue(summary.Overdue)
	return &dto.SummaryResponse{Summary: summary, GeneratedAt: now}, nil
}

// DashboardConfig returns the dashboard options
func (s *LeadService) DashboardConfig() dto.ConfigResponse {
	var threshold time.Duration
	if p, ok := s.evaluator.(*sla.ThresholdPolicy); ok && p != nil {
		threshold = p.Threshold
	}
	return dto.NewConfigResponse(s.dashboard, threshold)
}

// publish sends activity to the queue. Failures are logged and counted but
// never fail the mutation that caused them.
func (s *LeadService) publish(ctx context.Context, kind domain.ActivityKind, e *domain.Event, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	activity := domain.NewActivity(kind, e, at)
	if err := s.publisher.PublishActivity(ctx, activity); err != nil {
		s.recorder.PublishFailed()
		s.log.Warn("Failed to publish lead activity",
			zap.Int64("event_id", e.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

func mutationResult(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return metrics.ResultInvalid
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, domain.ErrConflict):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
