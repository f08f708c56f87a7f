// Package dashboard keeps an operator's working copy of the lead list in
// step with the server while edits are in flight.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/dto"
	"github.com/raczniakservices/HVAC/internal/repository"
)

const (
	DefaultRefreshInterval = 10 * time.Second
	DefaultMutationPause   = 3 * time.Second
)

var (
	// ErrUnknownLead is returned when a mutation targets a row the session
	// does not hold.
	ErrUnknownLead = errors.New("lead is not in the current view")

	// ErrDeclined is returned when the operator refuses a confirmation.
	ErrDeclined = errors.New("operator declined")
)

// View receives every state change of a session.
type View interface {
	Render(snapshot Snapshot)
	Notify(err error)
}

// Confirmer asks the operator before unresolved leads are deleted.
type Confirmer interface {
	ConfirmDelete(lead dto.EventResponse) bool
	ConfirmClearAll(unresolved int64) bool
}

// Snapshot is what a view renders.
type Snapshot struct {
	Leads       []dto.EventResponse
	Summary     domain.Summary
	LastFetchAt time.Time
}

// Options tunes a session.
type Options struct {
	RefreshInterval time.Duration
	MutationPause   time.Duration
	HideSimulator   bool
	Limit           int
}

// OptionsFromConfig builds session options from the server's dashboard config.
func OptionsFromConfig(cfg *dto.ConfigResponse) Options {
	return Options{
		RefreshInterval: time.Duration(cfg.RefreshIntervalSec) * time.Second,
		MutationPause:   time.Duration(cfg.MutationPauseMs) * time.Millisecond,
		HideSimulator:   cfg.HideSimulator,
	}
}

// Session is one operator's reconciled view of the lead list.
type Session struct {
	client  Client
	view    View
	confirm Confirmer
	opts    Options
	now     func() time.Time
	log     *zap.Logger

	mu          sync.Mutex
	leads       []dto.EventResponse
	epoch       uint64
	mutating    map[int64]int
	pending     map[int64][]*pendingEdit
	confirmed   map[int64]dto.EventResponse
	fetching    bool
	hidden      bool
	interacting bool
	pausedUntil time.Time
	lastFetchAt time.Time
}

func NewSession(client Client, view View, confirm Confirmer, opts Options, log *zap.Logger) *Session {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.MutationPause < 0 {
		opts.MutationPause = 0
	}
	if opts.Limit <= 0 {
		opts.Limit = repository.DefaultListLimit
	}
	return &Session{
		client:    client,
		view:      view,
		confirm:   confirm,
		opts:      opts,
		now:       time.Now,
		log:       log,
		mutating:  make(map[int64]int),
		pending:   make(map[int64][]*pendingEdit),
		confirmed: make(map[int64]dto.EventResponse),
	}
}

// SetHidden suspends auto-refresh while the view is not visible.
func (s *Session) SetHidden(hidden bool) {
	s.mu.Lock()
	s.hidden = hidden
	s.mu.Unlock()
}

// SetInteracting suspends auto-refresh while the operator edits a control.
func (s *Session) SetInteracting(interacting bool) {
	s.mu.Lock()
	s.interacting = interacting
	s.mu.Unlock()
}

// Snapshot returns the current rendered state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	leads := make([]dto.EventResponse, 0, len(s.leads))
	for _, l := range s.leads {
		if s.opts.HideSimulator && l.Source == string(domain.SourceSimulator) {
			continue
		}
		leads = append(leads, l)
	}
	return Snapshot{
		Leads:       leads,
		Summary:     summarize(leads),
		LastFetchAt: s.lastFetchAt,
	}
}

func summarize(rows []dto.EventResponse) domain.Summary {
	leads := make([]*domain.Lead, 0, len(rows))
	for _, r := range rows {
		l, err := r.Lead()
		if err != nil {
			continue
		}
		leads = append(leads, l)
	}
	return domain.Summarize(leads)
}

func (s *Session) render(snap Snapshot) {
	if s.view != nil {
		s.view.Render(snap)
	}
}

func (s *Session) notify(err error) {
	if s.view != nil {
		s.view.Notify(err)
	}
}

// Refresh fetches the lead list and merges it into the session. A non-forced
// refresh is skipped while another fetch runs and its result is dropped when
// a mutation started after it began. Rows with edits still being saved show
// the fetched row with those edits applied on top.
func (s *Session) Refresh(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.fetching && !force {
		s.mu.Unlock()
		return nil
	}
	s.fetching = true
	startEpoch := s.epoch
	s.mu.Unlock()

	fresh, err := s.client.ListEvents(ctx, s.opts.Limit)

	s.mu.Lock()
	s.fetching = false
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("Dashboard refresh failed", zap.Error(err))
		return fmt.Errorf("refresh: %w", err)
	}
	if !force && startEpoch != s.epoch {
		s.mu.Unlock()
		s.log.Debug("Discarding stale refresh",
			zap.Uint64("started_at_epoch", startEpoch))
		return nil
	}

	if len(s.mutating) > 0 {
		merged := make([]dto.EventResponse, 0, len(fresh))
		for _, row := range fresh {
			if edits := s.pending[row.ID]; len(edits) > 0 {
				s.confirmed[row.ID] = row
				row = rebase(row, edits)
			} else if !force && s.mutating[row.ID] > 0 && s.indexLocked(row.ID) < 0 {
				// removed locally, delete still in flight
				continue
			}
			merged = append(merged, row)
		}
		fresh = merged
	}

	s.leads = fresh
	s.lastFetchAt = s.now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	return nil
}

// autoRefreshAllowed reports whether a scheduled refresh may run now.
func (s *Session) autoRefreshAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.hidden &&
		!s.interacting &&
		!s.fetching &&
		len(s.mutating) == 0 &&
		!s.now().Before(s.pausedUntil)
}

// Run loads the list and keeps it fresh until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Refresh(ctx, true); err != nil {
		s.notify(err)
	}

	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.autoRefreshAllowed() {
				continue
			}
			if err := s.Refresh(ctx, false); err != nil {
				s.log.Debug("Auto refresh failed", zap.Error(err))
			}
		}
	}
}

// Track makes sure the session holds lead id. A lead older than the loaded
// page is fetched on its own and appended.
func (s *Session) Track(ctx context.Context, id int64) error {
	s.mu.Lock()
	held := s.indexLocked(id) >= 0
	s.mu.Unlock()
	if held {
		return nil
	}

	row, err := s.client.GetEvent(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("lead %d: %w", id, ErrUnknownLead)
		}
		return fmt.Errorf("load lead %d: %w", id, err)
	}

	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.leads = append(s.leads, *row)
	}
	s.mu.Unlock()
	return nil
}

// SetOwner assigns or clears the owner of a lead.
func (s *Session) SetOwner(ctx context.Context, id int64, owner *string) error {
	return s.mutate(ctx, id, func(e *domain.Event, now time.Time) error {
		e.AssignOwner(owner, now)
		return nil
	}, func(ctx context.Context) (*dto.EventResponse, error) {
		return s.client.SetOwner(ctx, id, owner)
	})
}

// SetNextStep sets or clears the next step of a lead.
func (s *Session) SetNextStep(ctx context.Context, id int64, step *string) error {
	return s.mutate(ctx, id, func(e *domain.Event, now time.Time) error {
		parsed, err := domain.ParseNextStep(step)
		if err != nil {
			return err
		}
		e.SetNextStep(parsed, now)
		return nil
	}, func(ctx context.Context) (*dto.EventResponse, error) {
		return s.client.SetNextStep(ctx, id, step)
	})
}

// SetResult sets or clears the outcome of a lead.
func (s *Session) SetResult(ctx context.Context, id int64, result *string) error {
	return s.mutate(ctx, id, func(e *domain.Event, now time.Time) error {
		outcome, err := domain.ParseOutcome(result)
		if err != nil {
			return err
		}
		e.SetOutcome(outcome, now)
		return nil
	}, func(ctx context.Context) (*dto.EventResponse, error) {
		return s.client.SetResult(ctx, id, result)
	})
}

type localEdit func(e *domain.Event, now time.Time) error

type remoteCall func(ctx context.Context) (*dto.EventResponse, error)

// pendingEdit is an optimistic edit whose save has not returned yet.
type pendingEdit struct {
	edit localEdit
	at   time.Time
}

// mutate applies edit optimistically and sends call. When the call returns
// the row is rebuilt from the latest server copy plus the edits of the same
// lead that are still in flight, so a failure reverts only its own change.
func (s *Session) mutate(ctx context.Context, id int64, edit localEdit, call remoteCall) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrUnknownLead
	}
	pe := &pendingEdit{edit: edit, at: s.now().UTC()}
	optimistic, err := applyLocal(s.leads[idx], pe.edit, pe.at)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if len(s.pending[id]) == 0 {
		s.confirmed[id] = s.leads[idx]
	}
	s.pending[id] = append(s.pending[id], pe)
	s.leads[idx] = optimistic
	s.beginMutationLocked(id)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)

	saved, err := call(ctx)
	if err != nil {
		saved = nil
	}

	s.mu.Lock()
	s.endMutationLocked(id)
	s.settleEditLocked(id, pe, saved)
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	if err != nil {
		s.log.Warn("Lead update failed, restored previous value",
			zap.Int64("event_id", id),
			zap.Error(err))
		s.notify(err)
		return err
	}
	return nil
}

// settleEditLocked retires done. saved is the server's copy after a
// successful call and nil after a failure.
func (s *Session) settleEditLocked(id int64, done *pendingEdit, saved *dto.EventResponse) {
	remaining := make([]*pendingEdit, 0, len(s.pending[id]))
	for _, pe := range s.pending[id] {
		if pe != done {
			remaining = append(remaining, pe)
		}
	}

	base := s.confirmed[id]
	if saved != nil {
		base = *saved
	}
	if len(remaining) == 0 {
		delete(s.pending, id)
		delete(s.confirmed, id)
	} else {
		s.pending[id] = remaining
		s.confirmed[id] = base
	}

	if i := s.indexLocked(id); i >= 0 {
		s.leads[i] = rebase(base, remaining)
	}
}

// rebase replays edits over a server row in the order they were made.
func rebase(base dto.EventResponse, edits []*pendingEdit) dto.EventResponse {
	row := base
	for _, pe := range edits {
		if next, err := applyLocal(row, pe.edit, pe.at); err == nil {
			row = next
		}
	}
	return row
}

func applyLocal(row dto.EventResponse, edit localEdit, now time.Time) (dto.EventResponse, error) {
	lead, err := row.Lead()
	if err != nil {
		return row, err
	}
	if err := edit(&lead.Event, now); err != nil {
		return row, err
	}
	if lead.Touched() {
		lead.Overdue = false
		lead.OverdueMinutes = nil
	}
	return dto.NewEventResponse(lead), nil
}

// Delete removes a lead optimistically. An unresolved lead is only deleted
// after the confirmer agrees; otherwise the row comes back.
func (s *Session) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrUnknownLead
	}
	removed := s.leads[idx]
	s.leads = append(s.leads[:idx:idx], s.leads[idx+1:]...)
	s.beginMutationLocked(id)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)

	err := s.client.DeleteEvent(ctx, id, false)
	if _, unresolved := IsUnresolved(err); unresolved {
		if s.confirm != nil && s.confirm.ConfirmDelete(removed) {
			err = s.client.DeleteEvent(ctx, id, true)
		} else {
			err = ErrDeclined
		}
	}

	s.mu.Lock()
	s.endMutationLocked(id)
	if err != nil && s.indexLocked(id) < 0 {
		pos := idx
		if pos > len(s.leads) {
			pos = len(s.leads)
		}
		s.leads = append(s.leads[:pos], append([]dto.EventResponse{removed}, s.leads[pos:]...)...)
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	if err != nil {
		if !errors.Is(err, ErrDeclined) {
			s.log.Warn("Lead delete failed, restored row",
				zap.Int64("event_id", id),
				zap.Error(err))
			s.notify(err)
		}
		return err
	}
	return nil
}

// ClearAll deletes every lead. When unresolved leads exist the confirmer is
// shown their count before the confirmed retry.
func (s *Session) ClearAll(ctx context.Context) (int64, error) {
	removed, err := s.client.ClearAll(ctx, false)
	if count, unresolved := IsUnresolved(err); unresolved {
		if s.confirm == nil || !s.confirm.ConfirmClearAll(count) {
			return 0, ErrDeclined
		}
		removed, err = s.client.ClearAll(ctx, true)
	}
	if err != nil {
		s.notify(err)
		return 0, err
	}

	s.mu.Lock()
	s.epoch++
	s.leads = nil
	s.pending = make(map[int64][]*pendingEdit)
	s.confirmed = make(map[int64]dto.EventResponse)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.render(snap)
	return removed, nil
}

func (s *Session) beginMutationLocked(id int64) {
	s.epoch++
	s.mutating[id]++
	if until := s.now().Add(s.opts.MutationPause); until.After(s.pausedUntil) {
		s.pausedUntil = until
	}
}

func (s *Session) endMutationLocked(id int64) {
	if s.mutating[id] <= 1 {
		delete(s.mutating, id)
		return
	}
	s.mutating[id]--
}

func (s *Session) indexLocked(id int64) int {
	for i, l := range s.leads {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// UpdatedAgo describes how long ago the list was last fetched.
func UpdatedAgo(last, now time.Time) string {
	if last.IsZero() {
		return "never"
	}
	secs := int(now.Sub(last) / time.Second)
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 5:
		return "just now"
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%d min ago", secs/60)
	default:
		return fmt.Sprintf("%d hr ago", secs/3600)
	}
}

// OwnerLabel renders an owner for display.
func OwnerLabel(owner *string) string {
	if owner == nil || strings.TrimSpace(*owner) == "" {
		return "unassigned"
	}
	return *owner
}
