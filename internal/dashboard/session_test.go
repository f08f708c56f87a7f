package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/dto"
)

var baseTime = time.Date(2025, 5, 2, 13, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func row(id int64, source string) dto.EventResponse {
	return dto.EventResponse{
		ID:           id,
		CreatedAt:    baseTime,
		CallerNumber: "+15551234567",
		Source:       source,
		Status:       "missed",
		State:        "unhandled",
		StateLabel:   "Unhandled",
	}
}

// fakeClient serves canned data. ListEvents, the owner call and the result
// call can be held open with gates to interleave them with other operations.
// SetResult fails unless resultOK is set.
type fakeClient struct {
	mu         sync.Mutex
	events     []dto.EventResponse
	archive    map[int64]dto.EventResponse
	listGate   chan struct{}
	listCalls  int
	ownerGate  chan struct{}
	ownerErr   error
	resultGate chan struct{}
	resultOK   bool
	deleteErr  map[bool]error
	deletes    []bool
	clearErr   map[bool]error
	clears     []bool
	cleared    int64
}

func (f *fakeClient) snapshot() []dto.EventResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dto.EventResponse, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeClient) ListEvents(ctx context.Context, limit int) ([]dto.EventResponse, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	f.mu.Unlock()

	rows := f.snapshot()
	if gate != nil {
		<-gate
	}
	return rows, nil
}

func (f *fakeClient) SetOwner(ctx context.Context, id int64, owner *string) (*dto.EventResponse, error) {
	if f.ownerGate != nil {
		<-f.ownerGate
	}
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Owner = owner
			f.events[i].State = "in_progress"
			saved := f.events[i]
			return &saved, nil
		}
	}
	return nil, &APIError{StatusCode: http.StatusNotFound, Code: "not_found"}
}

func (f *fakeClient) GetEvent(ctx context.Context, id int64) (*dto.EventResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ID == id {
			return &e, nil
		}
	}
	if e, ok := f.archive[id]; ok {
		return &e, nil
	}
	return nil, &APIError{StatusCode: http.StatusNotFound, Code: "not_found"}
}

func (f *fakeClient) SetNextStep(ctx context.Context, id int64, step *string) (*dto.EventResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) SetResult(ctx context.Context, id int64, result *string) (*dto.EventResponse, error) {
	if f.resultGate != nil {
		<-f.resultGate
	}
	if !f.resultOK {
		return nil, &APIError{StatusCode: http.StatusInternalServerError, Code: "internal_error"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			at := baseTime.Add(2 * time.Minute)
			f.events[i].Outcome = result
			f.events[i].OutcomeSetAt = &at
			f.events[i].FirstActionAt = &at
			f.events[i].State = "closed"
			f.events[i].StateLabel = "Closed"
			saved := f.events[i]
			return &saved, nil
		}
	}
	return nil, &APIError{StatusCode: http.StatusNotFound, Code: "not_found"}
}

func (f *fakeClient) DeleteEvent(ctx context.Context, id int64, confirm bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, confirm)
	return f.deleteErr[confirm]
}

func (f *fakeClient) ClearAll(ctx context.Context, confirm bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears = append(f.clears, confirm)
	if err := f.clearErr[confirm]; err != nil {
		return 0, err
	}
	return f.cleared, nil
}

func (f *fakeClient) Summary(ctx context.Context) (*dto.SummaryResponse, error) {
	return &dto.SummaryResponse{}, nil
}

func (f *fakeClient) Config(ctx context.Context) (*dto.ConfigResponse, error) {
	return &dto.ConfigResponse{}, nil
}

type recordingView struct {
	mu       sync.Mutex
	renders  int
	last     Snapshot
	notified []error
}

func (v *recordingView) Render(s Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.renders++
	v.last = s
}

func (v *recordingView) Notify(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notified = append(v.notified, err)
}

type stubConfirmer struct {
	answer      bool
	askedDelete []int64
	askedCount  []int64
}

func (c *stubConfirmer) ConfirmDelete(lead dto.EventResponse) bool {
	c.askedDelete = append(c.askedDelete, lead.ID)
	return c.answer
}

func (c *stubConfirmer) ConfirmClearAll(unresolved int64) bool {
	c.askedCount = append(c.askedCount, unresolved)
	return c.answer
}

func newTestSession(client *fakeClient, confirm Confirmer, opts Options) (*Session, *recordingView) {
	view := &recordingView{}
	s := NewSession(client, view, confirm, opts, zap.NewNop())
	s.now = func() time.Time { return baseTime.Add(time.Minute) }
	return s, view
}

func leadByID(t *testing.T, snap Snapshot, id int64) dto.EventResponse {
	t.Helper()
	for _, l := range snap.Leads {
		if l.ID == id {
			return l
		}
	}
	t.Fatalf("lead %d not in snapshot", id)
	return dto.EventResponse{}
}

func TestSession_RefreshLoadsAndFiltersSimulator(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(2, "landing_form"), row(1, "simulator")}}
	s, view := newTestSession(client, nil, Options{HideSimulator: true})

	require.NoError(t, s.Refresh(context.Background(), false))

	snap := s.Snapshot()
	require.Len(t, snap.Leads, 1)
	assert.Equal(t, int64(2), snap.Leads[0].ID)
	assert.Equal(t, 1, snap.Summary.Unhandled)
	assert.Equal(t, baseTime.Add(time.Minute), snap.LastFetchAt)
	assert.Equal(t, 1, view.renders)
}

func TestSession_StaleRefreshCannotClobberOwnerEdit(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(1, "landing_call_click")}}
	s, _ := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	// a refresh starts and reads the server state before the edit lands
	client.listGate = make(chan struct{})
	refreshDone := make(chan error, 1)
	go func() { refreshDone <- s.Refresh(context.Background(), false) }()
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.listCalls == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SetOwner(context.Background(), 1, strPtr("Sam")))
	close(client.listGate)
	require.NoError(t, <-refreshDone)

	lead := leadByID(t, s.Snapshot(), 1)
	require.NotNil(t, lead.Owner)
	assert.Equal(t, "Sam", *lead.Owner)
	assert.Equal(t, "in_progress", lead.State)
}

func TestSession_RefreshKeepsLocalCopyOfRowBeingSaved(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(1, "landing_form"), row(2, "landing_form")}}
	s, view := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	client.ownerGate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.SetOwner(context.Background(), 1, strPtr("Cody")) }()
	require.Eventually(t, func() bool {
		view.mu.Lock()
		defer view.mu.Unlock()
		return view.renders == 2
	}, time.Second, 5*time.Millisecond)

	// a refresh that starts after the edit is not stale, but must keep the
	// optimistic row while the save is in flight
	require.NoError(t, s.Refresh(context.Background(), false))
	assert.Equal(t, "Cody", *leadByID(t, s.Snapshot(), 1).Owner)
	assert.False(t, s.autoRefreshAllowed())

	close(client.ownerGate)
	require.NoError(t, <-done)
	assert.Equal(t, "Cody", *leadByID(t, s.Snapshot(), 1).Owner)
}

func TestSession_FailedMutationRestoresPrevious(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(1, "landing_form")}}
	s, view := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	err := s.SetResult(context.Background(), 1, strPtr("booked"))

	require.Error(t, err)
	lead := leadByID(t, s.Snapshot(), 1)
	assert.Nil(t, lead.Outcome)
	assert.Equal(t, "unhandled", lead.State)
	require.Len(t, view.notified, 1)
	assert.Empty(t, s.mutating)
}

func TestSession_OptimisticUpdateIsRendered(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(1, "landing_form")}}
	s, view := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	client.ownerErr = errors.New("connection refused")
	client.ownerGate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.SetOwner(context.Background(), 1, strPtr("Alex")) }()

	require.Eventually(t, func() bool {
		view.mu.Lock()
		defer view.mu.Unlock()
		if view.renders < 2 {
			return false
		}
		l := view.last.Leads[0]
		return l.Owner != nil && *l.Owner == "Alex" && l.FirstActionAt != nil
	}, time.Second, 5*time.Millisecond)

	close(client.ownerGate)
	require.Error(t, <-done)
	assert.Nil(t, leadByID(t, s.Snapshot(), 1).Owner)
}

func TestSession_FailedEditKeepsOtherSavedField(t *testing.T) {
	client := &fakeClient{
		events:    []dto.EventResponse{row(1, "landing_form")},
		ownerGate: make(chan struct{}),
		ownerErr:  errors.New("connection reset"),
		resultOK:  true,
	}
	s, view := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	ownerDone := make(chan error, 1)
	go func() { ownerDone <- s.SetOwner(context.Background(), 1, strPtr("Sam")) }()
	require.Eventually(t, func() bool {
		view.mu.Lock()
		defer view.mu.Unlock()
		return view.renders == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SetResult(context.Background(), 1, strPtr("booked")))

	// server copy is closed, the owner edit is still pending on top of it
	lead := leadByID(t, s.Snapshot(), 1)
	require.NotNil(t, lead.Outcome)
	assert.Equal(t, "booked", *lead.Outcome)
	require.NotNil(t, lead.Owner)
	assert.Equal(t, "Sam", *lead.Owner)

	close(client.ownerGate)
	require.Error(t, <-ownerDone)

	lead = leadByID(t, s.Snapshot(), 1)
	assert.Nil(t, lead.Owner)
	require.NotNil(t, lead.Outcome)
	assert.Equal(t, "booked", *lead.Outcome)
	assert.Equal(t, "closed", lead.State)
	assert.Empty(t, s.pending)
	assert.Empty(t, s.confirmed)
}

func TestSession_SavedEditKeepsPendingEdit(t *testing.T) {
	client := &fakeClient{
		events:     []dto.EventResponse{row(1, "landing_form")},
		resultGate: make(chan struct{}),
	}
	s, view := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	resultDone := make(chan error, 1)
	go func() { resultDone <- s.SetResult(context.Background(), 1, strPtr("no_answer")) }()
	require.Eventually(t, func() bool {
		view.mu.Lock()
		defer view.mu.Unlock()
		return view.renders == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SetOwner(context.Background(), 1, strPtr("Alex")))

	// owner saved while the outcome is still optimistic
	lead := leadByID(t, s.Snapshot(), 1)
	assert.Equal(t, "Alex", *lead.Owner)
	require.NotNil(t, lead.Outcome)
	assert.Equal(t, "no_answer", *lead.Outcome)

	close(client.resultGate)
	require.Error(t, <-resultDone)

	lead = leadByID(t, s.Snapshot(), 1)
	assert.Equal(t, "Alex", *lead.Owner)
	assert.Nil(t, lead.Outcome)
	assert.Equal(t, "in_progress", lead.State)
}

func TestSession_TrackFetchesLeadOutsidePage(t *testing.T) {
	client := &fakeClient{
		events:  []dto.EventResponse{row(2, "landing_form")},
		archive: map[int64]dto.EventResponse{1: row(1, "landing_call_click")},
	}
	s, _ := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	require.NoError(t, s.Track(context.Background(), 2))
	require.NoError(t, s.Track(context.Background(), 1))
	assert.Len(t, s.Snapshot().Leads, 2)

	assert.Equal(t, "landing_call_click", leadByID(t, s.Snapshot(), 1).Source)

	assert.ErrorIs(t, s.Track(context.Background(), 99), ErrUnknownLead)
}

func TestSession_MutationRejectsUnknownLeadAndBadEnum(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(1, "landing_form")}}
	s, _ := newTestSession(client, nil, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	assert.ErrorIs(t, s.SetOwner(context.Background(), 42, strPtr("Sam")), ErrUnknownLead)
	assert.Error(t, s.SetNextStep(context.Background(), 1, strPtr("carrier_pigeon")))
	assert.Nil(t, leadByID(t, s.Snapshot(), 1).NextStep)
}

func TestSession_DeleteUnresolvedConfirmed(t *testing.T) {
	client := &fakeClient{
		events:    []dto.EventResponse{row(1, "landing_form"), row(2, "landing_form")},
		deleteErr: map[bool]error{false: &APIError{StatusCode: http.StatusConflict, Code: "unresolved", UnresolvedCount: 1}},
	}
	confirm := &stubConfirmer{answer: true}
	s, _ := newTestSession(client, confirm, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	require.NoError(t, s.Delete(context.Background(), 1))

	assert.Equal(t, []bool{false, true}, client.deletes)
	assert.Equal(t, []int64{1}, confirm.askedDelete)
	snap := s.Snapshot()
	require.Len(t, snap.Leads, 1)
	assert.Equal(t, int64(2), snap.Leads[0].ID)
}

func TestSession_DeleteDeclinedRestoresRow(t *testing.T) {
	client := &fakeClient{
		events:    []dto.EventResponse{row(3, "landing_form"), row(2, "landing_form"), row(1, "landing_form")},
		deleteErr: map[bool]error{false: &APIError{StatusCode: http.StatusConflict, Code: "unresolved", UnresolvedCount: 1}},
	}
	s, view := newTestSession(client, &stubConfirmer{answer: false}, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	err := s.Delete(context.Background(), 2)

	assert.ErrorIs(t, err, ErrDeclined)
	assert.Equal(t, []bool{false}, client.deletes)
	snap := s.Snapshot()
	require.Len(t, snap.Leads, 3)
	assert.Equal(t, int64(2), snap.Leads[1].ID)
	assert.Empty(t, view.notified)
}

func TestSession_DeleteFailureRestoresAndNotifies(t *testing.T) {
	client := &fakeClient{
		events:    []dto.EventResponse{row(1, "landing_form")},
		deleteErr: map[bool]error{false: &APIError{StatusCode: http.StatusInternalServerError, Code: "internal_error"}},
	}
	s, view := newTestSession(client, &stubConfirmer{answer: true}, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	require.Error(t, s.Delete(context.Background(), 1))

	assert.Len(t, s.Snapshot().Leads, 1)
	assert.Len(t, view.notified, 1)
}

func TestSession_ClearAllSurfacesUnresolvedCount(t *testing.T) {
	client := &fakeClient{
		events:   []dto.EventResponse{row(1, "landing_form"), row(2, "landing_form")},
		clearErr: map[bool]error{false: &APIError{StatusCode: http.StatusConflict, Code: "unresolved", UnresolvedCount: 2}},
		cleared:  2,
	}
	confirm := &stubConfirmer{answer: true}
	s, _ := newTestSession(client, confirm, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	removed, err := s.ClearAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, []int64{2}, confirm.askedCount)
	assert.Equal(t, []bool{false, true}, client.clears)
	assert.Empty(t, s.Snapshot().Leads)
}

func TestSession_ClearAllDeclined(t *testing.T) {
	client := &fakeClient{
		events:   []dto.EventResponse{row(1, "landing_form")},
		clearErr: map[bool]error{false: &APIError{StatusCode: http.StatusConflict, Code: "unresolved", UnresolvedCount: 1}},
	}
	s, _ := newTestSession(client, &stubConfirmer{answer: false}, Options{})
	require.NoError(t, s.Refresh(context.Background(), true))

	_, err := s.ClearAll(context.Background())

	assert.ErrorIs(t, err, ErrDeclined)
	assert.Len(t, s.Snapshot().Leads, 1)
}

func TestSession_AutoRefreshGating(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(1, "landing_form")}}
	s, _ := newTestSession(client, nil, Options{MutationPause: 3 * time.Second})
	now := baseTime
	s.now = func() time.Time { return now }

	assert.True(t, s.autoRefreshAllowed())

	s.SetHidden(true)
	assert.False(t, s.autoRefreshAllowed())
	s.SetHidden(false)

	s.SetInteracting(true)
	assert.False(t, s.autoRefreshAllowed())
	s.SetInteracting(false)

	require.NoError(t, s.Refresh(context.Background(), true))
	require.NoError(t, s.SetOwner(context.Background(), 1, strPtr("Sam")))
	assert.False(t, s.autoRefreshAllowed())

	now = now.Add(3 * time.Second)
	assert.True(t, s.autoRefreshAllowed())
}

func TestSession_RunRefreshesUntilCancelled(t *testing.T) {
	client := &fakeClient{events: []dto.EventResponse{row(1, "landing_form")}}
	s, _ := newTestSession(client, nil, Options{RefreshInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.listCalls >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestUpdatedAgo(t *testing.T) {
	assert.Equal(t, "never", UpdatedAgo(time.Time{}, baseTime))
	assert.Equal(t, "just now", UpdatedAgo(baseTime, baseTime.Add(4*time.Second)))
	assert.Equal(t, "42s ago", UpdatedAgo(baseTime, baseTime.Add(42*time.Second)))
	assert.Equal(t, "5 min ago", UpdatedAgo(baseTime, baseTime.Add(5*time.Minute+10*time.Second)))
	assert.Equal(t, "2 hr ago", UpdatedAgo(baseTime, baseTime.Add(150*time.Minute)))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&dto.ConfigResponse{RefreshIntervalSec: 10, MutationPauseMs: 3000, HideSimulator: true})

	assert.Equal(t, 10*time.Second, opts.RefreshInterval)
	assert.Equal(t, 3*time.Second, opts.MutationPause)
	assert.True(t, opts.HideSimulator)
}
