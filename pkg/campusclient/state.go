package campusclient

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrBusy is returned when an action on the same certificate is still running.
var ErrBusy = errors.New("campusclient: action already in progress")

// Selection is the set of certificates chosen for a batch, in the order
// they were selected.
type Selection struct {
	mu    sync.Mutex
	order []uuid.UUID
	set   map[uuid.UUID]struct{}
}

// NewSelection returns an empty Selection.
func NewSelection() *Selection {
	return &Selection{set: map[uuid.UUID]struct{}{}}
}

// Toggle adds id when absent and removes it otherwise. It reports whether
// id is selected afterwards.
func (s *Selection) Toggle(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[id]; ok {
		s.removeLocked(id)
		return false
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

// Has reports whether id is selected.
func (s *Selection) Has(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[id]
	return ok
}

// IDs returns a copy of the selected ids.
func (s *Selection) IDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID(nil), s.order...)
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Remove drops ids from the selection.
func (s *Selection) Remove(ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.removeLocked(id)
	}
}

// Retain keeps only ids that are present in keep.
func (s *Selection) Retain(keep map[uuid.UUID]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range append([]uuid.UUID(nil), s.order...) {
		if !keep[id] {
			s.removeLocked(id)
		}
	}
}

func (s *Selection) removeLocked(id uuid.UUID) {
	if _, ok := s.set[id]; !ok {
		return
	}
	delete(s.set, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// BusySet tracks certificates with an action in flight.
type BusySet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

// NewBusySet returns an empty BusySet.
func NewBusySet() *BusySet {
	return &BusySet{ids: map[uuid.UUID]struct{}{}}
}

// Acquire marks every id busy, or none of them if any is already busy.
func (b *BusySet) Acquire(ids ...uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if _, ok := b.ids[id]; ok {
			return false
		}
	}
	for _, id := range ids {
		b.ids[id] = struct{}{}
	}
	return true
}

// Release clears the busy flag for ids.
func (b *BusySet) Release(ids ...uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		delete(b.ids, id)
	}
}

// Busy reports whether id has an action in flight.
func (b *BusySet) Busy(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.ids[id]
	return ok
}

// PendingView holds the reviewer's pending list. Rows acted on are hidden
// immediately and restored if the action fails. When fetches overlap, the
// most recently started one wins and older responses are dropped.
type PendingView struct {
	mu      sync.Mutex
	items   []Certificate
	hidden  map[uuid.UUID]struct{}
	issued  uint64
	applied uint64
}

// NewPendingView returns an empty view.
func NewPendingView() *PendingView {
	return &PendingView{hidden: map[uuid.UUID]struct{}{}}
}

// Items returns the visible certificates.
func (v *PendingView) Items() []Certificate {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Certificate, 0, len(v.items))
	for _, c := range v.items {
		if _, ok := v.hidden[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Hide removes ids from the visible list.
func (v *PendingView) Hide(ids ...uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		v.hidden[id] = struct{}{}
	}
}

// Restore makes previously hidden ids visible again.
func (v *PendingView) Restore(ids ...uuid.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		delete(v.hidden, id)
	}
}

// Begin starts a fetch and returns its sequence number.
func (v *PendingView) Begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.issued++
	return v.issued
}

// Apply installs the items of fetch seq. It returns false and changes
// nothing when a later fetch has already been started or applied.
func (v *PendingView) Apply(seq uint64, items []Certificate) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.issued || seq <= v.applied {
		return false
	}
	v.applied = seq
	v.items = append([]Certificate(nil), items...)
	present := make(map[uuid.UUID]bool, len(items))
	for _, c := range items {
		present[c.ID] = true
	}
	// ids the server no longer lists are settled
	for id := range v.hidden {
		if !present[id] {
			delete(v.hidden, id)
		}
	}
	return true
}

// Desk combines the client with the reviewer's local state.
type Desk struct {
	client    *Client
	Selection *Selection
	Busy      *BusySet
	View      *PendingView
}

// NewDesk builds a Desk around client.
func NewDesk(client *Client) *Desk {
	return &Desk{client: client, Selection: NewSelection(), Busy: NewBusySet(), View: NewPendingView()}
}

// Refresh fetches the first page of pending certificates. A response that
// arrives after a newer Refresh started is discarded.
func (d *Desk) Refresh(ctx context.Context, perPage int) ([]Certificate, error) {
	seq := d.View.Begin()
	page, err := d.client.ListPending(ctx, 1, perPage)
	if err != nil {
		return d.View.Items(), err
	}
	if d.View.Apply(seq, page.Items) {
		visible := make(map[uuid.UUID]bool, len(page.Items))
		for _, c := range page.Items {
			visible[c.ID] = true
		}
		d.Selection.Retain(visible)
	}
	return d.View.Items(), nil
}

// Approve approves one certificate. A second call for the same id while
// the first is running returns ErrBusy.
func (d *Desk) Approve(ctx context.Context, id uuid.UUID, notes string) (ReviewResult, error) {
	return d.single(ctx, id, func() (ReviewResult, error) { return d.client.Approve(ctx, id, notes) })
}

// Reject rejects one certificate.
func (d *Desk) Reject(ctx context.Context, id uuid.UUID, notes string) (ReviewResult, error) {
	return d.single(ctx, id, func() (ReviewResult, error) { return d.client.Reject(ctx, id, notes) })
}

func (d *Desk) single(ctx context.Context, id uuid.UUID, call func() (ReviewResult, error)) (ReviewResult, error) {
	if !d.Busy.Acquire(id) {
		return ReviewResult{}, ErrBusy
	}
	defer d.Busy.Release(id)
	d.View.Hide(id)
	res, err := call()
	switch {
	case err == nil, errors.Is(err, ErrIssuanceFailed):
		// the certificate left pending either way
		d.Selection.Remove(id)
	default:
		d.View.Restore(id)
	}
	return res, err
}

// SubmitSelection applies action to every selected id in one batch call.
// Succeeded ids leave the selection once the call returns; if the call
// itself fails the selection is left untouched.
func (d *Desk) SubmitSelection(ctx context.Context, action Action, notes, idempotencyKey string) (BatchResult, error) {
	ids := d.Selection.IDs()
	if len(ids) == 0 {
		return BatchResult{}, nil
	}
	if !d.Busy.Acquire(ids...) {
		return BatchResult{}, ErrBusy
	}
	defer d.Busy.Release(ids...)
	d.View.Hide(ids...)

	res, err := d.client.Batch(ctx, ids, action, notes, idempotencyKey)
	if err != nil {
		d.View.Restore(ids...)
		return BatchResult{}, err
	}
	succeeded := res.Succeeded()
	d.Selection.Remove(succeeded...)
	done := make(map[uuid.UUID]bool, len(succeeded))
	for _, id := range succeeded {
		done[id] = true
	}
	var failed []uuid.UUID
	for _, id := range ids {
		if !done[id] {
			failed = append(failed, id)
		}
	}
	d.View.Restore(failed...)
	return res, nil
}
