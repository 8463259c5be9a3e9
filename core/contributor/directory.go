package contributor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/showcase/core"
)

var (
	ErrSuperseded = errors.New("search superseded by a newer keyword")
	ErrClosed     = errors.New("directory closed")
	ErrCanceled   = errors.New("search canceled")

	// AfterFunc schedules debounced searches. mockable
	AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
)

// Timer is the part of *time.Timer the directory needs.
type Timer interface {
	Stop() bool
}

// User is a candidate returned by the user search.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`
	Email    string `json:"email,omitempty"`
}

// Ref is a contributor attached to a project draft.
type Ref struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	AvatarRef string `json:"avatar"`
}

// Searcher looks users up by keyword.
type Searcher interface {
	SearchUsers(ctx context.Context, keyword string) ([]User, error)
}

// SearchError is returned when the user search failed. It is never fatal:
// the candidates are simply cleared.
type SearchError struct {
	Keyword string
	Err     error
}

func (e *SearchError) Error() string {
	return "searching users for " + `"` + e.Keyword + `": ` + e.Err.Error()
}

func (e *SearchError) Cause() error { return e.Err }

// Directory turns keystrokes into user candidates and keeps the ordered,
// deduplicated list of selected contributors.
//
// Searches are debounced and the latest keyword always wins: completions of
// older searches are dropped, whatever order they arrive in.
type Directory struct {
	searcher Searcher
	debounce time.Duration
	logger   core.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	seq        uint64
	pending    *Query
	timer      Timer
	candidates []User
	warning    string
	selected   []Ref
	closed     bool
}

func NewDirectory(searcher Searcher, debounce time.Duration, logger core.Logger) *Directory {
	ctx, cancel := context.WithCancel(context.Background())
	return &Directory{
		searcher: searcher,
		debounce: debounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Search schedules a lookup for keyword once the debounce window elapses,
// superseding any search still pending or in flight.
// An empty keyword clears the candidates without any network call.
func (d *Directory) Search(keyword string) *Query {
	keyword = core.CleanString(keyword)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	q := newQuery(d, d.seq, keyword)
	d.supersedeLocked()

	if d.closed {
		q.finish(nil, ErrClosed)
		return q
	}
	if keyword == "" {
		d.candidates = nil
		d.warning = ""
		q.finish(nil, nil)
		return q
	}

	ctx, cancel := context.WithCancel(d.ctx)
	q.cancel = cancel
	d.pending = q
	d.timer = AfterFunc(d.debounce, func() { d.run(ctx, q) })
	return q
}

// supersedeLocked cancels the pending search, if any.
func (d *Directory) supersedeLocked() {
	if d.pending == nil {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending.cancel()
	d.pending.finish(nil, ErrSuperseded)
	d.pending = nil
}

func (d *Directory) run(ctx context.Context, q *Query) {
	if ctx.Err() != nil {
		return // superseded before the timer fired
	}
	users, err := d.searcher.SearchUsers(ctx, q.Keyword)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || q.seq != d.seq || d.pending != q {
		q.finish(nil, ErrSuperseded) // stale: never applied
		return
	}
	d.pending = nil
	d.timer = nil
	q.cancel()

	if err != nil {
		sErr := &SearchError{Keyword: q.Keyword, Err: err}
		d.logger.Warn("contributor search failed", sErr)
		d.candidates = nil
		d.warning = "Could not search users right now. Please try again."
		q.finish(nil, sErr)
		return
	}
	d.candidates = users
	d.warning = ""
	q.finish(users, nil)
}

// Candidates returns the users found by the latest applied search.
func (d *Directory) Candidates() []User {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]User, len(d.candidates))
	copy(out, d.candidates)
	return out
}

// Warning returns the message left by the last failed search, if any.
func (d *Directory) Warning() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warning
}

// Select attaches usr. Selecting an already attached user is a no-op.
// It reports whether usr was added.
func (d *Directory) Select(usr User) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ref := range d.selected {
		if ref.UserID == usr.ID {
			return false
		}
	}
	d.selected = append(d.selected, Ref{UserID: usr.ID, FullName: usr.FullName, AvatarRef: usr.Avatar})
	return true
}

// Remove detaches the user with the given ID. It reports whether one was removed.
func (d *Directory) Remove(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, ref := range d.selected {
		if ref.UserID == userID {
			d.selected = append(d.selected[:i], d.selected[i+1:]...)
			return true
		}
	}
	return false
}

// Selected returns the attached contributors in selection order.
func (d *Directory) Selected() []Ref {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Ref, len(d.selected))
	copy(out, d.selected)
	return out
}

// cancelQuery drops q if it is still the pending search. Candidates are kept.
func (d *Directory) cancelQuery(q *Query) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != q {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	q.cancel()
	q.finish(nil, ErrCanceled)
	d.pending = nil
}

// Close cancels any search in flight; its result will never be applied.
func (d *Directory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.supersedeLocked()
	d.closed = true
	d.cancel()
}
