package review

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/showcase/core"
	"github.com/trezcool/showcase/core/project"
)

const maxConcurrentDecisions = 4

var (
	ErrNotPending  = errors.New("project is not in the pending queue")
	ErrQueueClosed = errors.New("review queue closed")
)

// Decision is a moderation outcome for one pending project.
type Decision struct {
	ProjectID string         `json:"project_id" validate:"notblank"`
	Outcome   project.Status `json:"status" validate:"oneof=approved rejected"`
	Comment   string         `json:"comment" validate:"required_if=Outcome rejected"`
}

// Validate checks d before it is dispatched: a rejection needs a reason.
func (d *Decision) Validate() error {
	d.Comment = core.CleanString(d.Comment)
	return core.TranslateValidationErrors(core.Validate.Struct(d))
}

// Backend is the moderation side of the showcase API.
type Backend interface {
	PendingProjects(ctx context.Context) ([]project.ReviewableProject, error)
	ReviewProject(ctx context.Context, d Decision) error
}

// ReviewActionError reports a decision the backend did not confirm.
// The queue is left untouched.
type ReviewActionError struct {
	Decision Decision
	Err      error
}

func (e *ReviewActionError) Error() string {
	return string(e.Decision.Outcome) + " " + e.Decision.ProjectID + ": " + e.Err.Error()
}

func (e *ReviewActionError) Cause() error { return e.Err }

// Queue is the moderator's view of the projects awaiting a decision.
//
// Decisions on different projects are independent. Decisions on the same
// project are not serialized: the last one the server receives wins.
type Queue struct {
	backend  Backend
	notifier Notifier // optional
	logger   core.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	items  []project.ReviewableProject
	closed bool
}

// NewQueue returns an empty queue. notifier may be nil.
func NewQueue(backend Backend, notifier Notifier, logger core.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// bind returns a context that is also cancelled when the queue closes.
func (q *Queue) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(q.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Load replaces the queue with the projects currently pending on the server.
func (q *Queue) Load(ctx context.Context) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	ctx, cancel := q.bind(ctx)
	defer cancel()

	projects, err := q.backend.PendingProjects(ctx)
	if err != nil {
		return errors.Wrap(err, "loading pending projects")
	}
	pending := make([]project.ReviewableProject, 0, len(projects))
	for _, p := range projects {
		if !p.Status.IsFinal() {
			pending = append(pending, p)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = pending
	return nil
}

// Items returns the pending projects, in server order.
func (q *Queue) Items() []project.ReviewableProject {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]project.ReviewableProject, len(q.items))
	copy(out, q.items)
	return out
}

// Filter returns the visible subset of the queue. The queue itself is never changed.
func (q *Queue) Filter(filter QueryFilter) []project.ReviewableProject {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return filter.Apply(q.items)
}

// Get returns the pending project with the given ID.
func (q *Queue) Get(id string) (project.ReviewableProject, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i := q.indexLocked(id)
	if i < 0 {
		return project.ReviewableProject{}, false
	}
	return q.items[i], true
}

func (q *Queue) Approve(ctx context.Context, id, comment string) error {
	return q.Decide(ctx, Decision{ProjectID: id, Outcome: project.StatusApproved, Comment: comment})
}

// Reject turns down a project. The reason is mandatory.
func (q *Queue) Reject(ctx context.Context, id, reason string) error {
	return q.Decide(ctx, Decision{ProjectID: id, Outcome: project.StatusRejected, Comment: reason})
}

// Decide sends d in one call and, once the server confirmed it, evicts the
// project from the queue. Invalid decisions never reach the server.
func (q *Queue) Decide(ctx context.Context, d Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	p, ok := q.Get(d.ProjectID)
	if !ok {
		if q.isClosed() {
			return ErrQueueClosed
		}
		return errors.Wrap(ErrNotPending, d.ProjectID)
	}

	ctx, cancel := q.bind(ctx)
	defer cancel()
	if err := q.backend.ReviewProject(ctx, d); err != nil {
		q.logger.Error("review action failed", err, map[string]interface{}{"project_id": d.ProjectID, "outcome": d.Outcome})
		return &ReviewActionError{Decision: d, Err: err}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil // decided, but the view is gone
	}
	if i := q.indexLocked(d.ProjectID); i >= 0 {
		q.items = append(q.items[:i:i], q.items[i+1:]...)
	}
	q.mu.Unlock()

	q.logger.Info("project "+string(d.Outcome), map[string]interface{}{"project_id": d.ProjectID})
	if q.notifier != nil {
		q.notifier.Notify(p, d)
	}
	return nil
}

// DecideAll sends decisions on distinct projects concurrently.
// It returns the first failure, after every decision settled.
func (q *Queue) DecideAll(ctx context.Context, decisions ...Decision) error {
	seen := make(map[string]bool, len(decisions))
	var flds []core.FieldError
	for i := range decisions {
		if err := decisions[i].Validate(); err != nil {
			return err
		}
		id := decisions[i].ProjectID
		if seen[id] {
			flds = append(flds, core.FieldError{Field: id, Error: "decided more than once"})
		}
		seen[id] = true
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentDecisions)
	for _, d := range decisions {
		d := d
		g.Go(func() error { return q.Decide(ctx, d) })
	}
	return g.Wait()
}

// Close cancels every request in flight; their outcomes no longer touch the queue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
	q.cancel()
}

func (q *Queue) isClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *Queue) indexLocked(id string) int {
	for i, p := range q.items {
		if p.ID == id {
			return i
		}
	}
	return -1
}
