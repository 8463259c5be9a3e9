package contributor

import (
	"context"
	"sync"
)

// Query is one scheduled user search.
type Query struct {
	Keyword string

	dir    *Directory
	seq    uint64
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
	users  []User
	err    error
}

func newQuery(dir *Directory, seq uint64, keyword string) *Query {
	return &Query{
		Keyword: keyword,
		dir:     dir,
		seq:     seq,
		cancel:  func() {},
		done:    make(chan struct{}),
	}
}

func (q *Query) finish(users []User, err error) {
	q.once.Do(func() {
		q.users, q.err = users, err
		close(q.done)
	})
}

// Cancel stops the query if it has not resolved yet; it then resolves with
// ErrCanceled and never touches the candidates.
func (q *Query) Cancel() { q.dir.cancelQuery(q) }

// Done is closed once the query is applied, superseded or failed.
func (q *Query) Done() <-chan struct{} { return q.done }

// Wait blocks until the query resolves or ctx is done.
// A superseded query resolves with ErrSuperseded.
func (q *Query) Wait(ctx context.Context) ([]User, error) {
	select {
	case <-q.done:
		return q.users, q.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
