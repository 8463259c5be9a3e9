package contributor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/showcase/core"
)

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// fire runs the scheduled func unless the timer was stopped.
func (t *fakeTimer) fire() bool {
	t.mu.Lock()
	stopped := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if stopped {
		return false
	}
	t.f()
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

type fakeSearcher struct {
	mu    sync.Mutex
	calls []string
	users map[string][]User
	gates map[string]chan struct{} // block the search for a keyword until closed
	err   error
}

func (s *fakeSearcher) SearchUsers(ctx context.Context, keyword string) ([]User, error) {
	s.mu.Lock()
	s.calls = append(s.calls, keyword)
	gate := s.gates[keyword]
	users, err := s.users[keyword], s.err
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return users, err
}

func (s *fakeSearcher) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

var (
	alice = User{ID: "u1", FullName: "Alice Mwamba", Avatar: "a.png"}
	alan  = User{ID: "u2", FullName: "Alan Kasongo"}
)

func setup(t *testing.T, searcher *fakeSearcher) (*Directory, *fakeClock, *core.MemLogger) {
	clock := &fakeClock{}
	old := AfterFunc
	AfterFunc = clock.afterFunc
	t.Cleanup(func() { AfterFunc = old })

	logger := core.NewMemLogger()
	d := NewDirectory(searcher, 300*time.Millisecond, logger)
	t.Cleanup(d.Close)
	return d, clock, logger
}

func wait(t *testing.T, q *Query) ([]User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	users, err := q.Wait(ctx)
	require.NotEqual(t, context.DeadlineExceeded, err, "query %q never resolved", q.Keyword)
	return users, err
}

func TestDirectory_Search(t *testing.T) {
	t.Run("debounces keystrokes into one call", func(t *testing.T) {
		searcher := &fakeSearcher{users: map[string][]User{"ali": {alice}}}
		d, clock, _ := setup(t, searcher)

		q1 := d.Search("a")
		q2 := d.Search("al")
		q3 := d.Search("ali")

		_, err := wait(t, q1)
		assert.Equal(t, ErrSuperseded, err)
		_, err = wait(t, q2)
		assert.Equal(t, ErrSuperseded, err)

		require.Equal(t, 3, clock.count())
		assert.False(t, clock.timer(0).fire(), "superseded timer must be stopped")
		assert.False(t, clock.timer(1).fire())
		assert.True(t, clock.timer(2).fire())

		users, err := wait(t, q3)
		require.NoError(t, err)
		assert.Equal(t, []User{alice}, users)
		assert.Equal(t, []string{"ali"}, searcher.Calls())
		assert.Equal(t, []User{alice}, d.Candidates())
	})

	t.Run("drops stale completions", func(t *testing.T) {
		gate := make(chan struct{})
		searcher := &fakeSearcher{
			users: map[string][]User{"al": {alice, alan}, "alan": {alan}},
			gates: map[string]chan struct{}{"al": gate},
		}
		d, clock, _ := setup(t, searcher)

		q1 := d.Search("al")
		go clock.timer(0).fire() // "al" is in flight and blocked

		require.Eventually(t, func() bool { return len(searcher.Calls()) == 1 }, time.Second, time.Millisecond)

		q2 := d.Search("alan")
		clock.timer(1).fire()
		_, err := wait(t, q2)
		require.NoError(t, err)

		close(gate) // "al" completes last
		_, err = wait(t, q1)
		assert.Equal(t, ErrSuperseded, err)
		assert.Equal(t, []User{alan}, d.Candidates())
	})

	t.Run("empty keyword clears without a call", func(t *testing.T) {
		searcher := &fakeSearcher{users: map[string][]User{"ali": {alice}}}
		d, clock, _ := setup(t, searcher)

		d.Search("ali")
		clock.timer(0).fire()
		require.Len(t, d.Candidates(), 1)

		q := d.Search("   ")
		users, err := wait(t, q)
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.Empty(t, d.Candidates())
		assert.Equal(t, 1, clock.count())
		assert.Equal(t, []string{"ali"}, searcher.Calls())
	})

	t.Run("failure clears candidates and warns", func(t *testing.T) {
		searcher := &fakeSearcher{users: map[string][]User{"ali": {alice}}}
		d, clock, logger := setup(t, searcher)

		d.Search("ali")
		clock.timer(0).fire()
		require.Len(t, d.Candidates(), 1)

		searcher.err = errors.New("connection refused")
		q := d.Search("alan")
		clock.timer(1).fire()

		_, err := wait(t, q)
		var sErr *SearchError
		require.True(t, errors.As(err, &sErr))
		assert.Equal(t, "alan", sErr.Keyword)
		assert.Empty(t, d.Candidates())
		assert.NotEmpty(t, d.Warning())
		assert.Len(t, logger.Entries("warn"), 1)

		// the next successful search clears the warning
		searcher.err = nil
		d.Search("ali")
		clock.timer(2).fire()
		assert.Empty(t, d.Warning())
	})

	t.Run("cancel", func(t *testing.T) {
		gate := make(chan struct{})
		searcher := &fakeSearcher{
			users: map[string][]User{"ali": {alice}, "alan": {alan}},
			gates: map[string]chan struct{}{"alan": gate},
		}
		d, clock, _ := setup(t, searcher)

		d.Search("ali")
		clock.timer(0).fire()
		require.Equal(t, []User{alice}, d.Candidates())

		// before the debounce window elapsed
		q := d.Search("al")
		q.Cancel()
		_, err := wait(t, q)
		assert.Equal(t, ErrCanceled, err)
		assert.False(t, clock.timer(1).fire(), "canceled timer must be stopped")

		// while in flight
		q = d.Search("alan")
		go clock.timer(2).fire()
		require.Eventually(t, func() bool { return len(searcher.Calls()) == 2 }, time.Second, time.Millisecond)
		q.Cancel()
		_, err = wait(t, q)
		assert.Equal(t, ErrCanceled, err)
		close(gate)

		assert.Equal(t, []User{alice}, d.Candidates(), "a canceled search leaves the candidates alone")

		// once resolved, nothing to cancel
		q = d.Search("ali")
		clock.timer(3).fire()
		q.Cancel()
		users, err := wait(t, q)
		require.NoError(t, err)
		assert.Equal(t, []User{alice}, users)
	})

	t.Run("closed directory", func(t *testing.T) {
		searcher := &fakeSearcher{}
		d, clock, _ := setup(t, searcher)

		q1 := d.Search("ali")
		d.Close()
		_, err := wait(t, q1)
		assert.Equal(t, ErrSuperseded, err)
		assert.False(t, clock.timer(0).fire())

		_, err = wait(t, d.Search("alan"))
		assert.Equal(t, ErrClosed, err)
		assert.Empty(t, searcher.Calls())
	})
}

func TestDirectory_Select(t *testing.T) {
	d, _, _ := setup(t, &fakeSearcher{})

	assert.True(t, d.Select(alice))
	assert.True(t, d.Select(alan))
	assert.False(t, d.Select(alice), "selecting twice is a no-op")

	assert.Equal(t, []Ref{
		{UserID: "u1", FullName: "Alice Mwamba", AvatarRef: "a.png"},
		{UserID: "u2", FullName: "Alan Kasongo"},
	}, d.Selected())

	assert.True(t, d.Remove("u1"))
	assert.False(t, d.Remove("u1"))
	assert.Equal(t, []Ref{{UserID: "u2", FullName: "Alan Kasongo"}}, d.Selected())
}
