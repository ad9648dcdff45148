package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tubewatch/internal/eventbus"
	"tubewatch/internal/feed"
	"tubewatch/internal/storage"
	logx "tubewatch/pkg/logx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProber returns queued results per channel id; an exhausted queue
// repeats the last result.
type scriptedProber struct {
	mu      sync.Mutex
	results map[string][]feed.ProbeResult
	panicOn string
	calls   []string
}

func (p *scriptedProber) Probe(_ context.Context, id string) feed.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, id)
	if id == p.panicOn {
		panic("probe exploded")
	}
	q := p.results[id]
	if len(q) == 0 {
		return feed.NoItem()
	}
	r := q[0]
	if len(q) > 1 {
		p.results[id] = q[1:]
	}
	return r
}

type sent struct {
	channel string
	item    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	ok   bool
	sent []sent
}

func (n *fakeNotifier) Notify(_ context.Context, ch feed.Channel, it feed.Item) feed.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{ch.Name, it.ID})
	if !n.ok {
		return feed.Delivery{Status: 500, Err: errors.New("status 500")}
	}
	return feed.Delivery{OK: true, Status: 204}
}

type memStore struct {
	mu    sync.Mutex
	fail  int // number of upcoming saves to fail
	saved []feed.LastSeen
}

func (s *memStore) Save(_ context.Context, st feed.LastSeen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("disk full")
	}
	s.saved = append(s.saved, st.Clone())
	return nil
}

func (s *memStore) last() feed.LastSeen {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

var (
	chA = feed.Channel{Name: "A", ChannelID: "UCA", WebhookURL: "https://hook/a"}
	chB = feed.Channel{Name: "B", ChannelID: "UCB", WebhookURL: "https://hook/b"}
)

func item(id string) feed.ProbeResult { return feed.Found(feed.Item{ID: id, Title: "t-" + id}) }

func newWatcher(t *testing.T, p *scriptedProber, n *fakeNotifier, st Saver, initial feed.LastSeen) *Watcher {
	t.Helper()
	w, err := New(Config{
		Channels: []feed.Channel{chA, chB},
		Prober:   p,
		Notifier: n,
		Store:    st,
	}, initial, logx.Nop(), nil)
	require.NoError(t, err)
	return w
}

func TestExampleScenario(t *testing.T) {
	t.Parallel()
	p := &scriptedProber{results: map[string][]feed.ProbeResult{
		"UCA": {item("v9")},
		"UCB": {item("v1")},
	}}
	n := &fakeNotifier{ok: true}
	st := &memStore{}
	w := newWatcher(t, p, n, st, feed.LastSeen{"A": "", "B": "v1"})

	rep, err := w.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []sent{{"A", "v9"}}, n.sent)
	assert.Equal(t, feed.LastSeen{"A": "v9", "B": "v1"}, st.last())
	assert.Equal(t, 1, rep.Sent)
	assert.True(t, rep.Saved)
	assert.NotEmpty(t, rep.ID)
	require.Len(t, rep.Channels, 2)
	assert.True(t, rep.Channels[0].New)
	assert.False(t, rep.Channels[1].New)

	// Same ids again: nothing more is sent.
	_, err = w.RunPass(context.Background())
	require.NoError(t, err)
	assert.Len(t, n.sent, 1)
	assert.Equal(t, []string{"UCA", "UCB", "UCA", "UCB"}, p.calls)
}

func TestNoDuplicateNotificationAcrossRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "last_videos.json")}, logx.Nop())
	require.NoError(t, err)
	defer store.Close()

	results := func() *scriptedProber {
		return &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("x")}, "UCB": {feed.NoItem()}}}
	}

	n1 := &fakeNotifier{ok: true}
	initial, err := store.Load(ctx, []feed.Channel{chA, chB})
	require.NoError(t, err)
	w1 := newWatcher(t, results(), n1, store, initial)
	_, err = w1.RunPass(ctx)
	require.NoError(t, err)
	assert.Len(t, n1.sent, 1)

	// Restart: fresh watcher from persisted state.
	n2 := &fakeNotifier{ok: true}
	initial, err = store.Load(ctx, []feed.Channel{chA, chB})
	require.NoError(t, err)
	assert.Equal(t, feed.LastSeen{"A": "x", "B": ""}, initial)
	w2 := newWatcher(t, results(), n2, store, initial)
	_, err = w2.RunPass(ctx)
	require.NoError(t, err)
	assert.Empty(t, n2.sent)
}

func TestFirstRunNotifiesEveryChannelWithAnItem(t *testing.T) {
	t.Parallel()
	p := &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("a1")}, "UCB": {item("b1")}}}
	n := &fakeNotifier{ok: true}
	w := newWatcher(t, p, n, &memStore{}, nil)

	_, err := w.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []sent{{"A", "a1"}, {"B", "b1"}}, n.sent)
}

func TestRateLimitedAndFailedProbesLeaveStateAlone(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(32)
	defer unsub()

	p := &scriptedProber{results: map[string][]feed.ProbeResult{
		"UCA": {feed.RateLimited(403)},
		"UCB": {feed.RequestFailed(500, "status 500")},
	}}
	n := &fakeNotifier{ok: true}
	st := &memStore{}
	w, err := New(Config{Channels: []feed.Channel{chA, chB}, Prober: p, Notifier: n, Store: st}, feed.LastSeen{"A": "old", "B": ""}, logx.Nop(), bus)
	require.NoError(t, err)

	_, err = w.RunPass(context.Background())
	require.NoError(t, err)
	assert.Empty(t, n.sent)
	assert.Equal(t, feed.LastSeen{"A": "old", "B": ""}, st.last())

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Contains(t, types, eventbus.TypeProbeRateLimited)
	assert.Contains(t, types, eventbus.TypeProbeFailed)
	assert.Contains(t, types, eventbus.TypePassCompleted)
}

func TestDeliveryFailureStillAdvancesState(t *testing.T) {
	t.Parallel()
	p := &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("new")}}}
	n := &fakeNotifier{ok: false}
	st := &memStore{}
	w := newWatcher(t, p, n, st, feed.LastSeen{"A": "old"})

	rep, err := w.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, "new", st.last()["A"])

	_, err = w.RunPass(context.Background())
	require.NoError(t, err)
	assert.Len(t, n.sent, 1, "failed delivery must not be retried")
}

func TestChangedIDNotifiesAgain(t *testing.T) {
	t.Parallel()
	p := &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("1"), item("1"), item("2")}}}
	n := &fakeNotifier{ok: true}
	w := newWatcher(t, p, n, &memStore{}, nil)

	for i := 0; i < 3; i++ {
		_, err := w.RunPass(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []sent{{"A", "1"}, {"A", "2"}}, n.sent)
}

func TestContainedFaultKeepsEarlierMutations(t *testing.T) {
	t.Parallel()
	p := &scriptedProber{
		results: map[string][]feed.ProbeResult{"UCA": {item("a1")}},
		panicOn: "UCB",
	}
	n := &fakeNotifier{ok: true}
	st := &memStore{}
	w := newWatcher(t, p, n, st, nil)

	rep, err := w.RunPass(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContainedFault)
	assert.Equal(t, "probe exploded", rep.Fault)
	assert.Nil(t, st.last(), "faulted pass does not save")
	assert.Equal(t, "a1", w.State()["A"])

	snap := w.Snapshot()
	assert.Equal(t, 1, snap.Faults)
	require.NotNil(t, snap.LastPass)
	assert.Equal(t, "probe exploded", snap.LastPass.Fault)

	// Next pass does not re-notify A and persists it.
	p.panicOn = ""
	_, err = w.RunPass(context.Background())
	require.NoError(t, err)
	assert.Len(t, n.sent, 1)
	assert.Equal(t, feed.LastSeen{"A": "a1", "B": ""}, st.last())
}

func TestSaveFailureRetriedNextPass(t *testing.T) {
	t.Parallel()
	p := &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("a1")}}}
	st := &memStore{fail: 1}
	w := newWatcher(t, p, &fakeNotifier{ok: true}, st, nil)

	rep, err := w.RunPass(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Saved)
	assert.Equal(t, "disk full", rep.SaveErr)
	assert.Nil(t, st.last())

	rep, err = w.RunPass(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Saved)
	assert.Equal(t, "a1", st.last()["A"])
}

func TestDryRunNeitherNotifiesNorSaves(t *testing.T) {
	t.Parallel()
	p := &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("a1")}}}
	w, err := New(Config{Channels: []feed.Channel{chA}, Prober: p, DryRun: true}, nil, logx.Nop(), nil)
	require.NoError(t, err)

	rep, err := w.RunPass(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Channels, 1)
	assert.True(t, rep.Channels[0].New)
	assert.Equal(t, "skipped", rep.Channels[0].Delivery)
	assert.False(t, rep.Saved)
}

func TestCancelledPassStopsProbingButSaves(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedProber{}
	st := &memStore{}
	w := newWatcher(t, p, &fakeNotifier{ok: true}, st, nil)

	_, err := w.RunPass(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.calls)
	assert.NotNil(t, st.last())
}

func TestNewValidates(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, nil, logx.Nop(), nil)
	assert.Error(t, err)
	_, err = New(Config{Channels: []feed.Channel{chA}}, nil, logx.Nop(), nil)
	assert.Error(t, err)
	_, err = New(Config{Channels: []feed.Channel{chA}, Prober: &scriptedProber{}}, nil, logx.Nop(), nil)
	assert.Error(t, err)
}

// fakeClock never sleeps: After records the wait and fires immediately until
// the configured number of waits is reached, then cancels the run.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	waits  []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	if len(c.waits) >= c.limit {
		c.cancel()
		return nil
	}
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func TestRunUsesScheduleAndFaultBackoff(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), limit: 3, cancel: cancel}

	p := &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("a1")}}}
	var passes []PassReport
	w, err := New(Config{
		Channels:     []feed.Channel{chA},
		Prober:       p,
		Notifier:     &fakeNotifier{ok: true},
		Store:        &memStore{},
		Schedule:     Every(10 * time.Minute),
		FaultBackoff: 30 * time.Second,
		Clock:        clk,
		OnPass: func(r PassReport) {
			passes = append(passes, r)
			// Second pass faults.
			if len(passes) == 1 {
				p.mu.Lock()
				p.panicOn = "UCA"
				p.mu.Unlock()
			} else {
				p.mu.Lock()
				p.panicOn = ""
				p.mu.Unlock()
			}
		},
	}, nil, logx.Nop(), nil)
	require.NoError(t, err)

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, []time.Duration{10 * time.Minute, 30 * time.Second, 10 * time.Minute}, clk.waits)
	require.Len(t, passes, 3)
	assert.Empty(t, passes[0].Fault)
	assert.NotEmpty(t, passes[1].Fault)
	assert.Empty(t, passes[2].Fault)
	assert.Equal(t, 3, w.Snapshot().Passes)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	w, err := New(Config{
		Channels: []feed.Channel{chA},
		Prober:   &scriptedProber{},
		Notifier: &fakeNotifier{ok: true},
		Store:    &memStore{},
		Schedule: Every(time.Hour),
	}, nil, logx.Nop(), nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.Snapshot().Passes == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type stuckSchedule struct{ panics bool }

func (s stuckSchedule) Next(time.Time) time.Time {
	if s.panics {
		panic("schedule exploded")
	}
	return time.Time{}
}

func (s stuckSchedule) String() string { return "stuck" }

func TestRunNeverSpinsOnScheduleWithoutFuturePass(t *testing.T) {
	t.Parallel()
	for name, sched := range map[string]Schedule{
		"zero next": stuckSchedule{},
		"panics":    stuckSchedule{panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), limit: 3, cancel: cancel}
			w, err := New(Config{
				Channels:     []feed.Channel{chA},
				Prober:       &scriptedProber{},
				Notifier:     &fakeNotifier{ok: true},
				Store:        &memStore{},
				Schedule:     sched,
				FaultBackoff: 45 * time.Second,
				Clock:        clk,
			}, nil, logx.Nop(), nil)
			require.NoError(t, err)

			require.NoError(t, w.Run(ctx))
			assert.Equal(t, []time.Duration{45 * time.Second, 45 * time.Second, 45 * time.Second}, clk.waits)
		})
	}
}

func TestPanickingPassHookIsContained(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), limit: 2, cancel: cancel}
	st := &memStore{}
	w, err := New(Config{
		Channels: []feed.Channel{chA},
		Prober:   &scriptedProber{results: map[string][]feed.ProbeResult{"UCA": {item("a1")}}},
		Notifier: &fakeNotifier{ok: true},
		Store:    st,
		Schedule: Every(10 * time.Minute),
		Clock:    clk,
		OnPass:   func(PassReport) { panic("hook exploded") },
	}, nil, logx.Nop(), nil)
	require.NoError(t, err)

	rep, err := w.RunPass(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Saved)
	assert.Empty(t, rep.Fault)

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, []time.Duration{10 * time.Minute, 10 * time.Minute}, clk.waits)
	assert.Equal(t, 3, w.Snapshot().Passes)
	assert.Equal(t, feed.LastSeen{"A": "a1"}, st.last())
}
