package watch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"tubewatch/internal/eventbus"
	"tubewatch/internal/feed"
	"tubewatch/internal/youtube"
	logx "tubewatch/pkg/logx"

	"github.com/google/uuid"
)

const DefaultFaultBackoff = time.Minute

// Notifier delivers one notification per call.
type Notifier interface {
	Notify(ctx context.Context, ch feed.Channel, item feed.Item) feed.Delivery
}

// Saver persists the full last-seen state.
type Saver interface {
	Save(ctx context.Context, s feed.LastSeen) error
}

// Config wires a Watcher.
type Config struct {
	Channels     []feed.Channel
	Prober       youtube.Prober
	Notifier     Notifier
	Store        Saver
	Schedule     Schedule      // nil means every 10m
	FaultBackoff time.Duration // <=0 means 1m
	Clock        Clock         // nil means wall clock

	// DryRun probes and updates in-memory state but neither notifies nor saves.
	DryRun bool

	// OnPass runs after every pass, faulted or not.
	OnPass func(PassReport)
}

// ChannelOutcome is the result of one channel within a pass.
type ChannelOutcome struct {
	Channel  string `json:"channel"`
	Probe    string `json:"probe"`
	ItemID   string `json:"item_id,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	New      bool   `json:"new"`
	Notified bool   `json:"notified"`
	Delivery string `json:"delivery,omitempty"` // "ok" | "failed" | "skipped"
}

// PassReport summarizes one pass.
type PassReport struct {
	ID        string           `json:"id"`
	StartedAt time.Time        `json:"started_at"`
	Took      time.Duration    `json:"took"`
	Channels  []ChannelOutcome `json:"channels"`
	Sent      int              `json:"sent"`
	Failed    int              `json:"failed"`
	Saved     bool             `json:"saved"`
	SaveErr   string           `json:"save_err,omitempty"`
	Fault     string           `json:"fault,omitempty"`
}

// Snapshot is a read-only view for operators.
type Snapshot struct {
	State    feed.LastSeen `json:"state"`
	LastPass *PassReport   `json:"last_pass,omitempty"`
	Passes   int           `json:"passes"`
	Faults   int           `json:"faults"`
	NextPass time.Time     `json:"next_pass,omitempty"`
	Schedule string        `json:"schedule"`
}

// Watcher owns the last-seen state. Passes run one at a time; only Snapshot
// may be called concurrently with a pass.
type Watcher struct {
	log logx.Logger
	bus eventbus.Bus
	cfg Config

	newID func() string

	mu       sync.Mutex
	state    feed.LastSeen
	last     *PassReport
	passes   int
	faults   int
	nextPass time.Time
}

// New creates a Watcher starting from initial, which is reconciled against
// the configured channels.
func New(cfg Config, initial feed.LastSeen, log logx.Logger, bus eventbus.Bus) (*Watcher, error) {
	if len(cfg.Channels) == 0 {
		return nil, errors.New("watch: at least one channel is required")
	}
	if cfg.Prober == nil {
		return nil, errors.New("watch: prober is required")
	}
	if cfg.Notifier == nil && !cfg.DryRun {
		return nil, errors.New("watch: notifier is required")
	}
	if cfg.Store == nil && !cfg.DryRun {
		return nil, errors.New("watch: store is required")
	}
	if cfg.Schedule == nil {
		cfg.Schedule = Every(10 * time.Minute)
	}
	if cfg.FaultBackoff <= 0 {
		cfg.FaultBackoff = DefaultFaultBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	state, _ := initial.Reconcile(cfg.Channels)
	return &Watcher{
		log:   log,
		bus:   bus,
		cfg:   cfg,
		newID: uuid.NewString,
		state: state,
	}, nil
}

// Run executes a pass immediately and then one per schedule tick until ctx is
// cancelled. A pass that ends in a contained fault is followed by the short
// fault backoff instead.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watch loop started",
		logx.Int("channels", len(w.cfg.Channels)),
		logx.String("schedule", w.cfg.Schedule.String()),
		logx.Duration("fault_backoff", w.cfg.FaultBackoff),
	)
	for {
		_, err := w.RunPass(ctx)
		if ctx.Err() != nil {
			w.log.Info("watch loop stopped")
			return nil
		}

		now := w.cfg.Clock.Now()
		wait := w.cfg.FaultBackoff
		if !errors.Is(err, ErrContainedFault) {
			wait = w.nextWait(now)
		}

		w.mu.Lock()
		w.nextPass = now.Add(wait)
		w.mu.Unlock()
		w.log.Debug("next pass scheduled", logx.Duration("in", wait))

		select {
		case <-ctx.Done():
			w.log.Info("watch loop stopped")
			return nil
		case <-w.cfg.Clock.After(wait):
		}
	}
}

// nextWait is the delay until the schedule's next pass. A schedule that
// panics or yields no future time falls back to the fault backoff so the
// loop never spins.
func (w *Watcher) nextWait(now time.Time) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("schedule panicked; using fault backoff", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			wait = w.cfg.FaultBackoff
		}
	}()
	next := w.cfg.Schedule.Next(now)
	if next.IsZero() || !next.After(now) {
		w.log.Warn("schedule has no future pass; using fault backoff",
			logx.String("schedule", w.cfg.Schedule.String()),
			logx.Time("next", next),
		)
		return w.cfg.FaultBackoff
	}
	return next.Sub(now)
}

// RunPass performs one full pass. The returned error is ErrContainedFault
// (wrapped) if the pass panicked, or ctx.Err() if it was cancelled; probe,
// delivery and save failures are reported in the PassReport only.
func (w *Watcher) RunPass(ctx context.Context) (rep PassReport, err error) {
	rep = PassReport{ID: w.newID(), StartedAt: w.cfg.Clock.Now()}
	log := w.log.With(logx.String("pass_id", rep.ID))

	// Deferred first so it runs after the recover below.
	defer w.finish(log, &rep)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrContainedFault, r)
			rep.Fault = fmt.Sprint(r)
			log.Error("pass aborted by contained fault", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			eventbus.Publish(w.bus, eventbus.TypeFault, eventbus.PassEvent{PassID: rep.ID, Fault: rep.Fault})
		}
	}()

	for _, ch := range w.cfg.Channels {
		if err = ctx.Err(); err != nil {
			break
		}
		rep.Channels = append(rep.Channels, w.visit(ctx, log, ch, &rep))
	}

	if w.cfg.DryRun {
		return rep, err
	}

	// Persist even when cancelled so deliveries made so far are not repeated.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if serr := w.cfg.Store.Save(saveCtx, w.State()); serr != nil {
		rep.SaveErr = serr.Error()
		log.Error("state save failed; retrying after next pass", logx.Err(serr))
		eventbus.Publish(w.bus, eventbus.TypeSaveFailed, eventbus.PassEvent{PassID: rep.ID, SaveErr: rep.SaveErr})
	} else {
		rep.Saved = true
	}
	return rep, err
}

func (w *Watcher) visit(ctx context.Context, log logx.Logger, ch feed.Channel, rep *PassReport) ChannelOutcome {
	log = log.With(logx.String("channel", ch.Name))
	res := w.cfg.Prober.Probe(ctx, ch.ChannelID)
	out := ChannelOutcome{Channel: ch.Name, Probe: res.Kind.String(), Status: res.Status, Detail: res.Detail}
	ev := eventbus.ProbeEvent{Channel: ch.Name, Status: res.Status, Detail: res.Detail}

	switch res.Kind {
	case feed.ProbeItem:
		item := res.Item
		out.ItemID = item.ID
		ev.ItemID = item.ID

		prev, _ := w.lastSeen(ch.Name)
		if item.ID == prev {
			log.Info("no new item", logx.String("item_id", item.ID))
			return out
		}

		out.New = true
		log.Info("new item detected", logx.String("item_id", item.ID), logx.String("title", item.Title), logx.String("previous", prev))
		eventbus.Publish(w.bus, eventbus.TypeItemDetected, ev)

		if w.cfg.DryRun {
			out.Delivery = "skipped"
		} else {
			d := w.cfg.Notifier.Notify(ctx, ch, item)
			out.Notified = true
			if d.OK {
				out.Delivery = "ok"
				rep.Sent++
			} else {
				out.Delivery = "failed"
				rep.Failed++
			}
		}
		// Advance regardless of delivery outcome.
		w.mu.Lock()
		w.state[ch.Name] = item.ID
		w.mu.Unlock()

	case feed.ProbeNoItem:
		log.Info("channel has no items")
		eventbus.Publish(w.bus, eventbus.TypeProbeNoItem, ev)

	case feed.ProbeRateLimited:
		log.Warn("rate limited by upstream; skipping channel", logx.Int("status", res.Status))
		eventbus.Publish(w.bus, eventbus.TypeProbeRateLimited, ev)

	default:
		log.Error("probe failed; skipping channel", logx.Int("status", res.Status), logx.String("detail", res.Detail))
		eventbus.Publish(w.bus, eventbus.TypeProbeFailed, ev)
	}
	return out
}

func (w *Watcher) finish(log logx.Logger, rep *PassReport) {
	rep.Took = w.cfg.Clock.Now().Sub(rep.StartedAt)

	w.mu.Lock()
	w.passes++
	if rep.Fault != "" {
		w.faults++
	}
	r := *rep
	w.last = &r
	w.mu.Unlock()

	log.Info("pass completed",
		logx.Int("channels", len(rep.Channels)),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Bool("saved", rep.Saved),
		logx.Duration("took", rep.Took),
	)
	eventbus.Publish(w.bus, eventbus.TypePassCompleted, eventbus.PassEvent{
		PassID:   rep.ID,
		Channels: len(rep.Channels),
		Sent:     rep.Sent,
		Failed:   rep.Failed,
		Took:     rep.Took,
		SaveErr:  rep.SaveErr,
		Fault:    rep.Fault,
	})

	w.runOnPass(log, r)
}

func (w *Watcher) runOnPass(log logx.Logger, r PassReport) {
	if w.cfg.OnPass == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("pass hook panicked", logx.Any("panic", p), logx.Stack(string(debug.Stack())))
		}
	}()
	w.cfg.OnPass(r)
}

func (w *Watcher) lastSeen(name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Get(name)
}

// State returns a copy of the in-memory last-seen state.
func (w *Watcher) State() feed.LastSeen {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone()
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := Snapshot{
		State:    w.state.Clone(),
		Passes:   w.passes,
		Faults:   w.faults,
		NextPass: w.nextPass,
		Schedule: w.cfg.Schedule.String(),
	}
	if w.last != nil {
		r := *w.last
		snap.LastPass = &r
	}
	return snap
}
