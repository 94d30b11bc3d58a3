package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visibleai/siteaudit/internal/analysis"
)

// subscriberBuffer sizes each subscription channel. A slow consumer loses
// intermediate snapshots rather than blocking the pipeline; the terminal
// snapshot is always delivered.
const subscriberBuffer = 16

// defaultTerminalRetention is how long a run's dedup entry survives after its
// terminal snapshot, long enough to suppress a straggling duplicate publish.
const defaultTerminalRetention = time.Minute

type subscriber struct {
	ch chan Snapshot
}

type lastState struct {
	status   analysis.RunStatus
	progress int
}

// Publisher fans run snapshots out to per-run subscribers and to the
// registered sinks. Publishing never blocks the caller.
type Publisher struct {
	logger *zap.Logger
	sinks  []Sink

	retainTerminal time.Duration

	mu   sync.Mutex
	subs map[uuid.UUID]map[*subscriber]struct{}
	last map[uuid.UUID]lastState
}

// NewPublisher constructs a Publisher with the given sinks.
func NewPublisher(logger *zap.Logger, sinks ...Sink) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		logger:         logger,
		sinks:          append([]Sink(nil), sinks...),
		retainTerminal: defaultTerminalRetention,
		subs:           make(map[uuid.UUID]map[*subscriber]struct{}),
		last:           make(map[uuid.UUID]lastState),
	}
}

// Subscribe registers interest in a run's snapshots. The channel closes after
// the terminal snapshot is delivered, or when cancel is called.
func (p *Publisher) Subscribe(runID uuid.UUID) (<-chan Snapshot, func()) {
	sub := &subscriber{ch: make(chan Snapshot, subscriberBuffer)}
	p.mu.Lock()
	set, ok := p.subs[runID]
	if !ok {
		set = make(map[*subscriber]struct{})
		p.subs[runID] = set
	}
	set[sub] = struct{}{}
	p.mu.Unlock()

	// cancel only deregisters; the channel is closed by the terminal publish.
	// Closing here would race with an in-flight fan-out.
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			if set, ok := p.subs[runID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(p.subs, runID)
				}
			}
			p.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Publish delivers a snapshot to sinks and subscribers. Snapshots that change
// neither status nor progress are suppressed; a terminal snapshot is always
// delivered exactly once, after which the run's channels close.
func (p *Publisher) Publish(ctx context.Context, snap Snapshot) {
	p.mu.Lock()
	prev, seen := p.last[snap.RunID]
	if seen && !snap.Terminal() &&
		prev.status == snap.Status && prev.progress == snap.Progress {
		p.mu.Unlock()
		return
	}
	if seen && prev.status.Terminal() {
		// The terminal snapshot already went out; nothing further may follow.
		p.mu.Unlock()
		return
	}
	p.last[snap.RunID] = lastState{status: snap.Status, progress: snap.Progress}
	if snap.Terminal() {
		// Reap the dedup entry once the retention window passes so the map
		// stays bounded by in-flight runs. Run IDs are never reused.
		runID := snap.RunID
		time.AfterFunc(p.retainTerminal, func() { p.Forget(runID) })
	}

	var targets []*subscriber
	if set, ok := p.subs[snap.RunID]; ok {
		for sub := range set {
			targets = append(targets, sub)
		}
		if snap.Terminal() {
			delete(p.subs, snap.RunID)
		}
	}
	p.mu.Unlock()

	for _, sink := range p.sinks {
		if err := sink.Consume(ctx, snap); err != nil {
			p.logger.Warn("progress sink consume failed",
				zap.String("run_id", snap.RunID.String()), zap.Error(err))
		}
	}

	for _, sub := range targets {
		select {
		case sub.ch <- snap:
		default:
			if snap.Terminal() {
				// Make room so the terminal snapshot is never lost.
				select {
				case <-sub.ch:
				default:
				}
				sub.ch <- snap
			} else {
				p.logger.Debug("dropping progress snapshot for slow subscriber",
					zap.String("run_id", snap.RunID.String()),
					zap.Int("progress", snap.Progress))
			}
		}
		if snap.Terminal() {
			close(sub.ch)
		}
	}
}

// Forget drops the dedup state for a run. The terminal reaper calls it after
// the retention window; tests may call it directly.
func (p *Publisher) Forget(runID uuid.UUID) {
	p.mu.Lock()
	delete(p.last, runID)
	p.mu.Unlock()
}

// Close terminates the sinks. Open subscriptions are closed by their cancel
// functions.
func (p *Publisher) Close(ctx context.Context) error {
	var firstErr error
	for _, sink := range p.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
