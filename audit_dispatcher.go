package goMFA

import (
	"context"
	"maps"
	"sync"
)

// auditDispatcher feeds the sink from one worker goroutine. Event types
// outside the configured filter are discarded before queueing. Events that
// cannot be queued are counted per event type.
type auditDispatcher struct {
	sink       AuditSink
	dropIfFull bool
	allow      map[string]bool

	queue chan AuditEvent
	stop  chan struct{}

	// mu guards sends on queue against its close
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	worker   sync.WaitGroup

	dropMu  sync.Mutex
	dropped map[string]uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
		dropped:    make(map[string]uint64),
	}
	if len(cfg.Events) > 0 {
		d.allow = make(map[string]bool, len(cfg.Events))
		for _, name := range cfg.Events {
			d.allow[name] = true
		}
	}

	d.worker.Add(1)
	go func() {
		defer d.worker.Done()
		for event := range d.queue {
			d.sink.Emit(context.Background(), event)
		}
	}()

	return d
}

func (d *auditDispatcher) admits(eventType string) bool {
	return d.allow == nil || d.allow[eventType]
}

// Emit queues event. A full queue drops it when dropIfFull is set and
// otherwise waits for space, ctx or Close. Both ways out count as a drop.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || !d.admits(event.EventType) {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.queue <- event:
		return
	default:
	}

	if d.dropIfFull {
		d.drop(event.EventType)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event.EventType)
	case <-d.stop:
		d.drop(event.EventType)
	}
}

func (d *auditDispatcher) drop(eventType string) {
	d.dropMu.Lock()
	d.dropped[eventType]++
	d.dropMu.Unlock()
}

// Close releases blocked emitters, flushes the queue and stops the worker.
// Safe to call twice.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		close(d.stop)

		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		d.worker.Wait()
	})
}

// Dropped is the total over every event type.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	var total uint64
	for _, n := range d.dropped {
		total += n
	}
	return total
}

func (d *auditDispatcher) DroppedByEvent() map[string]uint64 {
	if d == nil {
		return map[string]uint64{}
	}
	d.dropMu.Lock()
	defer d.dropMu.Unlock()
	return maps.Clone(d.dropped)
}
