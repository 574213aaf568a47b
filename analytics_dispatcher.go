package authflow

import (
	"context"
	"sync"
	"sync/atomic"
)

// analyticsDispatcher forwards events to the configured sink on a dedicated
// goroutine so slow sinks never block a workflow transition. The channel is
// drained on Close; with DropIfFull the dispatcher sheds load instead of
// applying backpressure and accounts for every dropped event.
type analyticsDispatcher struct {
	cfg       AnalyticsConfig
	sink      AnalyticsSink
	ch        chan AnalyticsEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newAnalyticsDispatcher(cfg AnalyticsConfig, sink AnalyticsSink) *analyticsDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &analyticsDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan AnalyticsEvent, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *analyticsDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *analyticsDispatcher) Emit(ctx context.Context, event AnalyticsEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

func (d *analyticsDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *analyticsDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
