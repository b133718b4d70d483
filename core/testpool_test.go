package core

import (
	"context"
	"sync"
	"time"
)

// testThreadPool is a small real pool for in-package tests: workers pulling
// from a QoS scheduler, the same wiring the root package's pool uses.
type testThreadPool struct {
	scheduler *TaskScheduler
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

func newTestThreadPool(workers int) *testThreadPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &testThreadPool{
		scheduler: NewQoSTaskScheduler(workers),
		cancel:    cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				task, ok := p.scheduler.GetWork(ctx.Done())
				if !ok {
					return
				}
				func() {
					defer func() { recover() }()
					task(ctx)
				}()
			}
		}()
	}
	return p
}

func (p *testThreadPool) stop() {
	p.scheduler.Shutdown()
	p.cancel()
	p.wg.Wait()
}

func (p *testThreadPool) PostInternal(task Task, traits TaskTraits) {
	p.scheduler.PostInternal(task, traits)
}

func (p *testThreadPool) PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target DelayTarget) {
	p.scheduler.PostDelayedInternal(task, delay, traits, target)
}
