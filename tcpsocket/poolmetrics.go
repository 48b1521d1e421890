package tcpsocket

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var DefaultTickerDuration = 1 * time.Second

// na + nr equal the total number of acquires
// na + nr - np equal the number of still outstanding.
type PoolMetrics struct {
	na uint32 // number of new acquires
	nr uint32 // number of reuse from pool
	np uint32 // number of put back to pool

	naa uint64 // accumulative
	nra uint64 // accumulative
	npa uint64 // accumulative

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newPoolMetrics() *PoolMetrics {
	return &PoolMetrics{}
}

func (p *PoolMetrics) acquired(reused bool) {
	if reused {
		atomic.AddUint32(&p.nr, 1)
		return
	}
	atomic.AddUint32(&p.na, 1)
}

func (p *PoolMetrics) released() { atomic.AddUint32(&p.np, 1) }

// fold moves the interval counters into the accumulative ones.
func (p *PoolMetrics) fold() {
	atomic.AddUint64(&p.naa, uint64(atomic.SwapUint32(&p.na, 0)))
	atomic.AddUint64(&p.nra, uint64(atomic.SwapUint32(&p.nr, 0)))
	atomic.AddUint64(&p.npa, uint64(atomic.SwapUint32(&p.np, 0)))
}

func (p *PoolMetrics) start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(DefaultTickerDuration)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.fold()
			case <-stop:
				p.fold()
				return
			}
		}
	}(p.stop, p.done)
}

func (p *PoolMetrics) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop == nil {
		return
	}

	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil
}

// Totals returns the new, reused and put-back counts including the current interval.
func (p *PoolMetrics) Totals() (acquiredNew, reused, putBack uint64) {
	acquiredNew = atomic.LoadUint64(&p.naa) + uint64(atomic.LoadUint32(&p.na))
	reused = atomic.LoadUint64(&p.nra) + uint64(atomic.LoadUint32(&p.nr))
	putBack = atomic.LoadUint64(&p.npa) + uint64(atomic.LoadUint32(&p.np))
	return
}

func (p *PoolMetrics) metricsString() string {
	return fmt.Sprintf("[ %v|%v|%v, %v|%v|%v ]",
		atomic.LoadUint32(&p.na), atomic.LoadUint32(&p.nr), atomic.LoadUint32(&p.np),
		atomic.LoadUint64(&p.naa), atomic.LoadUint64(&p.nra), atomic.LoadUint64(&p.npa))
}
