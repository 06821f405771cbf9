// Package dispatch implements the bounded worker pool that executes
// Handler.Process calls: a fixed-but-autoscaled set of concurrency
// permits that the agent engine maps concurrent connections onto,
// holding goroutine tickets rather than subprocess handles.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work executed by a Slot: one Handler.Process call
// for one NOTIFY message.
type Task func(ctx context.Context) ([]interface{}, error)

// ExecFunc is the shape of Pool.Exec, extracted so callers (the agent
// package's Conn) can depend on the method value without importing
// *Pool's full surface.
type ExecFunc func(ctx context.Context, task Task) ([]interface{}, error)

// Config sizes the pool: min/max slot bounds plus allocation timeout,
// with "jobs" meaning "messages dispatched".
type Config struct {
	MinSlots        int
	MaxSlots        int
	MaxJobsPerSlot  int // 0 = unbounded; only resets bookkeeping, nothing is actually recycled
	AllocateTimeout time.Duration
}

// Pool bounds the number of concurrent Handler.Process invocations.
type Pool struct {
	cfg    Config
	logger *slog.Logger

	slots     []*Slot
	mu        sync.RWMutex
	available chan *Slot
	nextID    atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc

	totalTasks  atomic.Int64
	activeSlots atomic.Int32
	busySlots   atomic.Int32
}

// New creates a pool. Call Start before Exec.
func New(cfg Config, logger *slog.Logger) *Pool {
	if cfg.MinSlots < 1 {
		cfg.MinSlots = 1
	}
	if cfg.MaxSlots < cfg.MinSlots {
		cfg.MaxSlots = cfg.MinSlots
	}
	if cfg.AllocateTimeout <= 0 {
		cfg.AllocateTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:       cfg,
		logger:    logger,
		available: make(chan *Slot, cfg.MaxSlots),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start spawns the minimum number of slots and the watchdog goroutine.
func (p *Pool) Start() error {
	p.logger.Info("starting dispatch pool",
		"min_slots", p.cfg.MinSlots,
		"max_slots", p.cfg.MaxSlots,
	)
	for i := 0; i < p.cfg.MinSlots; i++ {
		s := p.spawnSlot()
		p.available <- s
	}
	go p.watchdog()
	return nil
}

// Exec blocks for a free slot (bounded by cfg.AllocateTimeout or ctx),
// runs task while holding it, and returns the slot to the pool.
func (p *Pool) Exec(ctx context.Context, task Task) ([]interface{}, error) {
	p.totalTasks.Add(1)

	var s *Slot
	select {
	case s = <-p.available:
	case <-time.After(p.cfg.AllocateTimeout):
		return nil, fmt.Errorf("dispatch: no available slot within %s (pool exhausted)", p.cfg.AllocateTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, fmt.Errorf("dispatch: pool shutting down")
	}

	p.busySlots.Add(1)
	result, err := s.run(ctx, task)
	p.busySlots.Add(-1)

	if p.cfg.MaxJobsPerSlot > 0 && s.Jobs() >= int64(p.cfg.MaxJobsPerSlot) {
		s.resetJobs()
		p.logger.Debug("dispatch slot recycled", "slot_id", s.ID())
	}

	select {
	case p.available <- s:
	case <-p.ctx.Done():
	}

	return result, err
}

// Stop cancels pending allocations and stops the watchdog. It does not
// wait for in-flight tasks: Exec calls already holding a slot run to
// completion since Stop does not interrupt a running task.
func (p *Pool) Stop() {
	p.logger.Info("stopping dispatch pool")
	p.cancel()
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	total := len(p.slots)
	p.mu.RUnlock()
	busy := int(p.busySlots.Load())
	return Stats{
		TotalSlots: total,
		BusySlots:  busy,
		IdleSlots:  total - busy,
		TotalTasks: p.totalTasks.Load(),
		QueueDepth: len(p.available),
	}
}

// Stats holds pool occupancy and throughput counters.
type Stats struct {
	TotalSlots int   `json:"total_slots"`
	BusySlots  int   `json:"busy_slots"`
	IdleSlots  int   `json:"idle_slots"`
	TotalTasks int64 `json:"total_tasks"`
	QueueDepth int   `json:"queue_depth"`
}

func (p *Pool) spawnSlot() *Slot {
	id := int(p.nextID.Add(1))
	s := newSlot(id)

	p.mu.Lock()
	p.slots = append(p.slots, s)
	p.mu.Unlock()
	p.activeSlots.Add(1)

	return s
}

func (p *Pool) removeSlot(target *Slot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.slots {
		if s.ID() == target.ID() {
			p.slots = append(p.slots[:i], p.slots[i+1:]...)
			p.activeSlots.Add(-1)
			return
		}
	}
}

func (p *Pool) watchdog() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.autoScale()
		case <-p.ctx.Done():
			return
		}
	}
}

// autoScale grows the pool when occupancy is high (>=80% busy) and
// shrinks it when it is mostly idle (<=20% busy).
func (p *Pool) autoScale() {
	stats := p.Stats()
	if stats.TotalSlots == 0 {
		return
	}
	busyPct := float64(stats.BusySlots) / float64(stats.TotalSlots) * 100

	if busyPct >= 80 && stats.TotalSlots < p.cfg.MaxSlots {
		s := p.spawnSlot()
		select {
		case p.available <- s:
			p.logger.Info("dispatch pool scaled up", "busy_pct", busyPct, "total_slots", stats.TotalSlots+1)
		case <-p.ctx.Done():
		}
		return
	}

	if busyPct <= 20 && stats.TotalSlots > p.cfg.MinSlots {
		select {
		case s := <-p.available:
			p.removeSlot(s)
			p.logger.Info("dispatch pool scaled down", "busy_pct", busyPct, "total_slots", stats.TotalSlots-1)
		default:
		}
	}
}
