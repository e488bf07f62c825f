package monitoring

import (
	"math"
	"sync"
	"time"

	"github.com/sarchlab/flowsim/sim/hooking"
	"github.com/sarchlab/flowsim/sim/kernel"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

type progressRsp struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) snapshot() progressRsp {
	b.Lock()
	defer b.Unlock()

	return progressRsp{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}

// SimTimeProgress moves a progress bar along with the simulated time. The
// bar counts whole simulated seconds toward the run target. Attach it to a
// kernel with AcceptHook.
type SimTimeProgress struct {
	bar *ProgressBar
}

// NewSimTimeProgress creates a bar on the monitor for a run that ends at
// until.
func NewSimTimeProgress(m *Monitor, name string, until float64) *SimTimeProgress {
	return &SimTimeProgress{
		bar: m.CreateProgressBar(name, uint64(math.Ceil(until))),
	}
}

// Bar returns the tracked progress bar.
func (p *SimTimeProgress) Bar() *ProgressBar {
	return p.bar
}

// Func updates the bar after every event.
func (p *SimTimeProgress) Func(ctx hooking.HookCtx) {
	if ctx.Pos != kernel.HookPosAfterEvent &&
		ctx.Pos != kernel.HookPosSimulationFinished {
		return
	}

	p.bar.Lock()
	defer p.bar.Unlock()

	done := uint64(ctx.Now)
	if done > p.bar.Total {
		done = p.bar.Total
	}

	p.bar.Finished = done
}
