package kernel

// ExecutionState is the run control state of a kernel.
type ExecutionState int

// Execution states.
const (
	Stopped ExecutionState = iota
	Running
	Paused
	Interrupted
	TimeElapsed
	InBreakPoint
)

func (s ExecutionState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Interrupted:
		return "Interrupted"
	case TimeElapsed:
		return "TimeElapsed"
	case InBreakPoint:
		return "InBreakPoint"
	default:
		return "Unknown"
	}
}

// Resumable tells if Continue is allowed from the state.
func (s ExecutionState) Resumable() bool {
	return s == Paused || s == Interrupted || s == InBreakPoint
}

// State returns the current execution state.
func (k *Kernel) State() ExecutionState {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	return k.state
}

func (k *Kernel) setState(s ExecutionState) {
	k.stateLock.Lock()
	k.state = s
	k.stateLock.Unlock()
}
