package tcpsocket

import "sync/atomic"

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// stateFlag is read by the caller and both pipelines on every iteration.
type stateFlag struct {
	v atomic.Int32
}

func (f *stateFlag) load() State { return State(f.v.Load()) }

func (f *stateFlag) store(s State) { f.v.Store(int32(s)) }

func (f *stateFlag) cas(from, to State) bool { return f.v.CompareAndSwap(int32(from), int32(to)) }

// beginDisconnect moves any live state to StateDisconnecting. It reports the
// state it replaced, or false if the flag was already disconnecting or closed.
func (f *stateFlag) beginDisconnect() (State, bool) {
	for {
		cur := f.load()
		if cur == StateDisconnecting || cur == StateClosed {
			return cur, false
		}
		if f.cas(cur, StateDisconnecting) {
			return cur, true
		}
	}
}
