// Package session accumulates practice time from music detections.
//
// A session owns one State. Two periodic activities feed it: the sampler,
// which classifies the latest audio window and reports music, and the tick
// driver, which advances the counters once per second. Both are serialized
// through a single goroutine, so the state itself is never shared.
package session

import "fmt"

// Policy holds the constants of the accumulation rules.
type Policy struct {
	IdleThreshold int // seconds of silence before reset or auto-stop
	MusicCredit   int // grace seconds granted by one positive classification
}

func DefaultPolicy() Policy {
	return Policy{IdleThreshold: 300, MusicCredit: 5}
}

// LogEvery is the tick period of the progress log record.
func (p Policy) LogEvery() int {
	return max(p.IdleThreshold/3, 1)
}

// State is the per-session counter set. The zero value is a fresh session.
type State struct {
	Total     int  // seconds of music in the current unbroken run
	Idle      int  // consecutive seconds without music
	Credit    int  // grace seconds during which music is still presumed present
	Ticks     int  // seconds since session start
	Exhausted bool // auto-stop fired; no further transitions
}

// Phase is the explicit state of the accumulator.
type Phase int

const (
	PhaseIdleResetting Phase = iota // no credit; idle climbs toward the threshold
	PhaseAccumulating               // credit left; ticks count as music
	PhaseExhausted                  // a full threshold passed with nothing accumulated
)

func (p Phase) String() string {
	switch p {
	case PhaseAccumulating:
		return "accumulating"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

func (s State) Phase() Phase {
	switch {
	case s.Exhausted:
		return PhaseExhausted
	case s.Credit > 0:
		return PhaseAccumulating
	default:
		return PhaseIdleResetting
	}
}

// Snapshot is the displayed pair of counters.
type Snapshot struct {
	Total int `json:"total"`
	Idle  int `json:"idle"`
}

func (s State) Snapshot() Snapshot {
	return Snapshot{Total: s.Total, Idle: s.Idle}
}

// Event is an input of the transition function.
type Event int

const (
	EventTick  Event = iota // one second elapsed
	EventMusic              // the sampler heard music
)

// Effects are the side effects a transition asks the driver to perform.
type Effects struct {
	Display  Snapshot // counters before the tick was applied
	Log      bool     // emit a progress record of the new counters
	Reset    bool     // idle threshold reached after a productive run; counters zeroed
	AutoStop bool     // idle threshold reached with nothing accumulated; end the session
}

// Step is the pure transition function of the accumulator.
func Step(s State, p Policy, ev Event) (State, Effects) {
	eff := Effects{Display: s.Snapshot()}
	if s.Exhausted {
		return s, eff
	}

	switch ev {
	case EventMusic:
		s.Credit = p.MusicCredit
		return s, eff

	case EventTick:
		if s.Credit > 0 {
			s.Credit--
			s.Total++
			s.Idle = 0
		} else {
			s.Idle++
			if s.Idle >= p.IdleThreshold {
				// The tick being applied counts toward the session length.
				if s.Total == 0 && s.Ticks+1 >= p.IdleThreshold {
					s.Exhausted = true
					eff.AutoStop = true
					return s, eff
				}
				s.Total = 0
				s.Idle = 0
				eff.Reset = true
			}
		}
		s.Ticks++
		eff.Log = s.Ticks%p.LogEvery() == 0
	}
	return s, eff
}

// FormatClock renders seconds as M:SS.
func FormatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
