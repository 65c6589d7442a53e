package watch

import "fmt"

// Policy bounds the steward's speed changes.
type Policy struct {
	BaseSpeed   float64 // Speed restored once food flows again
	MaxSpeed    float64 // Fast-forward ceiling
	StallCycles int     // Observations without new food before fast-forwarding
}

// DefaultPolicy restores 1× and fast-forwards up to 16× after three quiet
// observations.
func DefaultPolicy() Policy {
	return Policy{BaseSpeed: 1, MaxSpeed: 16, StallCycles: 3}
}

// Decision is the outcome of one cycle.
type Decision struct {
	Action    string  `json:"action"` // none, fast_forward, restore
	Speed     float64 `json:"speed"`
	Rationale string  `json:"rationale"`
}

// Decide picks a speed change from the latest snapshot and the recent
// cycle history. Searching stretches with no deliveries are
// fast-forwarded by doubling; the first new delivery restores the base
// speed so the trail forming around it can be watched.
func Decide(snap *ColonySnapshot, mem *CycleMemory, p Policy) Decision {
	st := snap.Status
	none := func(why string) Decision {
		return Decision{Action: "none", Speed: st.Speed, Rationale: why}
	}

	switch {
	case st.Exhausted:
		return none("all food collected")
	case !st.Running:
		return none("engine not running")
	case st.Speed <= 0:
		return none("paused by an operator")
	}

	collected := st.Status.Collected
	quiet := mem.QuietCycles(collected)

	if prev, ok := mem.Last(); ok && collected > prev.Collected && st.Speed > p.BaseSpeed {
		return Decision{
			Action:    "restore",
			Speed:     p.BaseSpeed,
			Rationale: fmt.Sprintf("%d food delivered since tick %d", collected-prev.Collected, prev.Tick),
		}
	}

	if quiet >= p.StallCycles && st.Speed < p.MaxSpeed {
		return Decision{
			Action:    "fast_forward",
			Speed:     min(st.Speed*2, p.MaxSpeed),
			Rationale: fmt.Sprintf("no deliveries for %d observations", quiet),
		}
	}
	return none("colony progressing")
}
