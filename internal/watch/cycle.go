package watch

import (
	"fmt"
	"log/slog"
)

// Steward ties the observe, decide and act steps together.
type Steward struct {
	Observer *Observer
	Actor    *Actor // nil = observe and log only
	Memory   *CycleMemory
	Policy   Policy
}

// RunCycle executes one observe → decide → act cycle and records it.
func (s *Steward) RunCycle() (*ColonySnapshot, Decision, error) {
	snap, err := s.Observer.Observe()
	if err != nil {
		return nil, Decision{}, fmt.Errorf("observe: %w", err)
	}
	st := snap.Status.Status
	slog.Info("observation complete",
		"tick", st.Tick,
		"sim_time", st.SimTime,
		"collected", fmt.Sprintf("%d/%d", st.Collected, st.TotalFood),
		"throughput", fmt.Sprintf("%.2f", st.Throughput),
		"tours", snap.Paths.Tours,
		"speed", snap.Status.Speed,
	)
	if snap.Paths.Computed {
		for _, p := range snap.Paths.Paths {
			slog.Info("best path", "food", p.Food, "steps", p.Steps)
		}
	}

	decision := Decide(snap, s.Memory, s.Policy)
	speed := snap.Status.Speed
	switch {
	case decision.Action == "none":
		slog.Debug("no speed change", "rationale", decision.Rationale)
	case s.Actor == nil:
		slog.Info("speed change suggested", "action", decision.Action, "speed", decision.Speed, "rationale", decision.Rationale)
	default:
		speed, err = s.Actor.SetSpeed(decision.Speed)
		if err != nil {
			return snap, decision, fmt.Errorf("act: %w", err)
		}
		slog.Info("speed changed", "action", decision.Action, "speed", speed, "rationale", decision.Rationale)
	}

	s.Memory.Record(CycleRecord{
		Tick:      st.Tick,
		Collected: st.Collected,
		Speed:     speed,
		Action:    decision.Action,
		Rationale: decision.Rationale,
	})
	return snap, decision, nil
}
