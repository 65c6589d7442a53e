package watch

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 10

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	Tick      uint64  `json:"tick"`
	Collected int     `json:"collected"`
	Speed     float64 `json:"speed"`
	Action    string  `json:"action"`
	Rationale string  `json:"rationale,omitempty"`
}

// CycleMemory manages a ring of recent steward cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file from disk. Returns empty memory if the
// file is missing or unreadable.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("watch memory corrupted, starting fresh", "error", err)
		return &CycleMemory{}
	}
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save(path string) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal watch memory", "error", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Error("failed to write watch memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords. A tick that went
// backwards means the colony restarted, so older records are dropped.
func (m *CycleMemory) Record(r CycleRecord) {
	if last, ok := m.Last(); ok && r.Tick < last.Tick {
		m.Records = nil
	}
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Last returns the most recent record.
func (m *CycleMemory) Last() (CycleRecord, bool) {
	if len(m.Records) == 0 {
		return CycleRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}

// QuietCycles counts the trailing records whose collected total equals
// collected.
func (m *CycleMemory) QuietCycles(collected int) int {
	n := 0
	for i := len(m.Records) - 1; i >= 0; i-- {
		if m.Records[i].Collected != collected {
			break
		}
		n++
	}
	return n
}
