package scanner

import (
	"sync"
	"time"

	"vitasana-backend/lib/timezone"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseStopped   Phase = "stopped"
	PhaseError     Phase = "error"
)

// Progress tracks one scan. Every field is behind the mutex so the API
// can snapshot it while the scan runs.
type Progress struct {
	mu                sync.Mutex
	phase             Phase
	message           string
	currentPrefix     string
	itemsFound        int
	prefixesProcessed int
	prefixesTotal     int
	startedAt         time.Time
	finishedAt        time.Time
}

// Snapshot is a point-in-time copy of a scan's progress.
type Snapshot struct {
	Phase             Phase     `json:"phase"`
	Message           string    `json:"message,omitempty"`
	CurrentPrefix     string    `json:"current_prefix,omitempty"`
	ItemsFound        int       `json:"items_found"`
	PrefixesProcessed int       `json:"prefixes_processed"`
	PrefixesTotal     int       `json:"prefixes_total"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at,omitempty"`
}

func NewProgress() *Progress {
	return &Progress{phase: PhaseIdle}
}

func (p *Progress) start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = PhaseRunning
	p.message = ""
	p.currentPrefix = ""
	p.itemsFound = 0
	p.prefixesProcessed = 0
	p.prefixesTotal = total
	p.startedAt = timezone.Now()
	p.finishedAt = time.Time{}
}

func (p *Progress) finish(phase Phase, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.message = message
	p.currentPrefix = ""
	p.finishedAt = timezone.Now()
}

// scanning reports which prefix the frontier is on, so pollers can see
// where a long scan is.
func (p *Progress) scanning(prefix string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentPrefix = prefix
}

func (p *Progress) addItems(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.itemsFound += n
}

func (p *Progress) prefixDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefixesProcessed++
}

func (p *Progress) addTotal(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefixesTotal += n
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Phase:             p.phase,
		Message:           p.message,
		CurrentPrefix:     p.currentPrefix,
		ItemsFound:        p.itemsFound,
		PrefixesProcessed: p.prefixesProcessed,
		PrefixesTotal:     p.prefixesTotal,
		StartedAt:         p.startedAt,
		FinishedAt:        p.finishedAt,
	}
}
