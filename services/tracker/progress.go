package tracker

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
	PhaseError     Phase = "error"
)

// Progress tracks one monitoring run behind a mutex so the API can
// snapshot it while workers are busy.
type Progress struct {
	mu         sync.Mutex
	phase      Phase
	message    string
	total      int
	checked    int
	failed     int
	startedAt  time.Time
	finishedAt time.Time
}

type Snapshot struct {
	Phase      Phase     `json:"phase"`
	Message    string    `json:"message,omitempty"`
	Total      int       `json:"total"`
	Checked    int       `json:"checked"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

func NewProgress() *Progress {
	return &Progress{phase: PhaseIdle}
}

func (p *Progress) start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = PhaseRunning
	p.message = ""
	p.total = total
	p.checked = 0
	p.failed = 0
	p.startedAt = timezone.Now()
	p.finishedAt = time.Time{}
}

func (p *Progress) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checked++
}

func (p *Progress) markFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checked++
	p.failed++
}

func (p *Progress) finish(phase Phase, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.message = message
	p.finishedAt = timezone.Now()
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Phase:      p.phase,
		Message:    p.message,
		Total:      p.total,
		Checked:    p.checked,
		Failed:     p.failed,
		StartedAt:  p.startedAt,
		FinishedAt: p.finishedAt,
	}
}
