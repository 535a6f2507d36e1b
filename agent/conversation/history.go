package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/aws-assistant/agent/contract"
)

const DefaultMaxTurns = 50

// History is the bounded, ordered turn log of one session. Once it holds more
// than MaxTurns turns the oldest are evicted whole. It is never persisted.
type History struct {
	mu       sync.Mutex
	maxTurns int
	turns    []contractx.Turn
	now      func() time.Time
}

func New(maxTurns int) (*History, error) {
	if maxTurns < 1 {
		return nil, errors.New("conversation max turns must be >= 1")
	}
	return &History{maxTurns: maxTurns, now: time.Now}, nil
}

func (h *History) MaxTurns() int {
	return h.maxTurns
}

// Append stamps turn with an id and timestamp when missing, then evicts the
// oldest turns until the bound holds again.
func (h *History) Append(turn contractx.Turn) contractx.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = h.now().UTC()
	}
	h.turns = append(h.turns, turn)
	if over := len(h.turns) - h.maxTurns; over > 0 {
		// copy so the evicted prefix can be collected
		h.turns = append([]contractx.Turn(nil), h.turns[over:]...)
	}
	return turn
}

// Snapshot returns a copy of the turns, oldest first.
func (h *History) Snapshot() []contractx.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]contractx.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

type Summary struct {
	Turns       int
	MaxTurns    int
	UserTurns   int
	ToolTurns   int
	LastQuery   string
	LastAnswer  string
	LastUpdated time.Time
}

func (h *History) Summarize() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Summary{Turns: len(h.turns), MaxTurns: h.maxTurns}
	for _, t := range h.turns {
		switch t.Role {
		case contractx.RoleUser:
			s.UserTurns++
			s.LastQuery = t.Content
		case contractx.RoleTool:
			s.ToolTurns++
		case contractx.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				s.LastAnswer = t.Content
			}
		}
		s.LastUpdated = t.Timestamp
	}
	return s
}
