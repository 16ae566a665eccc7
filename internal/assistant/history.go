package assistant

import (
	"sync"

	"github.com/Corona-HomeLab/FinSight/internal/model"
)

const DefaultHistoryLimit = 50

// History is a bounded ring of chat turns. Oldest turns fall off once the
// limit is reached; state lives only for the life of the process.
type History struct {
	mu    sync.Mutex
	turns []model.ChatTurn
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

func (h *History) Append(turn model.ChatTurn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	if len(h.turns) > h.limit {
		h.turns = h.turns[len(h.turns)-h.limit:]
	}
}

func (h *History) Turns() []model.ChatTurn {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := make([]model.ChatTurn, len(h.turns))
	copy(turns, h.turns)
	return turns
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
