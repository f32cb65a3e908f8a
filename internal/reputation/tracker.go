package reputation

import (
	"context"
	"fmt"
	"sync"
)

const DefaultScore = 10

// Tracker holds a cooperation score per participant. Unknown participants
// start at the tracker's default.
type Tracker interface {
	Get(ctx context.Context, participant string) (int, error)
	Adjust(ctx context.Context, participant string, delta int) (int, error)
}

type memoryTracker struct {
	mu           sync.Mutex
	scores       map[string]int
	defaultScore int
}

func NewMemoryTracker(defaultScore int) Tracker {
	return &memoryTracker{
		scores:       make(map[string]int),
		defaultScore: defaultScore,
	}
}

func (t *memoryTracker) Get(ctx context.Context, participant string) (int, error) {
	if participant == "" {
		return 0, fmt.Errorf("participant cannot be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if score, ok := t.scores[participant]; ok {
		return score, nil
	}
	return t.defaultScore, nil
}

func (t *memoryTracker) Adjust(ctx context.Context, participant string, delta int) (int, error) {
	if participant == "" {
		return 0, fmt.Errorf("participant cannot be empty")
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	score, ok := t.scores[participant]
	if !ok {
		score = t.defaultScore
	}
	score += delta
	t.scores[participant] = score
	return score, nil
}
