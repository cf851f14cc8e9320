package batch

import (
	"context"
	"sync"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

// Queue hands out symbols to workers. Next must be safe for concurrent use;
// it returns false once the queue is drained.
type Queue interface {
	Next(ctx context.Context) (history.Symbol, bool, error)
}

// MemoryQueue is a FIFO over a fixed symbol list.
type MemoryQueue struct {
	mu    sync.Mutex
	items []history.Symbol
}

func NewMemoryQueue(symbols []history.Symbol) *MemoryQueue {
	items := make([]history.Symbol, len(symbols))
	copy(items, symbols)
	return &MemoryQueue{items: items}
}

func (q *MemoryQueue) Next(ctx context.Context) (history.Symbol, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false, nil
	}
	sym := q.items[0]
	q.items = q.items[1:]
	return sym, true, nil
}

// Len returns the number of symbols not yet handed out.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
