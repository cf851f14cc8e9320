package job

import "context"

type Repository interface {
	Create(ctx context.Context, j *Job) error
	Update(ctx context.Context, j *Job) error
	Get(ctx context.Context, id int64) (*Job, error)
	List(ctx context.Context, f Filter) ([]Job, error)
	FindActive(ctx context.Context, technical, symbol string, from, to string) (*Job, error)
	// ClaimPending marks the oldest pending job of the given technical type
	// and range as running and returns it, or nil when none is left.
	ClaimPending(ctx context.Context, technical string, from, to string) (*Job, error)
	RecoverStale(ctx context.Context) (int64, error)
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Technical string
	Symbol    string
	Status    Status
	Limit     int
}
