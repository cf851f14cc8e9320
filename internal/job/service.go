package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
)

// Service keeps the download ledger: one job per symbol and range, moved
// from pending through running to completed or failed.
type Service struct {
	repo      Repository
	technical string

	mu      sync.Mutex
	claimed map[history.Symbol]*Job
}

func NewService(repo Repository, technical string) *Service {
	return &Service{
		repo:      repo,
		technical: technical,
		claimed:   make(map[history.Symbol]*Job),
	}
}

func (s *Service) RecoverStaleJobs(ctx context.Context) error {
	n, err := s.repo.RecoverStale(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("re-queued interrupted jobs", "count", n)
	}
	return nil
}

// Enqueue adds a pending job for every symbol that has no pending or running
// job over the same range. It returns how many jobs were created.
func (s *Service) Enqueue(ctx context.Context, symbols []history.Symbol, dr history.DateRange) (int, error) {
	if err := dr.Validate(); err != nil {
		return 0, err
	}
	from, to := dr.Minimum.Format(history.DateFormat), dr.Maximum.Format(history.DateFormat)

	created := 0
	for _, sym := range symbols {
		active, err := s.repo.FindActive(ctx, s.technical, sym.String(), from, to)
		if err != nil {
			return created, err
		}
		if active != nil {
			slog.Debug("job already queued", "symbol", sym, "job", active.ID, "status", active.Status)
			continue
		}
		j := &Job{
			Technical: s.technical,
			Symbol:    sym.String(),
			StartDate: dr.Minimum,
			EndDate:   dr.Maximum,
			Status:    StatusPending,
		}
		if err := s.repo.Create(ctx, j); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// Queue hands out the pending jobs over dr, oldest first. Claimed jobs are
// remembered until their outcome is recorded.
func (s *Service) Queue(dr history.DateRange) *Queue {
	return &Queue{
		svc:  s,
		from: dr.Minimum.Format(history.DateFormat),
		to:   dr.Maximum.Format(history.DateFormat),
	}
}

type Queue struct {
	svc      *Service
	from, to string
}

func (q *Queue) Next(ctx context.Context) (history.Symbol, bool, error) {
	j, err := q.svc.repo.ClaimPending(ctx, q.svc.technical, q.from, q.to)
	if err != nil {
		return "", false, err
	}
	if j == nil {
		return "", false, nil
	}

	sym, err := history.NewSymbol(j.Symbol)
	if err != nil {
		j.Status = StatusFailed
		j.Kind, j.Error = "", err.Error()
		if uerr := q.svc.repo.Update(ctx, j); uerr != nil {
			return "", false, uerr
		}
		return q.Next(ctx)
	}

	q.svc.mu.Lock()
	q.svc.claimed[sym] = j
	q.svc.mu.Unlock()
	return sym, true, nil
}

// Record closes the job of o's symbol. Symbols that were not handed out by
// a Queue get a new ledger entry.
func (s *Service) Record(ctx context.Context, dr history.DateRange, o history.Outcome) error {
	s.mu.Lock()
	j, ok := s.claimed[o.Symbol]
	delete(s.claimed, o.Symbol)
	s.mu.Unlock()

	if !ok {
		j = &Job{
			Technical: s.technical,
			Symbol:    o.Symbol.String(),
			StartDate: dr.Minimum,
			EndDate:   dr.Maximum,
			Status:    StatusRunning,
		}
		if err := s.repo.Create(ctx, j); err != nil {
			return fmt.Errorf("record %s: %w", o.Symbol, err)
		}
	}

	j.RecordsCount = int64(o.Rows)
	j.Kind = o.Kind
	j.Error = o.Reason()
	j.Status = StatusCompleted
	if o.Failed() {
		j.Status = StatusFailed
	}
	if err := s.repo.Update(ctx, j); err != nil {
		return fmt.Errorf("record %s: %w", o.Symbol, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Job, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid job id %d", id)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListJobsRequest) ([]Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, req.filter())
}
