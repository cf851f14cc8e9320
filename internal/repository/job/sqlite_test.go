package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
	domain "github.com/ahmethakanbesel/yahoo-history/internal/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/platform/sqlite"
)

var _ domain.Repository = (*Repository)(nil)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newJob(symbol string, month time.Month, status domain.Status) *domain.Job {
	return &domain.Job{
		Technical: "history",
		Symbol:    symbol,
		StartDate: time.Date(2024, month, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, month, 28, 0, 0, 0, 0, time.UTC),
		Status:    status,
	}
}

func TestCreate_And_Get(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := newJob("AAPL", time.January, domain.StatusPending)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID == 0 {
		t.Fatal("expected non-zero ID")
	}

	got, err := repo.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "AAPL" || got.Technical != "history" {
		t.Errorf("unexpected job %+v", got)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if !got.StartDate.Equal(j.StartDate) || !got.EndDate.Equal(j.EndDate) {
		t.Errorf("range mismatch: %s..%s", got.StartDate, got.EndDate)
	}
	if got.Kind != "" || got.Error != "" {
		t.Errorf("fresh job should carry no error, got %q %q", got.Kind, got.Error)
	}
}

func TestUpdate(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	j := newJob("ZZZZ", time.January, domain.StatusRunning)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}

	j.Status = domain.StatusFailed
	j.Kind = apperror.TableNotFound
	j.Error = "no table"
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := repo.Get(ctx, j.ID)
	if got.Status != domain.StatusFailed || got.Kind != apperror.TableNotFound || got.Error != "no table" {
		t.Errorf("unexpected job %+v", got)
	}

	missing := newJob("NONE", time.January, domain.StatusFailed)
	missing.ID = 999
	if err := repo.Update(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	for _, j := range []*domain.Job{
		newJob("AAPL", time.January, domain.StatusCompleted),
		newJob("AAPL", time.February, domain.StatusPending),
		newJob("MSFT", time.January, domain.StatusFailed),
	} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter domain.Filter
		want   int
	}{
		{"all", domain.Filter{}, 3},
		{"by symbol", domain.Filter{Symbol: "AAPL"}, 2},
		{"by status", domain.Filter{Status: domain.StatusFailed}, 1},
		{"by technical", domain.Filter{Technical: "profile"}, 0},
		{"limit", domain.Filter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(jobs) != tt.want {
				t.Errorf("expected %d, got %d", tt.want, len(jobs))
			}
		})
	}
}

func TestList_NewestFirst(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	for _, sym := range []string{"AAPL", "MSFT", "IBM"} {
		if err := repo.Create(ctx, newJob(sym, time.January, domain.StatusCompleted)); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := repo.List(ctx, domain.Filter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 2 || jobs[0].Symbol != "IBM" || jobs[1].Symbol != "MSFT" {
		t.Errorf("expected IBM then MSFT, got %+v", jobs)
	}
}

func TestRecoverStale(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	for _, j := range []*domain.Job{
		newJob("AAPL", time.January, domain.StatusRunning),
		newJob("AAPL", time.February, domain.StatusPending),
		newJob("AAPL", time.March, domain.StatusCompleted),
	} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 recovered (running→pending), got %d", n)
	}

	j, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != domain.StatusPending {
		t.Errorf("expected status pending, got %s", j.Status)
	}

	n2, err := repo.RecoverStale(ctx)
	if err != nil {
		t.Fatalf("recover again: %v", err)
	}
	if n2 != 0 {
		t.Errorf("expected 0, got %d", n2)
	}
}

func TestFindActive(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	if err := repo.Create(ctx, newJob("AAPL", time.January, domain.StatusRunning)); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindActive(ctx, "history", "AAPL", "2024-01-01", "2024-01-28")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if got == nil {
		t.Fatal("expected active job")
	}

	got, err = repo.FindActive(ctx, "history", "AAPL", "2024-02-01", "2024-02-28")
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if got != nil {
		t.Error("expected nil for a different range")
	}
}

func TestClaimPending(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	for _, j := range []*domain.Job{
		newJob("AAPL", time.January, domain.StatusPending),
		newJob("MSFT", time.February, domain.StatusPending),
		newJob("NVDA", time.January, domain.StatusPending),
	} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	first, err := repo.ClaimPending(ctx, "history", "2024-01-01", "2024-01-28")
	if err != nil || first == nil {
		t.Fatalf("claim: %v %v", first, err)
	}
	if first.Symbol != "AAPL" || first.Status != domain.StatusRunning {
		t.Errorf("expected running AAPL, got %+v", first)
	}

	second, _ := repo.ClaimPending(ctx, "history", "2024-01-01", "2024-01-28")
	if second == nil || second.Symbol != "NVDA" {
		t.Fatalf("expected NVDA, got %+v", second)
	}

	none, err := repo.ClaimPending(ctx, "history", "2024-01-01", "2024-01-28")
	if err != nil || none != nil {
		t.Fatalf("expected nothing left for January, got %+v %v", none, err)
	}
}

func TestClaimPending_Concurrent(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	ctx := context.Background()

	const total = 30
	for range total {
		if err := repo.Create(ctx, newJob("SPY", time.January, domain.StatusPending)); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := repo.ClaimPending(ctx, "history", "2024-01-01", "2024-01-28")
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if j == nil {
					return
				}
				mu.Lock()
				if seen[j.ID] {
					t.Errorf("job %d claimed twice", j.ID)
				}
				seen[j.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Errorf("expected %d claims, got %d", total, len(seen))
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t).DB)
	_, err := repo.Get(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
