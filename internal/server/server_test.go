package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	"github.com/ahmethakanbesel/yahoo-history/internal/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/platform/sqlite"
	"github.com/ahmethakanbesel/yahoo-history/internal/repository/bar"
	jobrepo "github.com/ahmethakanbesel/yahoo-history/internal/repository/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func setup(t *testing.T) (*httptest.Server, *jobrepo.Repository) {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	bars := bar.NewRepository(db.DB)
	tbl := history.BarTable{Ticker: "AAPL"}
	for _, d := range []int{2, 3, 4} {
		tbl.Bars = append(tbl.Bars, history.Bar{
			Date: day(d), Ticker: "AAPL",
			Open: 10, High: 11, Low: 9, Close: 10.5, Price: 10.25, Volume: int64(d) * 100,
		})
	}
	if err := bars.Write(context.Background(), "AAPL", tbl, sink.ModeOverwrite); err != nil {
		t.Fatalf("seed bars: %v", err)
	}

	jobs := jobrepo.NewRepository(db.DB)
	srv := httptest.NewServer(NewHandler(bars, job.NewService(jobs, "history")))
	t.Cleanup(srv.Close)
	return srv, jobs
}

func get(t *testing.T, url string) (int, string, http.Header) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body), resp.Header
}

func TestHealth(t *testing.T) {
	srv, _ := setup(t)

	status, body, header := get(t, srv.URL+"/health")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("unexpected body %s", body)
	}
	if header.Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestGetBars(t *testing.T) {
	srv, _ := setup(t)

	status, body, _ := get(t, srv.URL+"/api/v1/bars/aapl?from=2024-01-03")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var resp APIResponse[barsResponse]
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Ticker != "AAPL" || len(resp.Data.Bars) != 2 {
		t.Fatalf("unexpected response %+v", resp.Data)
	}
	if resp.Data.Bars[0].Date != "2024-01-03" || resp.Data.Bars[0].Volume != 300 {
		t.Errorf("unexpected first bar %+v", resp.Data.Bars[0])
	}
}

func TestGetBars_CSV(t *testing.T) {
	srv, _ := setup(t)

	status, body, header := get(t, srv.URL+"/api/v1/bars/AAPL?format=csv&to=2024-01-02")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if header.Get("Content-Type") != "text/csv" {
		t.Errorf("unexpected content type %q", header.Get("Content-Type"))
	}
	want := "date,ticker,open,high,low,close,price,volume\n2024-01-02,AAPL,10,11,9,10.5,10.25,200\n"
	if body != want {
		t.Errorf("unexpected csv:\n%s", body)
	}
}

func TestGetBars_BadRequests(t *testing.T) {
	srv, _ := setup(t)

	tests := []struct {
		name string
		path string
	}{
		{"bad from", "/api/v1/bars/AAPL?from=01-02-2024"},
		{"bad to", "/api/v1/bars/AAPL?to=yesterday"},
		{"inverted range", "/api/v1/bars/AAPL?from=2024-02-01&to=2024-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := get(t, srv.URL+tt.path)
			if status != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", status, body)
			}
		})
	}
}

func TestListTickers(t *testing.T) {
	srv, _ := setup(t)

	status, body, _ := get(t, srv.URL+"/api/v1/tickers")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp APIResponse[[]tickerResponse]
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := tickerResponse{Ticker: "AAPL", Bars: 3, First: "2024-01-02", Last: "2024-01-04"}
	if len(resp.Data) != 1 || resp.Data[0] != want {
		t.Errorf("unexpected tickers %+v", resp.Data)
	}
}

func TestJobs(t *testing.T) {
	srv, repo := setup(t)
	ctx := context.Background()

	j := &job.Job{Technical: "history", Symbol: "AAPL", StartDate: day(1), EndDate: day(31), Status: job.StatusPending}
	if err := repo.Create(ctx, j); err != nil {
		t.Fatal(err)
	}
	_ = repo.Create(ctx, &job.Job{Technical: "history", Symbol: "MSFT", StartDate: day(1), EndDate: day(31), Status: job.StatusFailed})

	status, body, _ := get(t, srv.URL+"/api/v1/jobs?status=failed")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var list APIResponse[[]job.Job]
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].Symbol != "MSFT" {
		t.Errorf("unexpected jobs %+v", list.Data)
	}

	status, body, _ = get(t, srv.URL+"/api/v1/jobs/1")
	if status != http.StatusOK || !strings.Contains(body, `"symbol":"AAPL"`) {
		t.Errorf("get job: %d %s", status, body)
	}

	if status, _, _ := get(t, srv.URL+"/api/v1/jobs/99"); status != http.StatusNotFound {
		t.Errorf("expected 404 for missing job, got %d", status)
	}
	if status, _, _ := get(t, srv.URL+"/api/v1/jobs/abc"); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", status)
	}
	if status, _, _ := get(t, srv.URL+"/api/v1/jobs?status=lost"); status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", status)
	}
}

func TestEmptyJobListIsArray(t *testing.T) {
	srv, _ := setup(t)

	_, body, _ := get(t, srv.URL+"/api/v1/jobs")
	if !strings.Contains(body, `"data":[]`) {
		t.Errorf("expected empty array, got %s", body)
	}
}
