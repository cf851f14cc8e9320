package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahmethakanbesel/yahoo-history/internal/browser"
	"github.com/ahmethakanbesel/yahoo-history/internal/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/platform/sqlite"
	jobrepo "github.com/ahmethakanbesel/yahoo-history/internal/repository/job"
	"github.com/ahmethakanbesel/yahoo-history/internal/sink"
)

func page(days ...int) string {
	var b strings.Builder
	b.WriteString(`<table><thead><tr><th>Date</th><th>Open</th><th>High</th><th>Low</th><th>Close*</th><th>Adj Close**</th><th>Volume</th></tr></thead><tbody>`)
	for _, d := range days {
		fmt.Fprintf(&b, `<tr><td>Jan %d, 2024</td><td>10</td><td>11</td><td>9</td><td>10.5</td><td>10.4</td><td>1,000</td></tr>`, d)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

type fakeSession struct {
	l      *fakeLauncher
	ticker string
}

func (s *fakeSession) Load(_ context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	s.ticker = strings.Split(strings.Trim(u.Path, "/"), "/")[1]
	s.l.mu.Lock()
	s.l.loaded = append(s.l.loaded, s.ticker)
	s.l.mu.Unlock()
	return nil
}

func (s *fakeSession) RowCount(context.Context, string) (int, error) { return 1, nil }
func (s *fakeSession) ScrollToEnd(context.Context) error             { return nil }

func (s *fakeSession) Markup(context.Context) (string, error) {
	if p, ok := s.l.pages[s.ticker]; ok {
		return p, nil
	}
	return "<html><body><p>No results</p></body></html>", nil
}

func (s *fakeSession) Alive() bool  { return true }
func (s *fakeSession) Close() error { return nil }

type fakeLauncher struct {
	pages map[string]string

	mu     sync.Mutex
	loaded []string
}

func (l *fakeLauncher) Launch(context.Context) (browser.Session, error) {
	return &fakeSession{l: l}, nil
}

type env struct {
	dir      string
	config   string
	launcher *fakeLauncher
}

func newEnv(t *testing.T, sinkName string) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
workers: 2
db_path: %s
output_dir: %s
sink: %s
tickers_file: %s
browser:
  settle: 0s
  max_scrolls: 3
`, filepath.Join(dir, "history.db"), filepath.Join(dir, "out"), sinkName, filepath.Join(dir, "tickers.txt"))
	path := filepath.Join(dir, "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	return &env{
		dir:    dir,
		config: path,
		launcher: &fakeLauncher{pages: map[string]string{
			"AAPL": page(2, 3),
			"MSFT": page(2, 3, 4),
			"IBM":  page(5),
		}},
	}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand("test", WithLauncher(e.launcher), WithOutput(&out, &errOut))
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDownload_WritesBothSinksAndLedger(t *testing.T) {
	e := newEnv(t, "both")

	out, err := e.run(t, "download", "aapl", "MSFT", "BAD", "--from", "2024-01-01", "--to", "2024-01-31")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 symbols failed")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "TABLE_NOT_FOUND")

	aapl, err := sink.NewCSV(filepath.Join(e.dir, "out")).Read("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, aapl.Len())
	assert.True(t, aapl.Ascending())

	out, err = e.run(t, "show", "MSFT", "--source", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-04")

	out, err = e.run(t, "show", "--source", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "MSFT")
	assert.NotContains(t, out, "BAD", "failed symbols store nothing")

	out, err = e.run(t, "jobs", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "BAD")
	assert.NotContains(t, out, "MSFT")
}

func TestDownload_TickersFileAndDryRun(t *testing.T) {
	e := newEnv(t, "csv")
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "tickers.txt"), []byte("# watchlist\naapl\n\nmsft\n"), 0o644))

	out, err := e.run(t, "download", "--dry-run", "--weeks", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL\nMSFT\n")
	assert.Empty(t, e.launcher.loaded, "dry run never opens a page")

	_, err = e.run(t, "download", "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, e.launcher.loaded)
}

func TestDownload_ResumePicksUpPendingJobs(t *testing.T) {
	e := newEnv(t, "none")

	db, err := sqlite.Open(filepath.Join(e.dir, "history.db"))
	require.NoError(t, err)
	repo := jobrepo.NewRepository(db.DB)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &job.Job{
		Technical: "history",
		Symbol:    "IBM",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:    job.StatusRunning,
	}))
	require.NoError(t, db.Close())

	_, err = e.run(t, "download", "AAPL", "--resume", "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"IBM", "AAPL"}, e.launcher.loaded)

	out, err := e.run(t, "jobs", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "IBM")
	assert.Contains(t, out, "AAPL")
}

func TestDownload_FlagErrors(t *testing.T) {
	e := newEnv(t, "csv")
	tests := [][]string{
		{"download", "AAPL", "--from", "2024-02-01", "--to", "2024-01-01"},
		{"download", "AAPL", "--from", "01/02/2024"},
		{"download", "AAPL", "--mode", "truncate"},
		{"download", "AAPL", "--workers", "0"},
		{"download", "AA PL"},
		{"download"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := e.run(t, args...)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, e.launcher.loaded)
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

	dr, err := resolveRange("", "", 2, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01..2024-03-16", dr.String())

	dr, err = resolveRange("", "2024-03-10", 1, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-03..2024-03-10", dr.String())

	dr, err = resolveRange("2024-01-02", "", 1, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02..2024-03-15", dr.String())
}

func TestScheduledRun_NoTickersFile(t *testing.T) {
	e := newEnv(t, "csv")
	a := &app{configPath: e.config, launcher: e.launcher, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	require.NoError(t, a.load(context.Background()))

	require.NoError(t, a.scheduledRun(context.Background()))
	assert.Empty(t, e.launcher.loaded)
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand("v1.2.3", WithOutput(&out, &out))
	cmd.SetArgs([]string{"version", "--config", "/nonexistent/dir/history.yaml"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "v1.2.3\n", out.String())
}

func TestLoad_InvalidConfig(t *testing.T) {
	e := newEnv(t, "s3")
	_, err := e.run(t, "jobs")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "config:"), err.Error())
}

func TestDownload_RecordsSpans(t *testing.T) {
	e := newEnv(t, "none")
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))

	var out, errOut bytes.Buffer
	cmd := NewRootCommand("test", WithLauncher(e.launcher), WithOutput(&out, &errOut), WithTracerProvider(tp))
	cmd.SetArgs([]string{"--config", e.config, "download", "AAPL", "MSFT", "--from", "2024-01-01", "--to", "2024-01-31"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var symbols []string
	for _, s := range exp.GetSpans() {
		if s.Name != "Runner.process" {
			continue
		}
		for _, kv := range s.Attributes {
			if kv.Key == attribute.Key("symbol") {
				symbols = append(symbols, kv.Value.AsString())
			}
		}
	}
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestLoad_InstallsConfiguredExporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	e := newEnv(t, "none")
	f, err := os.OpenFile(e.config, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("telemetry:\n  endpoint: http://127.0.0.1:4318\n  protocol: http\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	a := &app{configPath: e.config, launcher: e.launcher, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	require.NoError(t, a.load(context.Background()))
	require.NotNil(t, a.telemetry)
	require.NotNil(t, a.telemetry.TracerProvider)
	assert.Same(t, a.telemetry.TracerProvider, a.tracerProvider())

	require.NoError(t, a.shutdownTelemetry(context.Background()))
	assert.Nil(t, a.telemetry)
	require.NoError(t, a.shutdownTelemetry(context.Background()), "second shutdown is a no-op")
}
