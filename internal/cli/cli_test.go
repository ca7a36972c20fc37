package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"gigledger/internal/config"
	"gigledger/internal/core"
	"gigledger/internal/entitlement"
	"gigledger/internal/storage"
	"gigledger/internal/store"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "cache.db")
	t.Setenv("CACHE_DB_PATH", path)
	t.Setenv("APP_ID", "gigledger-test")
	t.Setenv("USER_ID", "")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("CACHE_KEY", "")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("LOG_LEVEL", "error")
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("gigledger %s: %v", strings.Join(args, " "), err)
	}
	return out
}

// lastField returns the id printed at the end of an "Added ..." line.
func lastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func TestGigLifecyclePersistsAcrossRuns(t *testing.T) {
	setupEnv(t)

	id := lastField(mustRun(t, "gig", "add", "Wedding DJ", "450.00", "--platform", "direct", "--date", "2026-10-03"))
	if id == "" {
		t.Fatal("no gig id printed")
	}

	out := mustRun(t, "gig", "list")
	if !strings.Contains(out, "Wedding DJ") || !strings.Contains(out, "450.00") || !strings.Contains(out, "pending") {
		t.Errorf("gig list missing record:\n%s", out)
	}

	out = mustRun(t, "summary")
	if !strings.Contains(out, "Total income") || strings.Contains(out, "450.00") {
		t.Errorf("pending gig should not count as income:\n%s", out)
	}

	mustRun(t, "gig", "status", id, "completed")
	out = mustRun(t, "summary")
	if !strings.Contains(out, "450.00") {
		t.Errorf("completed gig should count as income:\n%s", out)
	}

	mustRun(t, "gig", "delete", id)
	out = mustRun(t, "gig", "list")
	if strings.Contains(out, "Wedding DJ") {
		t.Errorf("deleted gig still listed:\n%s", out)
	}
}

func TestGigStatusRejectsUnknownStatus(t *testing.T) {
	setupEnv(t)
	if _, err := runCLI(t, "gig", "status", "any", "cancelled"); !errors.Is(err, core.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestGigAddValidation(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"negative amount", []string{"gig", "add", "Job", "-5"}},
		{"bad date", []string{"gig", "add", "Job", "10", "--date", "03/10/2026"}},
		{"bad status", []string{"gig", "add", "Job", "10", "--status", "maybe"}},
		{"missing amount", []string{"gig", "add", "Job"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, tt.args...); err == nil {
				t.Errorf("expected error for %v", tt.args)
			}
		})
	}
}

func TestFreeTierLimitReported(t *testing.T) {
	setupEnv(t)

	mustRun(t, "goal", "add", "Taxes", "1000", "--type", "taxes")
	mustRun(t, "goal", "add", "Emergency", "500", "--type", "emergency")

	_, err := runCLI(t, "goal", "add", "Vacation", "800")
	if !errors.Is(err, ErrUpgradeRequired) {
		t.Fatalf("expected ErrUpgradeRequired, got %v", err)
	}

	out := mustRun(t, "summary")
	if !strings.Contains(out, "Savings goals") || !strings.Contains(out, "2/2") {
		t.Errorf("summary should report goal usage:\n%s", out)
	}
}

func TestGoalContribute(t *testing.T) {
	setupEnv(t)

	id := lastField(mustRun(t, "goal", "add", "Laptop", "1200"))
	mustRun(t, "goal", "contribute", id, "200")
	out := mustRun(t, "goal", "contribute", id, "50.50")
	if !strings.Contains(out, "250.50 of 1200.00") {
		t.Errorf("unexpected contribute output: %q", out)
	}

	out = mustRun(t, "goal", "contribute", "missing", "10")
	if !strings.Contains(out, "nothing saved") {
		t.Errorf("unknown goal should be a no-op, got %q", out)
	}
}

func TestInvoiceCreate(t *testing.T) {
	setupEnv(t)

	if _, err := runCLI(t, "invoice", "create", "nobody", "--item", "Work=10"); err == nil {
		t.Error("expected error for unknown client")
	}

	clientID := lastField(mustRun(t, "client", "add", "Acme", "--email", "ap@acme.test"))
	out := mustRun(t, "invoice", "create", clientID,
		"--item", "Design=250",
		"--item", "Revisions=49.99",
		"--status", "sent",
		"--due", "2026-11-01")
	if !strings.Contains(out, "Acme") || !strings.Contains(out, "299.99") {
		t.Errorf("unexpected create output: %q", out)
	}
	invoiceID := strings.Fields(out)[2]

	out = mustRun(t, "summary")
	if !strings.Contains(out, "Pending invoices") || !strings.Contains(out, "299.99") {
		t.Errorf("sent invoice should be pending:\n%s", out)
	}

	mustRun(t, "invoice", "status", invoiceID, "paid")
	out = mustRun(t, "invoice", "list")
	if !strings.Contains(out, "paid") {
		t.Errorf("invoice status not updated:\n%s", out)
	}
}

func TestExpenseCommands(t *testing.T) {
	setupEnv(t)

	id := lastField(mustRun(t, "expense", "add", "Cables", "35,20", "--category", "equipment", "--deductible"))
	out := mustRun(t, "expense", "list")
	if !strings.Contains(out, "Cables") || !strings.Contains(out, "35.20") || !strings.Contains(out, "true") {
		t.Errorf("expense list missing record:\n%s", out)
	}
	mustRun(t, "expense", "delete", id)
	out = mustRun(t, "expense", "list")
	if strings.Contains(out, "Cables") {
		t.Errorf("deleted expense still listed:\n%s", out)
	}
}

func TestSealedCache(t *testing.T) {
	setupEnv(t)
	t.Setenv("CACHE_KEY", strings.Repeat("ab", 32))

	mustRun(t, "gig", "add", "Sealed gig", "10")
	out := mustRun(t, "gig", "list")
	if !strings.Contains(out, "Sealed gig") {
		t.Errorf("sealed cache did not round-trip:\n%s", out)
	}

	t.Setenv("CACHE_KEY", strings.Repeat("cd", 32))
	if _, err := runCLI(t, "gig", "list"); !errors.Is(err, storage.ErrSealOpen) {
		t.Errorf("expected ErrSealOpen with the wrong key, got %v", err)
	}
}

func TestRefreshRequiresUser(t *testing.T) {
	setupEnv(t)
	if _, err := runCLI(t, "refresh"); err == nil {
		t.Error("expected error without USER_ID")
	}
}

func TestExportBlockedForFreeUsers(t *testing.T) {
	setupEnv(t)
	if _, err := runCLI(t, "export"); !errors.Is(err, ErrUpgradeRequired) {
		t.Errorf("expected ErrUpgradeRequired, got %v", err)
	}
}

func TestBootstrapRestoresPremium(t *testing.T) {
	setupEnv(t)
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	ctx := context.Background()

	cache, closeCache, err := OpenCache(cfg, nil)
	if err == nil {
		err = entitlement.SavePremium(ctx, cache, true)
		closeCache()
	}
	if err != nil {
		t.Fatalf("seed premium: %v", err)
	}

	app, err := Bootstrap(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	defer app.Close()

	if !app.Store.IsPremium() {
		t.Error("premium flag not restored")
	}
	if app.Entitlements == nil || app.Entitlements.Follows() {
		t.Error("without a broker the watcher should only restore")
	}
	if _, ok := app.Store.QuarterlyTaxes(); !ok {
		t.Error("quarterly taxes should be available to premium users")
	}
}

func TestSignedInUserRejectsMemoryBackend(t *testing.T) {
	setupEnv(t)
	out := mustRun(t, "gig", "add", "Kept locally", "80")
	id := lastField(out)

	t.Setenv("USER_ID", "user-1")
	for _, args := range [][]string{
		{"refresh"},
		{"gig", "status", id, "completed"},
		{"watch", "--metrics-addr", ""},
	} {
		if _, err := runCLI(t, args...); err == nil || !strings.Contains(err.Error(), "memory backend") {
			t.Errorf("%v with USER_ID on the memory backend: err = %v", args, err)
		}
	}

	t.Setenv("USER_ID", "")
	if out := mustRun(t, "gig", "list"); !strings.Contains(out, "Kept locally") {
		t.Errorf("cached gig lost:\n%s", out)
	}
}

func TestBootstrapRemoteBackend(t *testing.T) {
	setupEnv(t)
	t.Setenv("USER_ID", "user-1")
	// Bootstrap does not validate; the memory backend stands in for postgres.
	cfg := config.Load()
	ctx := context.Background()

	app, err := Bootstrap(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	defer app.Close()

	gig, res := app.Store.AddGig(ctx, core.Gig{
		Title:  "Remote",
		Amount: core.Cents(1000),
		Date:   core.NewDate(2026, 10, 1),
		Status: core.GigCompleted,
	})
	if !res.Success {
		t.Fatalf("AddGig() = %+v", res)
	}
	if err := app.Store.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	snap := app.Store.Snapshot()
	if len(snap.Gigs) != 1 || snap.Gigs[0].ID != gig.ID {
		t.Errorf("refresh lost the remote gig: %+v", snap.Gigs)
	}
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		in      string
		want    core.LineItem
		wantErr bool
	}{
		{"Design=250", core.LineItem{Description: "Design", Amount: core.Cents(25000)}, false},
		{" Mixing = 12,50", core.LineItem{Description: "Mixing", Amount: core.Cents(1250)}, false},
		{"no amount", core.LineItem{}, true},
		{"=10", core.LineItem{}, true},
		{"Work=-1", core.LineItem{}, true},
	}
	for _, tt := range tests {
		got, err := parseItem(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseItem(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseItem(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestResultErr(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		res  store.Result
		want error
	}{
		{"success", store.Result{Success: true}, nil},
		{"upgrade", store.Result{RequiresUpgrade: true, Err: store.ErrLimitReached}, ErrUpgradeRequired},
		{"failure", store.Result{Err: boom}, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resultErr(tt.res); !errors.Is(got, tt.want) && !(got == nil && tt.want == nil) {
				t.Errorf("resultErr() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for a named file that does not exist")
	}
	if err := LoadEnvFile(""); err != nil {
		t.Errorf("default .env should be optional, got %v", err)
	}
}

func TestSetupLoggerWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "info", LogFormat: "json"}, &buf)
	logger.Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected JSON log line, got %q", buf.String())
	}
}

func TestRunDaemonFlushesOnShutdown(t *testing.T) {
	setupEnv(t)
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	cfg.MetricsAddr = ""

	app, err := Bootstrap(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if _, res := app.Store.AddClient(context.Background(), core.Client{Name: "Venue"}); !res.Success {
		t.Fatalf("AddClient() = %+v", res)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runDaemon(ctx, app) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runDaemon() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	app.Close()

	out := mustRun(t, "client", "list")
	if !strings.Contains(out, "Venue") {
		t.Errorf("client not persisted by the daemon:\n%s", out)
	}
}

func TestDaemonHandler(t *testing.T) {
	setupEnv(t)
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	app, err := Bootstrap(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	defer app.Close()

	h := daemonHandler(app)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"premium":false`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "gigledger_http_request_duration_seconds") {
		t.Error("metrics should include the healthz request")
	}
}

func TestDaemonHandlerBoundsRouteLabels(t *testing.T) {
	setupEnv(t)
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	app, err := Bootstrap(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	defer app.Close()
	h := daemonHandler(app)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scan/"+strconv.Itoa(i), nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("GET /scan/%d = %d, want 404", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if strings.Contains(body, "/scan/") {
		t.Error("raw request paths leaked into metric labels")
	}
	if !strings.Contains(body, `route="unmatched",le="+Inf"} 50`) {
		t.Errorf("expected 50 unmatched observations in:\n%s", body)
	}
}

func seedPremium(t *testing.T) {
	t.Helper()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("LoadAndValidateConfig() error = %v", err)
	}
	cache, closeCache, err := OpenCache(cfg, nil)
	if err != nil {
		t.Fatalf("OpenCache() error = %v", err)
	}
	defer closeCache()
	if err := entitlement.SavePremium(context.Background(), cache, true); err != nil {
		t.Fatalf("SavePremium() error = %v", err)
	}
}

func TestExportFilesForPremiumUsers(t *testing.T) {
	setupEnv(t)
	seedPremium(t)

	mustRun(t, "gig", "add", "Corporate event", "900", "--status", "completed")
	mustRun(t, "expense", "add", "Parking", "12")

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "ledger.csv")
	out := mustRun(t, "export", "--format", "csv", "-o", csvPath)
	if !strings.Contains(out, "Exported 1 gigs and 1 expenses") {
		t.Errorf("unexpected export output: %q", out)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.Contains(string(data), "Corporate event") || !strings.Contains(string(data), "Parking") {
		t.Errorf("csv missing records:\n%s", data)
	}

	pdfOut := mustRun(t, "export", "--format", "pdf")
	if !strings.HasPrefix(pdfOut, "%PDF-") {
		t.Error("pdf export to stdout did not produce a PDF")
	}

	if _, err := runCLI(t, "export", "--format", "xlsx"); err == nil {
		t.Error("expected error for unknown format")
	}
}
