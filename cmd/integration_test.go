package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const salesCSV = "Region,Units,Price\nNorth,10,1.5\nSouth,20,2.5\nNorth,30,3.5\nSouth,,4.5\n"

var initOnce sync.Once

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	initOnce.Do(func() { cobra.OnInitialize(loadConfig) })
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// workspace isolates HOME and writes sales.csv into it.
func workspace(t *testing.T) (home, csvPath string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	csvPath = filepath.Join(home, "sales.csv")
	if err := os.WriteFile(csvPath, []byte(salesCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return home, csvPath
}

func TestCLI_AnalyzeFormats(t *testing.T) {
	home, csvPath := workspace(t)

	out := runCmd(t, "analyze", csvPath, "--format", "summary")
	if !strings.Contains(out, "Rows: 4") || !strings.Contains(out, "Units") {
		t.Fatalf("unexpected summary output:\n%s", out)
	}

	out = runCmd(t, "analyze", csvPath, "--format", "stats", "--columns", "Units")
	if !strings.Contains(out, "Units") || strings.Contains(out, "Price") {
		t.Fatalf("stats should only cover Units:\n%s", out)
	}

	out = runCmd(t, "analyze", csvPath, "--format", "json")
	var rep map[string]any
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("json report: %v\n%s", err, out)
	}
	if rep["Name"] != "sales.csv" {
		t.Fatalf("unexpected report name: %v", rep["Name"])
	}

	mdPath := filepath.Join(home, "report.md")
	runCmd(t, "analyze", csvPath, "-o", mdPath)
	b, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(b), "[DATASET SUMMARY]") || !strings.Contains(string(b), "File: sales.csv") {
		t.Fatalf("unexpected markdown report:\n%s", b)
	}

	if _, err := execCmd(t, "analyze", csvPath, "--format", "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if _, err := execCmd(t, "analyze", csvPath, "--format", "stats", "--columns", "Nope"); err == nil {
		t.Fatal("expected error for unknown stats column")
	}
}

func TestCLI_CleanAndFilter(t *testing.T) {
	home, csvPath := workspace(t)

	cleaned := filepath.Join(home, "clean.csv")
	runCmd(t, "clean", csvPath, "--missing", "drop", "-o", cleaned)
	b, err := os.ReadFile(cleaned)
	if err != nil {
		t.Fatalf("read cleaned: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(b)), "\n"); len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d:\n%s", len(lines), b)
	}

	if _, err := execCmd(t, "clean", csvPath, "--missing", "guess"); err == nil {
		t.Fatal("expected error for unknown strategy")
	}

	out := runCmd(t, "filter", csvPath, "--where", "Region equals North")
	if strings.Contains(out, "South") || strings.Count(out, "North") != 2 {
		t.Fatalf("unexpected filter output:\n%s", out)
	}

	out = runCmd(t, "filter", csvPath, "--where", "Units in_range 15..40", "--columns", "Units")
	if strings.TrimSpace(out) != "Units\n20.0\n30.0" {
		t.Fatalf("unexpected range output:\n%q", out)
	}
}

func TestCLI_ChartEmitsPlotlyJSON(t *testing.T) {
	_, csvPath := workspace(t)

	out := runCmd(t, "chart", csvPath, "--kind", "bar", "--x", "Region", "--y", "Units")
	var fig map[string]any
	if err := json.Unmarshal([]byte(out), &fig); err != nil {
		t.Fatalf("figure json: %v\n%s", err, out)
	}
	if _, ok := fig["data"]; !ok {
		t.Fatalf("figure missing data: %v", fig)
	}
	if _, ok := fig["layout"]; !ok {
		t.Fatalf("figure missing layout: %v", fig)
	}

	if _, err := execCmd(t, "chart", csvPath, "--kind", "bar", "--x", "Missing", "--y", "Units"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestCLI_Dist(t *testing.T) {
	_, csvPath := workspace(t)

	out := runCmd(t, "dist", csvPath, "Region")
	if !strings.Contains(out, "North") || !strings.Contains(out, "50.00%") {
		t.Fatalf("unexpected categorical distribution:\n%s", out)
	}
	out = runCmd(t, "dist", csvPath, "--correlation")
	if !strings.Contains(out, "Units") || !strings.Contains(out, "Price") {
		t.Fatalf("unexpected correlation output:\n%s", out)
	}
	if _, err := execCmd(t, "dist", csvPath); err == nil {
		t.Fatal("expected error without a column")
	}
	if _, err := execCmd(t, "dist", csvPath, "Price", "--bins", "1000000000"); err == nil {
		t.Fatal("expected error for an oversized bin count")
	}
}

func TestCLI_AnalyzeBatchCollision(t *testing.T) {
	home, _ := workspace(t)
	for _, d := range []string{"d1", "d2"} {
		dir := filepath.Join(home, d)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "metrics.csv"), []byte("col1,col2\nA,1\nB,2\nC,3\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	outDir := filepath.Join(home, "reports")
	runCmd(t, "analyze-batch", filepath.Join(home, "d*", "metrics.csv"), "--out-dir", outDir, "--quiet")

	for _, name := range []string{"metrics.summary.md", "metrics__2.summary.md"} {
		b, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		if !strings.Contains(string(b), "Rows: 3") {
			t.Fatalf("unexpected summary in %s:\n%s", name, b)
		}
	}

	if _, err := execCmd(t, "analyze-batch", filepath.Join(home, "none", "*.csv")); err == nil {
		t.Fatal("expected error when no files match")
	}
}

func TestCLI_LibraryRoundTrip(t *testing.T) {
	_, csvPath := workspace(t)

	runCmd(t, "library", "save", csvPath, "--name", "sales")
	out := runCmd(t, "library", "list")
	if !strings.Contains(out, "sales") {
		t.Fatalf("saved dataset not listed:\n%s", out)
	}

	out = runCmd(t, "library", "export", "sales")
	if !strings.HasPrefix(out, "Region,Units,Price") {
		t.Fatalf("unexpected export:\n%s", out)
	}

	runCmd(t, "library", "remove", "sales")
	out = runCmd(t, "library", "list")
	if !strings.Contains(out, "No saved datasets") {
		t.Fatalf("expected empty library:\n%s", out)
	}
	if _, err := execCmd(t, "library", "remove", "sales"); err == nil {
		t.Fatal("expected error removing a missing entry")
	}
}

func TestCLI_ChatDryRunAndBudget(t *testing.T) {
	_, csvPath := workspace(t)

	out := runCmd(t, "chat", csvPath, "--dry-run", "--model", "gpt-4o")
	if !strings.Contains(out, "--dry-run") || !strings.Contains(out, "4 rows and 3 columns") || !strings.Contains(out, "Tokens: context") {
		t.Fatalf("unexpected dry-run output:\n%s", out)
	}
	if !strings.Contains(out, "North,10.0,1.5") {
		t.Fatalf("dry-run prompt should embed the CSV:\n%s", out)
	}

	if _, err := execCmd(t, "chat", csvPath, "--dry-run", "--model", "gpt-4o", "--budget-limit", "0.0000001"); err == nil {
		t.Fatal("expected budget limit error")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	workspace(t)

	runCmd(t, "config", "set", "max_tokens", "2048")
	runCmd(t, "config", "set", "api_key", "sk-or-1234567890")
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "max_tokens: 2048") {
		t.Fatalf("max_tokens not persisted:\n%s", out)
	}
	if strings.Contains(out, "sk-or-1234567890") || !strings.Contains(out, "sk-o****7890") {
		t.Fatalf("api key should be masked:\n%s", out)
	}
	if _, err := execCmd(t, "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}

	out = runCmd(t, "config", "keys")
	if !strings.Contains(out, "library_dir") {
		t.Fatalf("keys should list library_dir:\n%s", out)
	}
}

func TestCLI_ModelsSyncAndShow(t *testing.T) {
	home, _ := workspace(t)
	cat := filepath.Join(home, "models.yaml")
	body := "acme/tiny:\n  context_tokens: 4096\n  input_per_k: 0.001\n  output_per_k: 0.002\n"
	if err := os.WriteFile(cat, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	out := runCmd(t, "models", "sync", "--file", cat)
	if !strings.Contains(out, "Merged 1 models") {
		t.Fatalf("unexpected sync output:\n%s", out)
	}
	out = runCmd(t, "models", "show")
	if !strings.Contains(out, "acme/tiny") || !strings.Contains(out, "4096") {
		t.Fatalf("synced model not shown:\n%s", out)
	}
}
