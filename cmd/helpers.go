package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/ai"
	"github.com/KaramelBytes/dataloom/internal/analysis"
	cfgpkg "github.com/KaramelBytes/dataloom/internal/config"
	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/table"
	"github.com/KaramelBytes/dataloom/internal/utils"
)

// loadFlags are the ingestion flags shared by every command that reads a file.
type loadFlags struct {
	Delimiter  string
	Decimal    string
	Thousands  string
	SheetName  string
	SheetIndex int
	SampleSize int
	Seed       int64
	ParseDates bool
}

func (lf *loadFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&lf.Delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab' (auto from extension if omitted)")
	f.StringVar(&lf.Decimal, "decimal", "", "decimal separator for numbers: '.'|'comma'")
	f.StringVar(&lf.Thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	f.StringVar(&lf.SheetName, "sheet-name", "", "XLSX: sheet name to load")
	f.IntVar(&lf.SheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.IntVar(&lf.SampleSize, "sample-size", 0, "randomly sample this many rows (0 = config sample_size)")
	f.Int64Var(&lf.Seed, "seed", 0, "sampling seed (0 = config sample_seed)")
	f.BoolVar(&lf.ParseDates, "parse-dates", false, "parse date-like text columns as datetimes")
}

func (lf *loadFlags) options(c *cfgpkg.Global) (loader.Options, error) {
	opt := loader.DefaultOptions()
	if c != nil {
		opt.SampleSize = c.SampleSize
		if c.SampleSeed != 0 {
			opt.Seed = c.SampleSeed
		}
	}
	if lf.SampleSize > 0 {
		opt.SampleSize = lf.SampleSize
	}
	if lf.Seed != 0 {
		opt.Seed = lf.Seed
	}
	switch strings.ToLower(strings.TrimSpace(lf.Delimiter)) {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab", `\t`:
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", lf.Delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(lf.Decimal)) {
	case "":
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", lf.Decimal)
	}
	switch strings.ToLower(lf.Thousands) {
	case "":
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", lf.Thousands)
	}
	opt.SheetName = lf.SheetName
	opt.SheetIndex = lf.SheetIndex
	opt.ParseDates = lf.ParseDates
	return opt, nil
}

// loadTable reads path with the shared flags and reports sampling.
func loadTable(path string, lf *loadFlags) (*table.Table, error) {
	opt, err := lf.options(cfg)
	if err != nil {
		return nil, err
	}
	t, err := loader.LoadFile(path, opt)
	if err != nil {
		return nil, err
	}
	if ok, reason := table.Validate(t); !ok {
		return nil, errors.New(reason)
	}
	if log != nil {
		log.WithField("file", path).WithField("rows", t.NumRows()).WithField("cols", t.NumCols()).Debug("table loaded")
	}
	return t, nil
}

// writeOutput writes body to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, body []byte, what string) error {
	if path == "" {
		_, err := w.Write(body)
		return err
	}
	if err := utils.SafeWriteFile(path, body); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %s to %s\n", what, path)
	return nil
}

func writeTable(w io.Writer, path string, t *table.Table) error {
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, t); err != nil {
		return err
	}
	return writeOutput(w, path, buf.Bytes(), "CSV")
}

func newTextTable(w io.Writer, header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	return tw
}

// renderPreview prints the first n rows as a text table.
func renderPreview(w io.Writer, t *table.Table, n int) {
	tw := newTextTable(w, t.Names())
	for i := 0; i < t.NumRows() && i < n; i++ {
		row := t.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = table.FormatValue(v)
		}
		tw.Append(cells)
	}
	tw.Render()
	if t.NumRows() > n {
		fmt.Fprintf(w, "... %d more rows\n", t.NumRows()-n)
	}
}

func fmtNumber(n analysis.Number) string {
	if !n.Defined() {
		return "-"
	}
	return fmt.Sprintf("%.4g", float64(n))
}

// renderStats prints descriptive statistics, one row per column.
func renderStats(w io.Writer, st *analysis.StatsTable) {
	if st == nil {
		fmt.Fprintln(w, "No data loaded")
		return
	}
	if st.NoNumeric {
		fmt.Fprintln(w, st.Message)
		return
	}
	tw := newTextTable(w, []string{"column", "count", "missing", "mean", "std", "min", "p25", "median", "p75", "max"})
	tw.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, c := range st.Columns {
		tw.Append([]string{
			c.Column, fmt.Sprint(c.Count), fmt.Sprint(c.Missing),
			fmtNumber(c.Mean), fmtNumber(c.Std), fmtNumber(c.Min),
			fmtNumber(c.P25), fmtNumber(c.Median), fmtNumber(c.P75), fmtNumber(c.Max),
		})
	}
	tw.Render()
}

func renderSummary(w io.Writer, s *analysis.Summary, types analysis.ColumnTypeMap, names []string) {
	fmt.Fprintf(w, "Rows: %d  Columns: %d  Missing: %d  Memory: %.2f MB\n\n", s.Rows, s.Columns, s.MissingValues, s.MemoryUsageMB)
	tw := newTextTable(w, []string{"column", "type", "missing"})
	for _, n := range names {
		tw.Append([]string{n, string(types[n]), fmt.Sprint(s.MissingByColumn[n])})
	}
	tw.Render()
}

func selectModel(c *cfgpkg.Global, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c != nil && c.DefaultModel != "" {
		return c.DefaultModel
	}
	return "gpt-4o"
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// buildRuntime resolves the provider (flag, then config) and builds its runtime.
func buildRuntime(c *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	if c == nil {
		c = &cfgpkg.Global{}
	}
	name := opts.ProviderFlag
	if name == "" {
		name = c.DefaultProvider
	}
	name = ai.NormalizeProvider(name)
	rc := c.RuntimeConfig(name)
	if h := strings.TrimSpace(opts.OllamaHost); h != "" {
		rc.Host = h
	}
	rt, ok := ai.GetRuntime(name, rc)
	if !ok {
		return nil, name, fmt.Errorf("provider not supported: %s (use %s)", name, strings.Join(ai.Providers(), "|"))
	}
	return rt, name, nil
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// explainError adds a user-facing hint for the common provider failures.
func explainError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (DATALOOM_OLLAMA_HOST or config 'ollama_host'): %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		if provider == ai.ProviderOpenAI {
			return fmt.Errorf("authentication failed: set OPENAI_API_KEY or 'dataloom config set openai_api_key ...': %w", err)
		}
		return fmt.Errorf("authentication failed: set OPENROUTER_API_KEY or 'dataloom config set api_key ...': %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model: %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name with 'dataloom models show': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller --context-budget or --max-tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	}
	return fmt.Errorf("chat failed: %w", err)
}

// streamTo returns an onDelta callback printing chunks to w, or nil when
// streaming is off.
func streamTo(w io.Writer, enabled bool) func(string) {
	if !enabled {
		return nil
	}
	return func(d string) { fmt.Fprint(w, d) }
}

func withTimeout(ctx context.Context, sec int) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if sec <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(sec)*time.Second)
}
