package loader_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/table"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadCSVInfersKinds(t *testing.T) {
	p := writeFile(t, "data.csv", "id,price,when,label,empty\n1,2.5,2024-01-05,a,\n2,,2024-02-06,b,\n3,4,2024-03-07,,\n")
	opt := loader.DefaultOptions()
	opt.ParseDates = true
	tb, err := loader.LoadFile(p, opt)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tb.NumRows() != 3 || tb.NumCols() != 5 {
		t.Fatalf("shape %dx%d", tb.NumRows(), tb.NumCols())
	}
	want := map[string]table.Kind{
		"id":    table.KindInt,
		"price": table.KindFloat,
		"when":  table.KindDatetime,
		"label": table.KindObject,
		"empty": table.KindFloat,
	}
	for name, k := range want {
		c, ok := tb.Column(name)
		if !ok {
			t.Fatalf("missing column %s", name)
		}
		if c.Kind != k {
			t.Fatalf("%s: kind %v want %v", name, c.Kind, k)
		}
	}
	price, _ := tb.Column("price")
	if f, ok := price.Values[1].(float64); !ok || !math.IsNaN(f) {
		t.Fatalf("expected NaN for missing price, got %v", price.Values[1])
	}
	label, _ := tb.Column("label")
	if label.Values[2] != nil {
		t.Fatalf("expected nil for missing label, got %v", label.Values[2])
	}
}

func TestLoadCSVWithoutDateParsingKeepsText(t *testing.T) {
	p := writeFile(t, "d.csv", "when\n2024-01-05\n2024-02-06\n")
	tb, err := loader.LoadFile(p, loader.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c := tb.ColumnAt(0); c.Kind != table.KindObject {
		t.Fatalf("kind %v", c.Kind)
	}
}

func TestHeadersAreDeduplicated(t *testing.T) {
	p := writeFile(t, "h.csv", "a,a,,b\n1,2,3,4\n")
	tb, err := loader.LoadFile(p, loader.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := strings.Join(tb.Names(), "|")
	if got != "a|a.1|Unnamed: 2|b" {
		t.Fatalf("names: %s", got)
	}
}

func TestShortRowsArePadded(t *testing.T) {
	p := writeFile(t, "s.csv", "a,b,c\n1,2\n3,4,5\n")
	tb, err := loader.LoadFile(p, loader.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c, _ := tb.Column("c")
	if c.Missing() != 1 {
		t.Fatalf("expected one missing cell, got %d", c.Missing())
	}
}

func TestTSVAndLocaleNumbers(t *testing.T) {
	p := writeFile(t, "x.tsv", "name\tamount\nx\t1.234,5\ny\t2.000,25\n")
	tb, err := loader.LoadFile(p, loader.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c, _ := tb.Column("amount")
	if c.Kind != table.KindFloat {
		t.Fatalf("kind %v", c.Kind)
	}
	if v := c.Values[0].(float64); math.Abs(v-1234.5) > 1e-9 {
		t.Fatalf("amount=%v", v)
	}
}

func TestSamplingIsDeterministic(t *testing.T) {
	var b strings.Builder
	b.WriteString("n\n")
	for i := 0; i < 100; i++ {
		b.WriteString(strings.Repeat("1", 1+i%3))
		b.WriteString("\n")
	}
	p := writeFile(t, "big.csv", b.String())
	opt := loader.DefaultOptions()
	opt.SampleSize = 10
	a, err := loader.LoadFile(p, opt)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	c, err := loader.LoadFile(p, opt)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a.NumRows() != 10 {
		t.Fatalf("rows=%d", a.NumRows())
	}
	if !a.Equal(c) {
		t.Fatalf("sampling not deterministic")
	}
}

func TestUnsupportedExtension(t *testing.T) {
	p := writeFile(t, "doc.pdf", "x")
	_, err := loader.LoadFile(p, loader.DefaultOptions())
	if !errors.Is(err, loader.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestLoadXLSXSheetSelection(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"Category", "Value"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]any{"A", 10}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatalf("sheet: %v", err)
	}
	if err := f.SetSheetRow("Other", "A1", &[]any{"x"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := f.SetSheetRow("Other", "A2", &[]any{"y"}); err != nil {
		t.Fatalf("row: %v", err)
	}
	p := filepath.Join(t.TempDir(), "book.xlsx")
	if err := f.SaveAs(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	tb, err := loader.LoadFile(p, loader.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(tb.Names(), ","); got != "Category,Value" {
		t.Fatalf("names: %s", got)
	}
	if c, _ := tb.Column("Value"); c.Kind != table.KindInt {
		t.Fatalf("Value kind %v", c.Kind)
	}

	opt := loader.DefaultOptions()
	opt.SheetName = "other"
	tb, err = loader.LoadFile(p, opt)
	if err != nil {
		t.Fatalf("load other: %v", err)
	}
	if tb.Names()[0] != "x" {
		t.Fatalf("wrong sheet: %v", tb.Names())
	}

	opt.SheetName = "missing"
	if _, err := loader.LoadFile(p, opt); err == nil || !strings.Contains(err.Error(), "Available sheets") {
		t.Fatalf("expected sheet not found error, got %v", err)
	}
}

func TestSampleTable(t *testing.T) {
	tb := loader.SampleTable()
	if tb.NumCols() != 5 || tb.NumRows() != 0 {
		t.Fatalf("shape %dx%d", tb.NumRows(), tb.NumCols())
	}
	if ok, _ := table.Validate(tb); ok {
		t.Fatalf("placeholder should not validate")
	}
}
