package analysis_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dataloom/internal/analysis"
	"github.com/KaramelBytes/dataloom/internal/table"
)

func exampleTable() *table.Table {
	return table.MustNew(
		table.NewColumn("Category", table.KindObject, []any{"A", "A", "B", "C", "C", "C"}),
		table.NewColumn("Value", table.KindInt, []any{int64(10), int64(20), int64(5), int64(1), int64(2), int64(3)}),
	)
}

func gappyTable() *table.Table {
	nan := math.NaN()
	return table.MustNew(
		table.NewColumn("id", table.KindInt, []any{int64(1), int64(2), int64(3), int64(4)}),
		table.NewColumn("score", table.KindFloat, []any{1.5, nan, 3.5, 1.5}),
		table.NewColumn("label", table.KindObject, []any{"x", nil, "y", "x"}),
	)
}

func TestInferColumnTypes(t *testing.T) {
	names := make([]any, 12)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	tb := table.MustNew(
		table.NewColumn("i", table.KindInt, anyInts(1, 2, 3)),
		table.NewColumn("whole", table.KindFloat, []any{1.0, math.NaN(), 3.0}),
		table.NewColumn("f", table.KindFloat, []any{1.5, 2.0, 3.0}),
		table.NewColumn("d", table.KindDatetime, []any{time.Now(), nil, time.Now()}),
		table.NewColumn("cat", table.KindObject, []any{"a", "b", "a"}),
		table.NewColumn("gone", table.KindFloat, []any{math.NaN(), math.NaN(), math.NaN()}),
	)
	got := analysis.InferColumnTypes(tb)
	assert.Equal(t, analysis.ColumnTypeMap{
		"i":     analysis.TypeInteger,
		"whole": analysis.TypeInteger,
		"f":     analysis.TypeFloat,
		"d":     analysis.TypeDatetime,
		"cat":   analysis.TypeCategorical,
		"gone":  analysis.TypeInteger,
	}, got)
	assert.Equal(t, got, analysis.InferColumnTypes(tb), "inference must be deterministic")

	text := table.MustNew(table.NewColumn("t", table.KindObject, names[:10]))
	assert.Equal(t, analysis.TypeText, analysis.InferColumnTypes(text)["t"], "10 distinct values is text")
	nine := table.MustNew(table.NewColumn("t", table.KindObject, names[:9]))
	assert.Equal(t, analysis.TypeCategorical, analysis.InferColumnTypes(nine)["t"])

	assert.Empty(t, analysis.InferColumnTypes(nil))
}

func TestNumericLowCardinalityStaysNumeric(t *testing.T) {
	tb := table.MustNew(table.NewColumn("n", table.KindInt, anyInts(1, 1, 2, 2, 3)))
	assert.Equal(t, analysis.TypeInteger, analysis.InferColumnTypes(tb)["n"])
}

func TestSummarize(t *testing.T) {
	assert.Nil(t, analysis.Summarize(nil))
	assert.Nil(t, analysis.Summarize(table.MustNew(table.NewColumn("a", table.KindInt, []any{}))))

	tb := gappyTable()
	s := analysis.Summarize(tb)
	require.NotNil(t, s)
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 3, s.Columns)
	sum := 0
	for _, n := range s.MissingByColumn {
		sum += n
	}
	assert.Equal(t, s.MissingValues, sum)
	assert.Equal(t, 2, s.MissingValues)
	assert.Greater(t, s.MemoryUsageMB, 0.0)
	assert.Equal(t, s.MemoryUsageMB, analysis.Summarize(tb).MemoryUsageMB)
}

func TestComputeStatsExample(t *testing.T) {
	st, err := analysis.ComputeStats(exampleTable(), []string{"Value"})
	require.NoError(t, err)
	require.False(t, st.NoNumeric)
	v, ok := st.Get("Value")
	require.True(t, ok)
	assert.InDelta(t, 6.8333, float64(v.Mean), 1e-3)
	assert.Equal(t, 1.0, float64(v.Min))
	assert.Equal(t, 20.0, float64(v.Max))
	assert.Equal(t, 6, v.Count)
	assert.Equal(t, 0, v.Missing)
	assert.InDelta(t, 4.0, float64(v.Median), 1e-9)
	assert.InDelta(t, 2.25, float64(v.P25), 1e-9)
	assert.InDelta(t, 8.75, float64(v.P75), 1e-9)
}

func TestComputeStatsSingleValue(t *testing.T) {
	tb := table.MustNew(table.NewColumn("x", table.KindFloat, []any{7.0, math.NaN()}))
	st, err := analysis.ComputeStats(tb, nil)
	require.NoError(t, err)
	v, _ := st.Get("x")
	assert.Equal(t, 7.0, float64(v.Mean))
	assert.Equal(t, 7.0, float64(v.Median))
	assert.Equal(t, 7.0, float64(v.Min))
	assert.Equal(t, 7.0, float64(v.Max))
	assert.True(t, math.IsNaN(float64(v.Std)))
	assert.Equal(t, 1, v.Missing)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"std":null`)
}

func TestComputeStatsSentinelAndErrors(t *testing.T) {
	st, err := analysis.ComputeStats(exampleTable(), []string{"Category"})
	require.NoError(t, err)
	assert.True(t, st.NoNumeric)
	assert.Equal(t, analysis.NoNumericMessage, st.Message)

	_, err = analysis.ComputeStats(exampleTable(), []string{"nope"})
	assert.ErrorIs(t, err, analysis.ErrUnknownColumn)

	st, err = analysis.ComputeStats(nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, st)
}

func TestCleanDrop(t *testing.T) {
	in := gappyTable()
	out := analysis.Clean(in, analysis.CleaningOptions{HandleMissing: true, MissingStrategy: analysis.MissingDrop})
	assert.Equal(t, 3, out.NumRows())
	for _, c := range out.Columns() {
		assert.Zero(t, c.Missing(), c.Name)
	}
	assert.Equal(t, 4, in.NumRows(), "input must not change")
}

func TestCleanFillZero(t *testing.T) {
	in := gappyTable()
	out := analysis.Clean(in, analysis.CleaningOptions{HandleMissing: true, MissingStrategy: analysis.MissingFillZero})
	assert.Equal(t, in.NumRows(), out.NumRows())
	for _, c := range out.Columns() {
		assert.Zero(t, c.Missing(), c.Name)
	}
	label, _ := out.Column("label")
	assert.Equal(t, int64(0), label.Values[1])
	orig, _ := in.Column("label")
	assert.Nil(t, orig.Values[1])
}

func TestCleanFillMeanMedianMode(t *testing.T) {
	in := gappyTable()
	mean := analysis.Clean(in, analysis.CleaningOptions{HandleMissing: true, MissingStrategy: analysis.MissingFillMean})
	c, _ := mean.Column("score")
	assert.InDelta(t, 6.5/3, c.Values[1].(float64), 1e-9)
	l, _ := mean.Column("label")
	assert.Nil(t, l.Values[1], "text columns are untouched by fill_mean")

	median := analysis.Clean(in, analysis.CleaningOptions{HandleMissing: true, MissingStrategy: analysis.MissingFillMedian})
	c, _ = median.Column("score")
	assert.Equal(t, 1.5, c.Values[1])

	mode := analysis.Clean(in, analysis.CleaningOptions{HandleMissing: true, MissingStrategy: analysis.MissingFillMode})
	c, _ = mode.Column("score")
	assert.Equal(t, 1.5, c.Values[1])
	l, _ = mode.Column("label")
	assert.Equal(t, "x", l.Values[1])
}

func TestCleanFillSkipsColumnsWithoutValues(t *testing.T) {
	nan := math.NaN()
	in := table.MustNew(
		table.NewColumn("empty", table.KindFloat, []any{nan, nan, nan, nan, nan}),
		table.NewColumn("blank", table.KindObject, []any{nil, nil, nil, nil, nil}),
		table.NewColumn("tie", table.KindInt, []any{int64(2), int64(1), int64(1), int64(2), nil}),
	)
	strategies := []analysis.MissingStrategy{
		analysis.MissingFillMean,
		analysis.MissingFillMedian,
		analysis.MissingFillMode,
	}
	for _, s := range strategies {
		out := analysis.Clean(in, analysis.CleaningOptions{HandleMissing: true, MissingStrategy: s})
		empty, _ := out.Column("empty")
		assert.Equal(t, 5, empty.Missing(), "strategy %v", s)
		blank, _ := out.Column("blank")
		assert.Equal(t, 5, blank.Missing(), "strategy %v", s)
		tie, _ := out.Column("tie")
		assert.Zero(t, tie.Missing(), "strategy %v", s)
	}

	mode := analysis.Clean(in, analysis.CleaningOptions{HandleMissing: true, MissingStrategy: analysis.MissingFillMode})
	tie, _ := mode.Column("tie")
	assert.Equal(t, int64(1), tie.Values[4], "equally frequent values fill with the smallest")
	assert.Equal(t, table.KindInt, tie.Kind)
}

func TestCleanOrderDedupAfterFill(t *testing.T) {
	in := table.MustNew(
		table.NewColumn("a", table.KindObject, []any{"x", "x", nil}),
		table.NewColumn("b", table.KindInt, anyInts(1, 1, 1)),
	)
	out := analysis.Clean(in, analysis.CleaningOptions{
		HandleMissing:    true,
		MissingStrategy:  analysis.MissingFillMode,
		RemoveDuplicates: true,
	})
	assert.Equal(t, 1, out.NumRows())
}

func TestCleanDatetimeCoercion(t *testing.T) {
	in := table.MustNew(
		table.NewColumn("when", table.KindObject, []any{"2024-01-02", nil, "2024-03-04"}),
		table.NewColumn("bad", table.KindObject, []any{"2024-01-02", "not a date", "x"}),
	)
	out := analysis.Clean(in, analysis.CleaningOptions{DatetimeColumns: []string{"when", "bad", "absent"}})
	w, _ := out.Column("when")
	assert.Equal(t, table.KindDatetime, w.Kind)
	assert.Equal(t, 2024, w.Values[0].(time.Time).Year())
	b, _ := out.Column("bad")
	assert.Equal(t, table.KindObject, b.Kind)
	assert.Equal(t, "not a date", b.Values[1])
}

func TestParseMissingStrategy(t *testing.T) {
	s, err := analysis.ParseMissingStrategy("fill_median")
	require.NoError(t, err)
	assert.Equal(t, analysis.MissingFillMedian, s)
	_, err = analysis.ParseMissingStrategy("guess")
	assert.Error(t, err)

	var opt analysis.CleaningOptions
	require.NoError(t, json.Unmarshal([]byte(`{"handle_missing":true,"missing_strategy":"fill_zero"}`), &opt))
	assert.Equal(t, analysis.MissingFillZero, opt.MissingStrategy)
}

func TestFilterExample(t *testing.T) {
	out := analysis.Filter(exampleTable(), analysis.FilterSet{
		{Column: "Value", Operator: analysis.OpGreaterThan, Value: 5},
	})
	require.Equal(t, 2, out.NumRows())
	c, _ := out.Column("Value")
	assert.ElementsMatch(t, []any{int64(10), int64(20)}, c.Values)
}

func TestFilterIdentityAndSkips(t *testing.T) {
	in := exampleTable()
	assert.True(t, analysis.Filter(in, nil).Equal(in))
	fs := analysis.FilterSet{
		{Column: "", Operator: analysis.OpEquals, Value: "A"},
		{Column: "Category", Operator: analysis.OpUnknown, Value: "A"},
		{Column: "Category", Operator: analysis.OpEquals, Value: nil},
		{Column: "Dropped", Operator: analysis.OpEquals, Value: "A"},
		{Column: "Value", Operator: analysis.OpInRange, Value: []any{1}},
	}
	assert.True(t, analysis.Filter(in, fs).Equal(in))
	assert.Len(t, fs.Check(in), 5)
}

func TestFilterOperators(t *testing.T) {
	in := exampleTable()
	cases := []struct {
		name string
		f    analysis.Filter
		rows int
	}{
		{"equals text", analysis.Filter{Column: "Category", Operator: analysis.OpEquals, Value: "C"}, 3},
		{"not equals", analysis.Filter{Column: "Category", Operator: analysis.OpNotEquals, Value: "C"}, 3},
		{"equals number", analysis.Filter{Column: "Value", Operator: analysis.OpEquals, Value: 10.0}, 1},
		{"less than", analysis.Filter{Column: "Value", Operator: analysis.OpLessThan, Value: 3}, 2},
		{"contains ci", analysis.Filter{Column: "Category", Operator: analysis.OpContains, Value: "a"}, 2},
		{"starts with", analysis.Filter{Column: "Value", Operator: analysis.OpStartsWith, Value: "2"}, 2},
		{"ends with", analysis.Filter{Column: "Value", Operator: analysis.OpEndsWith, Value: "0"}, 2},
		{"in range", analysis.Filter{Column: "Value", Operator: analysis.OpInRange, Value: []any{2, 10}}, 4},
		{"text number mismatch", analysis.Filter{Column: "Category", Operator: analysis.OpGreaterThan, Value: 1}, 0},
		{"numeric string", analysis.Filter{Column: "Value", Operator: analysis.OpGreaterThan, Value: "5"}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := analysis.Filter(in, analysis.FilterSet{tc.f})
			assert.Equal(t, tc.rows, out.NumRows())
		})
	}
}

func TestFilterMissingCells(t *testing.T) {
	in := gappyTable()
	eq := analysis.Filter(in, analysis.FilterSet{{Column: "label", Operator: analysis.OpNotEquals, Value: "x"}})
	assert.Equal(t, 2, eq.NumRows(), "missing cells are not equal to anything")
	ct := analysis.Filter(in, analysis.FilterSet{{Column: "label", Operator: analysis.OpContains, Value: ""}})
	assert.Equal(t, 3, ct.NumRows(), "missing cells never match text operators")
}

func TestFilterInRangeIdempotent(t *testing.T) {
	fs := analysis.FilterSet{{Column: "Value", Operator: analysis.OpInRange, Value: []any{2, 10}}}
	once := analysis.Filter(exampleTable(), fs)
	twice := analysis.Filter(once, fs)
	assert.True(t, once.Equal(twice))
}

func TestFilterJSONDecoding(t *testing.T) {
	var fs analysis.FilterSet
	require.NoError(t, json.Unmarshal([]byte(`[{"column":"Value","operator":"in_range","value":[1,5]},{"column":"Value","operator":"bogus","value":1}]`), &fs))
	assert.Equal(t, analysis.OpInRange, fs[0].Operator)
	assert.Equal(t, analysis.OpUnknown, fs[1].Operator)
	assert.Equal(t, 4, analysis.Filter(exampleTable(), fs).NumRows())
}

func TestCategoricalDistributionExample(t *testing.T) {
	got := analysis.CategoricalDistribution(exampleTable(), "Category")
	assert.Equal(t, []analysis.CategoryCount{
		{Value: "C", Count: 3, Percentage: 50},
		{Value: "A", Count: 2, Percentage: 33.33},
		{Value: "B", Count: 1, Percentage: 16.67},
	}, got)
	assert.Nil(t, analysis.CategoricalDistribution(exampleTable(), "nope"))
}

func TestNumericDistributionExample(t *testing.T) {
	h := analysis.NumericDistribution(exampleTable(), "Value", 5)
	require.NotNil(t, h)
	assert.Equal(t, []int{3, 1, 1, 0, 1}, h.Counts)
	assert.Equal(t, "1.00-4.80", h.Labels[0])
	assert.Equal(t, "16.20-20.00", h.Labels[4])
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	assert.Equal(t, 6, total)

	assert.Nil(t, analysis.NumericDistribution(exampleTable(), "Category", 5))
	assert.Len(t, analysis.NumericDistribution(exampleTable(), "Value", 0).Counts, analysis.DefaultBins)
}

func TestNumericDistributionClampsBins(t *testing.T) {
	h := analysis.NumericDistribution(exampleTable(), "Value", 1_000_000_000)
	require.NotNil(t, h)
	assert.Len(t, h.Counts, analysis.MaxBins)
	assert.Len(t, h.Edges, analysis.MaxBins+1)
}

func TestNumericDistributionConstantColumn(t *testing.T) {
	tb := table.MustNew(table.NewColumn("k", table.KindInt, anyInts(4, 4, 4)))
	h := analysis.NumericDistribution(tb, "k", 2)
	require.NotNil(t, h)
	assert.Equal(t, []string{"3.50-4.00", "4.00-4.50"}, h.Labels)
	assert.Equal(t, []int{0, 3}, h.Counts)
}

func TestCorrelation(t *testing.T) {
	tb := table.MustNew(
		table.NewColumn("x", table.KindInt, anyInts(1, 2, 3, 4)),
		table.NewColumn("y", table.KindInt, anyInts(2, 4, 6, 8)),
		table.NewColumn("z", table.KindInt, anyInts(4, 3, 2, 1)),
	)
	m, err := analysis.Correlation(tb, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(m.Values[0][1]), 1e-9)
	assert.InDelta(t, -1.0, float64(m.Values[0][2]), 1e-9)

	_, err = analysis.Correlation(exampleTable(), nil)
	assert.ErrorIs(t, err, analysis.ErrNotEnoughNumeric)
}

func TestProfileAndSearch(t *testing.T) {
	prof := analysis.ProfileColumns(gappyTable())
	require.Len(t, prof, 3)
	assert.Equal(t, "score", prof[1].Name)
	assert.Equal(t, 1, prof[1].Null)
	assert.Equal(t, 25.0, prof[1].MissingPercent)

	found := analysis.Search(exampleTable(), "c")
	assert.Equal(t, 3, found.NumRows())
	assert.Equal(t, 6, analysis.Search(exampleTable(), "  ").NumRows())
}

func TestMinMax(t *testing.T) {
	lo, hi := analysis.MinMax(exampleTable(), "Value")
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 20.0, hi)
	lo, hi = analysis.MinMax(exampleTable(), "Category")
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 100.0, hi)
}

func TestReportMarkdown(t *testing.T) {
	rep := analysis.BuildReport("sales.csv", exampleTable(), analysis.ReportOptions{GroupBy: []string{"Category"}})
	md := rep.Markdown()
	assert.Contains(t, md, "File: sales.csv")
	assert.Contains(t, md, "- Value: integer")
	assert.Contains(t, md, "[GROUP-BY SUMMARY]")
	assert.Contains(t, md, "Category=C (n=3)")
	assert.Contains(t, md, "[HEAD AND SAMPLE ROWS]")
}

func anyInts(vals ...int64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
