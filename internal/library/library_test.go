package library_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KaramelBytes/dataloom/internal/library"
	"github.com/KaramelBytes/dataloom/internal/loader"
	"github.com/KaramelBytes/dataloom/internal/table"
)

func sample() *table.Table {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	return table.MustNew(
		table.NewColumn("Date", table.KindDatetime, []any{day(1), day(2), day(3)}),
		table.NewColumn("Region", table.KindObject, []any{"North", "South", nil}),
		table.NewColumn("Units", table.KindInt, []any{int64(3), int64(4), int64(5)}),
		table.NewColumn("Price", table.KindFloat, []any{1.5, 2.0, 2.5}),
	)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	lib, err := library.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e, created, err := lib.Save("sales q1.csv", sample())
	if err != nil || !created {
		t.Fatalf("save: created=%v err=%v", created, err)
	}
	if e.Rows != 3 || e.Cols != 4 {
		t.Fatalf("unexpected entry shape: %+v", e)
	}
	if _, err := os.Stat(filepath.Join(lib.Dir(), e.File)); err != nil {
		t.Fatalf("data file missing: %v", err)
	}

	got, _, err := lib.Load(e.ID, loader.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]table.Kind{"Date": table.KindDatetime, "Region": table.KindObject, "Units": table.KindInt, "Price": table.KindFloat}
	for name, kind := range want {
		c, ok := got.Column(name)
		if !ok || c.Kind != kind {
			t.Fatalf("column %s: got %+v want kind %s", name, c, kind)
		}
	}
	region, _ := got.Column("Region")
	if region.Values[2] != nil {
		t.Fatalf("missing cell not preserved: %v", region.Values[2])
	}
}

func TestSaveIsIdempotentByName(t *testing.T) {
	lib, _ := library.Open(t.TempDir())
	first, _, err := lib.Save("a.csv", sample())
	if err != nil {
		t.Fatal(err)
	}
	again, created, err := lib.Save("a.csv", sample())
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected existing entry, got created=%v %+v", created, again)
	}
	list, _ := lib.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
}

func TestRemoveAndNotFound(t *testing.T) {
	lib, _ := library.Open(t.TempDir())
	e, _, _ := lib.Save("a.csv", sample())
	if _, _, err := lib.Save("b.csv", sample()); err != nil {
		t.Fatal(err)
	}
	if err := lib.Remove("a.csv"); err != nil {
		t.Fatalf("remove by name: %v", err)
	}
	if _, err := os.Stat(filepath.Join(lib.Dir(), e.File)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("data file not removed: %v", err)
	}
	if _, err := lib.Get(e.ID); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := lib.Remove("nope"); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, _ := lib.List()
	if len(list) != 1 || list[0].Name != "b.csv" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestSaveRejectsEmpty(t *testing.T) {
	lib, _ := library.Open(t.TempDir())
	if _, _, err := lib.Save("x", nil); err == nil {
		t.Fatalf("expected error for nil table")
	}
}
