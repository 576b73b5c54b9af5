package bulk

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/brokerload/lenderdesk/internal/lender"
	"github.com/brokerload/lenderdesk/internal/store"
)

func seedLenders(t *testing.T, repo lender.Repository, n int) []*lender.Lender {
	t.Helper()
	out := make([]*lender.Lender, 0, n)
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("%c%c%c", 'A'+i%26, 'B'+i%25, 'C'+i%24)
		rec, err := repo.Create(context.Background(), lender.CreateInput{
			Name:                  fmt.Sprintf("Lender %d", i),
			Code:                  code,
			UpfrontCommissionRate: float64(i) + 0.5,
			TrialCommissionRate:   float64(i) * 2,
			Active:                i%2 == 0,
		})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestExport_EmptyStore(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter(store.NewMemoryLenderStore()).WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty store should produce an empty stream, got %q", buf.String())
	}
}

func TestExport_HeaderPlusRows(t *testing.T) {
	repo := store.NewMemoryLenderStore()
	seeded := seedLenders(t, repo, 4)

	var buf bytes.Buffer
	if err := NewExporter(repo).WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != len(seeded)+1 {
		t.Fatalf("output has %d lines, want %d (header + rows)", len(lines), len(seeded)+1)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("re-parse output: %v", err)
	}

	wantHeader := seeded[0].CSVHeader()
	if len(records[0]) != len(wantHeader) {
		t.Fatalf("header has %d fields, want %d", len(records[0]), len(wantHeader))
	}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], col)
		}
	}

	// Rows come back in creation order.
	for i, rec := range seeded {
		row := records[i+1]
		if row[1] != rec.Name || row[2] != rec.Code {
			t.Errorf("row %d = %v, want record %q/%q", i, row, rec.Name, rec.Code)
		}
	}
}

func TestExport_FileName(t *testing.T) {
	ts := time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC)
	got := NewExporter(store.NewMemoryLenderStore()).FileName(ts)
	want := "bulk_download_2026-08-31T14_30_05.csv"
	if got != want {
		t.Errorf("FileName = %q, want %q", got, want)
	}
}

func TestExport_StreamsIncrementally(t *testing.T) {
	repo := store.NewMemoryLenderStore()
	seedLenders(t, repo, 3)

	w := &writeCounter{}
	if err := NewExporter(repo).WriteCSV(context.Background(), w); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	// Header and each record are flushed individually.
	if w.writes < 4 {
		t.Errorf("writer saw %d writes, want at least one per row plus header", w.writes)
	}
}

type writeCounter struct {
	writes int
}

func (w *writeCounter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w.writes++
	}
	return len(p), nil
}

func TestExportImport_RoundTrip(t *testing.T) {
	source := store.NewMemoryLenderStore()
	seeded := seedLenders(t, source, 3)

	var buf bytes.Buffer
	if err := NewExporter(source).WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	// Re-import into a fresh store: no code collisions.
	target := store.NewMemoryLenderStore()
	result := NewImporter(target).Run(context.Background(), buf.Bytes())
	if got := result.Status(); got != http.StatusOK {
		t.Fatalf("re-import Status() = %d, want 200 (%v)", got, result.ItemsNotAdded)
	}
	if len(result.ItemsAdded) != len(seeded) {
		t.Fatalf("re-import added %d rows, want %d", len(result.ItemsAdded), len(seeded))
	}

	for _, rec := range seeded {
		got, err := target.GetByCode(context.Background(), rec.Code)
		if err != nil {
			t.Errorf("round-trip lost record %q: %v", rec.Code, err)
			continue
		}
		if got.Name != rec.Name ||
			got.UpfrontCommissionRate != rec.UpfrontCommissionRate ||
			got.TrialCommissionRate != rec.TrialCommissionRate ||
			got.Active != rec.Active {
			t.Errorf("round-trip of %q = %+v, want equivalent of %+v", rec.Code, got, rec)
		}
	}
}
