package bulk

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/brokerload/lenderdesk/internal/lender"
)

// fileTimeLayout formats the download timestamp embedded in the filename.
// Colons are not filesystem-safe on every client, hence the underscores.
const fileTimeLayout = "2006-01-02T15_04_05"

// Exporter streams the full lender table as CSV.
type Exporter struct {
	repo lender.Repository
}

// NewExporter creates an export engine over the given repository.
func NewExporter(repo lender.Repository) *Exporter {
	return &Exporter{repo: repo}
}

// FileName returns the download filename advertised to the client,
// embedding the generation timestamp so repeated downloads never collide.
func (e *Exporter) FileName(now time.Time) string {
	return fmt.Sprintf("bulk_download_%s.csv", now.Format(fileTimeLayout))
}

// WriteCSV streams every lender record to w in creation order. The header
// is derived from a single record fetched before streaming begins, which
// bounds the race with concurrent writes to "header reflects some
// historical schema state". An empty store produces an empty stream with
// no header row. Each row is encoded and flushed as it is produced; the
// encoded output is never held in memory as a whole.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) error {
	first, err := e.repo.First(ctx)
	if errors.Is(err, lender.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch header template: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(first.CSVHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	err = e.repo.ForEachOrderedByCreation(ctx, func(l *lender.Lender) error {
		if err := cw.Write(l.CSVRecord()); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("stream records: %w", err)
	}
	return nil
}
