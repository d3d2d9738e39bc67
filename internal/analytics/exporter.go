package analytics

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"

	"sealdeal-backend/internal/shared/telemetry"
)

// Exporter appends rows to the warehouse.
type Exporter interface {
	Export(ctx context.Context, rows []Row) error
}

// Putter is the subset of *bigquery.Inserter used for export.
type Putter interface {
	Put(ctx context.Context, src interface{}) error
}

// BigQueryExporter streams rows into one table.
type BigQueryExporter struct {
	inserter Putter
	table    string
}

// NewBigQueryExporter targets dataset.table through client.
func NewBigQueryExporter(client *bigquery.Client, dataset, table string) *BigQueryExporter {
	return NewExporterWithPutter(client.Dataset(dataset).Table(table).Inserter(), dataset+"."+table)
}

func NewExporterWithPutter(p Putter, table string) *BigQueryExporter {
	return &BigQueryExporter{inserter: p, table: table}
}

func (e *BigQueryExporter) Export(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	src := make([]*Row, 0, len(rows))
	for i := range rows {
		src = append(src, &rows[i])
	}
	if err := e.inserter.Put(ctx, src); err != nil {
		var multi bigquery.PutMultiError
		if errors.As(err, &multi) {
			return fmt.Errorf("bigquery insert into %s: %d rows rejected: %w", e.table, len(multi), err)
		}
		return fmt.Errorf("bigquery insert into %s: %w", e.table, err)
	}
	return nil
}

// LogExporter records exports in the log only. Used when no warehouse is configured.
type LogExporter struct{}

func (LogExporter) Export(ctx context.Context, rows []Row) error {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AnalysisID)
	}
	telemetry.Info("analytics.export_skipped", map[string]any{"analysis_ids": ids, "reason": "no warehouse configured"})
	return nil
}
