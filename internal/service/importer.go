package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LogiStackDev/access-onboard-flow/internal/domain"
	"go.uber.org/zap"
)

const defaultImportBatchSize = 500

// RecordWriter is the write side of the CPV reference table.
type RecordWriter interface {
	UpsertRecords(ctx context.Context, records []domain.ClassificationRecord) (int, error)
}

// ObjectSource opens a stored dataset.
type ObjectSource interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

type ImportMetrics interface {
	RecordImportedRecords(n int)
}

// ImporterOptions configures a CPVImporter.
type ImporterOptions struct {
	BatchSize int
	Logger    *zap.Logger
	Metrics   ImportMetrics
	// OnComplete runs after a successful import, e.g. to flush search caches.
	OnComplete func()
}

// ImportResult summarises one dataset import.
type ImportResult struct {
	Rows     int
	Imported int
	Skipped  int
}

// CPVImporter loads CODE,EN,FR,DE,NL CSV datasets into the record store.
type CPVImporter struct {
	writer RecordWriter
	opts   ImporterOptions
}

func NewCPVImporter(writer RecordWriter, opts ImporterOptions) *CPVImporter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultImportBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &CPVImporter{writer: writer, opts: opts}
}

var importColumns = []string{"code", "en", "fr", "de", "nl"}

// Import reads a CSV dataset with a header row. Only the CODE column is
// mandatory; columns are matched case-insensitively and extra ones ignored.
// Rows with an empty code are skipped.
func (i *CPVImporter) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalidDataset("dataset is empty", err)
		}
		return nil, invalidDataset("failed to read header", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	batch := make([]domain.ClassificationRecord, 0, i.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := i.writer.UpsertRecords(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to write cpv records: %w", err)
		}
		result.Imported += n
		batch = make([]domain.ClassificationRecord, 0, i.opts.BatchSize)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidDataset(fmt.Sprintf("row %d", result.Rows+2), err)
		}
		result.Rows++

		rec := domain.NewClassificationRecord(
			field(row, index["code"]),
			field(row, index["en"]),
			field(row, index["fr"]),
			field(row, index["de"]),
			field(row, index["nl"]),
		)
		if !rec.HasCode() {
			result.Skipped++
			continue
		}
		batch = append(batch, rec)
		if len(batch) == i.opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if i.opts.Metrics != nil {
		i.opts.Metrics.RecordImportedRecords(result.Imported)
	}
	if i.opts.OnComplete != nil {
		i.opts.OnComplete()
	}
	i.opts.Logger.Info("cpv dataset imported",
		zap.Int("rows", result.Rows),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// ImportFromObject imports a dataset stored under key.
func (i *CPVImporter) ImportFromObject(ctx context.Context, src ObjectSource, key string) (*ImportResult, error) {
	body, err := src.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open dataset %q: %w", domain.ErrStorageOperationFail, key, err)
	}
	defer body.Close()
	return i.Import(ctx, body)
}

func columnIndex(header []string) (map[string]int, error) {
	index := map[string]int{}
	for pos, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for _, col := range importColumns {
			if name == col {
				if _, dup := index[col]; !dup {
					index[col] = pos
				}
			}
		}
	}
	if _, ok := index["code"]; !ok {
		return nil, invalidDataset("header has no CODE column", nil)
	}
	for _, col := range importColumns {
		if _, ok := index[col]; !ok {
			index[col] = -1
		}
	}
	return index, nil
}

func field(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}

func invalidDataset(msg string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDataset, msg)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrInvalidDataset, msg, cause)
}
