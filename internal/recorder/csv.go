package recorder

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"PairSentinel/internal/fsutil"
	"PairSentinel/internal/model"
)

// ErrNoTable is returned by LoadTable before the first successful run.
var ErrNoTable = errors.New("result table not found")

// CSVRecorder keeps the result table in a CSV file replaced atomically on every save.
type CSVRecorder struct {
	Path string
	mu   sync.Mutex
}

func NewCSVRecorder(path string) *CSVRecorder {
	return &CSVRecorder{Path: path}
}

func (r *CSVRecorder) SaveTable(_ context.Context, table *model.ResultTable) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return fsutil.WriteFileAtomic(r.Path, buf.Bytes())
}

func (r *CSVRecorder) LoadTable(_ context.Context) (*model.ResultTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoTable
		}
		return nil, fmt.Errorf("open result table: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat result table: %w", err)
	}
	table, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	table.GeneratedAt = st.ModTime()
	return table, nil
}

func (r *CSVRecorder) Close() error { return nil }

// WriteCSV renders the table with its header; an empty table is just the header.
func WriteCSV(w io.Writer, table *model.ResultTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range table.Top(0) {
		rec := []string{
			row.Sym1,
			row.Sym2,
			formatFloat(row.PValue),
			formatFloat(row.TValue),
			formatFloat(row.CValue),
			formatFloat(row.HedgeRatio),
			strconv.Itoa(row.ZeroCrossings),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %s/%s: %w", row.Sym1, row.Sym2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV. Every parsed row is cointegrated.
func ReadCSV(r io.Reader) (*model.ResultTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse result table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse result table: missing header")
	}
	for i, col := range Columns {
		if records[0][i] != col {
			return nil, fmt.Errorf("parse result table: column %d is %q, want %q", i, records[0][i], col)
		}
	}

	rows := make([]model.CointegrationResult, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := model.CointegrationResult{Sym1: rec[0], Sym2: rec[1], Cointegrated: true, Seq: i}
		floats := []*float64{&row.PValue, &row.TValue, &row.CValue, &row.HedgeRatio}
		for j, dst := range floats {
			v, err := strconv.ParseFloat(rec[2+j], 64)
			if err != nil {
				return nil, fmt.Errorf("parse row %d %s: %w", i+1, Columns[2+j], err)
			}
			*dst = v
		}
		zc, err := strconv.Atoi(rec[6])
		if err != nil {
			return nil, fmt.Errorf("parse row %d zero_crossings: %w", i+1, err)
		}
		row.ZeroCrossings = zc
		rows = append(rows, row)
	}
	return &model.ResultTable{Rows: rows}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
