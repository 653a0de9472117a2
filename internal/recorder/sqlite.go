package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"PairSentinel/internal/model"
)

// SQLiteRecorder mirrors the result table into a SQLite database so the dashboard
// and ad-hoc tooling can query it.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets readers keep the previous table while a run replaces it.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cointegrated_pairs (
			rank           INTEGER PRIMARY KEY,
			sym_1          TEXT NOT NULL,
			sym_2          TEXT NOT NULL,
			p_value        REAL NOT NULL,
			t_value        REAL NOT NULL,
			c_value        REAL NOT NULL,
			hedge_ratio    REAL NOT NULL,
			zero_crossings INTEGER NOT NULL,
			generated_at   INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pairs_key ON cointegrated_pairs(sym_1, sym_2)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// SaveTable replaces the stored table inside one transaction.
func (r *SQLiteRecorder) SaveTable(ctx context.Context, table *model.ResultTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cointegrated_pairs`); err != nil {
		return fmt.Errorf("clear table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cointegrated_pairs
		(rank, sym_1, sym_2, p_value, t_value, c_value, hedge_ratio, zero_crossings, generated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	at := table.GeneratedAt.Unix()
	for i, row := range table.Top(0) {
		if _, err := stmt.ExecContext(ctx, i+1, row.Sym1, row.Sym2,
			row.PValue, row.TValue, row.CValue, row.HedgeRatio, row.ZeroCrossings, at,
		); err != nil {
			return fmt.Errorf("insert %s/%s: %w", row.Sym1, row.Sym2, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) LoadTable(ctx context.Context) (*model.ResultTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.QueryContext(ctx, `SELECT sym_1, sym_2, p_value, t_value, c_value,
		hedge_ratio, zero_crossings, generated_at FROM cointegrated_pairs ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("query table: %w", err)
	}
	defer rows.Close()

	table := &model.ResultTable{}
	var generated int64
	for rows.Next() {
		row := model.CointegrationResult{Cointegrated: true, Seq: len(table.Rows)}
		if err := rows.Scan(&row.Sym1, &row.Sym2, &row.PValue, &row.TValue, &row.CValue,
			&row.HedgeRatio, &row.ZeroCrossings, &generated); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if generated > 0 {
		table.GeneratedAt = time.Unix(generated, 0)
	}
	return table, nil
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
