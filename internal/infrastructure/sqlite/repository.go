package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"transfertracker/internal/application"
	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if err := ensureDir(dbPath); err != nil {
		return nil, errors.Wrap(err, "create db directory")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			value TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS transfers_to_idx ON transfers (to_addr)`,
		`CREATE INDEX IF NOT EXISTS transfers_from_idx ON transfers (from_addr)`,
		`CREATE TABLE IF NOT EXISTS state (
			state_key TEXT PRIMARY KEY,
			state_value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) SaveTransfers(ctx context.Context, transfers []domain.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transfers (id, from_addr, to_addr, value, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_addr = excluded.from_addr,
			to_addr = excluded.to_addr,
			value = excluded.value,
			timestamp = excluded.timestamp`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, transfer := range transfers {
		if _, err := stmt.ExecContext(ctx, transfer.ID, transfer.From, transfer.To, valueString(transfer.Value), strconv.FormatUint(transfer.Timestamp, 10)); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "upsert transfer %s", transfer.ID)
		}
	}
	return tx.Commit()
}

func (r *Repository) QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.To != "" {
		clauses = append(clauses, "to_addr = ?")
		args = append(args, filter.To)
	}
	if filter.From != "" {
		clauses = append(clauses, "from_addr = ?")
		args = append(args, filter.From)
	}

	query := `SELECT id, from_addr, to_addr, value, timestamp FROM transfers`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := make([]domain.Transfer, 0)
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *Repository) GetTransfer(ctx context.Context, id string) (domain.Transfer, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT id, from_addr, to_addr, value, timestamp FROM transfers WHERE id = ?`, id)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transfer{}, false, nil
		}
		return domain.Transfer{}, false, err
	}
	return transfer, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (domain.Transfer, error) {
	var transfer domain.Transfer
	var value string
	var timestamp string
	if err := row.Scan(&transfer.ID, &transfer.From, &transfer.To, &value, &timestamp); err != nil {
		return domain.Transfer{}, err
	}
	ts, err := strconv.ParseUint(timestamp, 10, 64)
	if err != nil {
		return domain.Transfer{}, errors.Wrapf(err, "invalid stored timestamp for %s", transfer.ID)
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return domain.Transfer{}, errors.Newf("invalid stored value %q for %s", value, transfer.ID)
	}
	transfer.Value = parsed
	transfer.Timestamp = ts
	return transfer, nil
}

func (r *Repository) LastProcessedBlock(ctx context.Context, chainID uint64) (uint64, bool, error) {
	var value string
	if err := r.db.QueryRowContext(ctx, `SELECT state_value FROM state WHERE state_key = ?`, stateKey(chainID)).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	var block uint64
	if _, err := fmt.Sscanf(value, "%d", &block); err != nil {
		return 0, false, err
	}
	return block, true, nil
}

func (r *Repository) SetLastProcessedBlock(ctx context.Context, chainID uint64, block uint64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO state (state_key, state_value) VALUES (?, ?)
		ON CONFLICT(state_key) DO UPDATE SET state_value = excluded.state_value`, stateKey(chainID), fmt.Sprintf("%d", block))
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func stateKey(chainID uint64) string {
	return fmt.Sprintf("last_block:%d", chainID)
}

func valueString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
