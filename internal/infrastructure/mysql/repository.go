package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"transfertracker/internal/application"
	"transfertracker/internal/domain"
	"transfertracker/internal/infrastructure/telemetry"

	"github.com/cockroachdb/errors"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS transfers (
			id VARCHAR(66) NOT NULL,
			from_addr VARCHAR(42) NOT NULL,
			to_addr VARCHAR(42) NOT NULL,
			value DECIMAL(65,0) NOT NULL,
			timestamp BIGINT UNSIGNED NOT NULL,
			PRIMARY KEY (id),
			KEY transfers_to_idx (to_addr),
			KEY transfers_from_idx (from_addr)
		) DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
		`CREATE TABLE IF NOT EXISTS state (
			state_key VARCHAR(64) NOT NULL,
			state_value VARCHAR(64) NOT NULL,
			PRIMARY KEY (state_key)
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
	ctx, span := startDBSpan(ctx, "mysql.SaveTransfers", attribute.Int("transfer.count", len(transfers)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		telemetry.Fail(span, err)
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transfers (id, from_addr, to_addr, value, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			from_addr = VALUES(from_addr),
			to_addr = VALUES(to_addr),
			value = VALUES(value),
			timestamp = VALUES(timestamp)`)
	if err != nil {
		_ = tx.Rollback()
		telemetry.Fail(span, err)
		return err
	}
	defer stmt.Close()

	for _, transfer := range transfers {
		if _, err := stmt.ExecContext(ctx, transfer.ID, transfer.From, transfer.To, valueString(transfer.Value), transfer.Timestamp); err != nil {
			_ = tx.Rollback()
			err = errors.Wrapf(err, "upsert transfer %s", transfer.ID)
			telemetry.Fail(span, err)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		telemetry.Fail(span, err)
		return err
	}
	return nil
}

func (r *Repository) QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.Transfer, error) {
	ctx, span := startDBSpan(ctx, "mysql.QueryTransfers",
		attribute.String("filter.to", filter.To),
		attribute.String("filter.from", filter.From),
	)
	defer span.End()
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

	query := `SELECT id, from_addr, to_addr, CAST(value AS CHAR), timestamp FROM transfers`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	defer rows.Close()

	transfers := make([]domain.Transfer, 0)
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			telemetry.Fail(span, err)
			return nil, err
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		telemetry.Fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("transfer.count", len(transfers)))
	return transfers, nil
}

func (r *Repository) GetTransfer(ctx context.Context, id string) (domain.Transfer, bool, error) {
	ctx, span := startDBSpan(ctx, "mysql.GetTransfer", attribute.String("transfer.id", id))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT id, from_addr, to_addr, CAST(value AS CHAR), timestamp FROM transfers WHERE id = ?`, id)
	transfer, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transfer{}, false, nil
		}
		telemetry.Fail(span, err)
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
	if err := row.Scan(&transfer.ID, &transfer.From, &transfer.To, &value, &transfer.Timestamp); err != nil {
		return domain.Transfer{}, err
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return domain.Transfer{}, errors.Newf("invalid stored value %q for %s", value, transfer.ID)
	}
	transfer.Value = parsed
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
	ctx, span := startDBSpan(ctx, "mysql.SetLastProcessedBlock",
		attribute.Int64("chain.id", int64(chainID)),
		attribute.Int64("block.number", int64(block)),
	)
	defer span.End()
	_, err := r.db.ExecContext(ctx, `INSERT INTO state (state_key, state_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE state_value = VALUES(state_value)`, stateKey(chainID), fmt.Sprintf("%d", block))
	telemetry.Fail(span, err)
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

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("transfertracker/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
