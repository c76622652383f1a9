package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"acctgate/internal/account/models"
	"acctgate/pkg/domain"
	"acctgate/pkg/platform/sentinel"
)

// PostgresStore is the durable twin of InMemoryStore. The aggregate is
// stored as one JSONB document per account: every operation reads and
// writes the whole aggregate anyway (single writer per account), so a
// normalized schema would buy contention, not safety.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema is the DDL for the accounts table. Applied by deployments and the
// integration suite; the store itself never migrates.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	address    TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Create(ctx context.Context, state *models.AccountState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal account state: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO accounts (address, state, updated_at) VALUES ($1, $2, $3)`,
		state.Account.Address.String(), doc, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, addr domain.Address) (*models.AccountState, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM accounts WHERE address = $1`,
		addr.String(),
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}

	var state models.AccountState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("unmarshal account state: %w", err)
	}
	// Empty vote maps serialize as null; restore them so recording works.
	if state.Confirmations == nil {
		state.Confirmations = make(map[uint64]map[domain.Address]bool)
	}
	if state.UnfreezeVotes == nil {
		state.UnfreezeVotes = make(map[uint64]map[domain.Address]bool)
	}
	if state.RecoverySupport == nil {
		state.RecoverySupport = make(map[uint64]map[domain.Digest]bool)
	}
	return &state, nil
}

func (s *PostgresStore) Put(ctx context.Context, state *models.AccountState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal account state: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET state = $2, updated_at = $3 WHERE address = $1`,
		state.Account.Address.String(), doc, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
