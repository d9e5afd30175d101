package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"veriledger/pkg/domain"
	"veriledger/pkg/platform/sentinel"
)

// PostgresStore persists ledger rows in PostgreSQL. The engine serializes
// all mutation; SaveBatch wraps multi-row commits in one transaction so a
// transfer's two legs land together or not at all.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// execer is the slice of pgx shared by *pgxpool.Pool and pgx.Tx that the
// upsert helpers need.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the ledger tables if they do not exist.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	identity        TEXT PRIMARY KEY,
	balance         BIGINT NOT NULL DEFAULT 0,
	rating          SMALLINT NOT NULL DEFAULT 0,
	registrar_key   SMALLINT NOT NULL DEFAULT 0,
	custodian_count INT NOT NULL DEFAULT 0,
	restricted      BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS account_custodians (
	investor  TEXT NOT NULL,
	custodian TEXT NOT NULL,
	PRIMARY KEY (investor, custodian)
);
CREATE TABLE IF NOT EXISTS countries (
	code       INT PRIMARY KEY,
	allowed    BOOLEAN NOT NULL DEFAULT FALSE,
	min_rating SMALLINT NOT NULL DEFAULT 0,
	counts     BIGINT[] NOT NULL,
	limits     BIGINT[] NOT NULL
);
CREATE TABLE IF NOT EXISTS global_counts (
	id     INT PRIMARY KEY CHECK (id = 1),
	counts BIGINT[] NOT NULL,
	limits BIGINT[] NOT NULL
);
CREATE TABLE IF NOT EXISTS tokens (
	id         TEXT PRIMARY KEY,
	restricted BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Account(ctx context.Context, identity domain.InvestorID) (*Account, error) {
	acct := &Account{Custodians: make(map[domain.InvestorID]struct{})}
	var id string
	var balance int64
	var rating, registrarKey int16
	var custodianCount int32
	err := s.pool.QueryRow(ctx,
		`SELECT identity, balance, rating, registrar_key, custodian_count, restricted
		 FROM accounts WHERE identity = $1`, identity.String(),
	).Scan(&id, &balance, &rating, &registrarKey, &custodianCount, &acct.Restricted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	acct.Identity = domain.InvestorID(id)
	acct.Balance = uint64(balance)
	acct.Rating = domain.Rating(rating)
	acct.RegistrarKey = domain.RegistrarKey(registrarKey)
	acct.CustodianCount = uint16(custodianCount)

	rows, err := s.pool.Query(ctx,
		`SELECT custodian FROM account_custodians WHERE investor = $1`, identity.String())
	if err != nil {
		return nil, fmt.Errorf("select account custodians: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var custodian string
		if err := rows.Scan(&custodian); err != nil {
			return nil, fmt.Errorf("scan custodian: %w", err)
		}
		acct.Custodians[domain.InvestorID(custodian)] = struct{}{}
	}
	return acct, rows.Err()
}

func (s *PostgresStore) SaveAccount(ctx context.Context, account *Account) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save account: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertAccount(ctx, tx, account); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertAccount(ctx context.Context, db execer, account *Account) error {
	_, err := db.Exec(ctx,
		`INSERT INTO accounts (identity, balance, rating, registrar_key, custodian_count, restricted)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (identity) DO UPDATE SET
			balance = EXCLUDED.balance,
			rating = EXCLUDED.rating,
			registrar_key = EXCLUDED.registrar_key,
			custodian_count = EXCLUDED.custodian_count,
			restricted = EXCLUDED.restricted`,
		account.Identity.String(), int64(account.Balance), int16(account.Rating),
		int16(account.RegistrarKey), int32(account.CustodianCount), account.Restricted)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	if _, err := db.Exec(ctx,
		`DELETE FROM account_custodians WHERE investor = $1`, account.Identity.String()); err != nil {
		return fmt.Errorf("clear account custodians: %w", err)
	}
	for custodian := range account.Custodians {
		if _, err := db.Exec(ctx,
			`INSERT INTO account_custodians (investor, custodian) VALUES ($1, $2)`,
			account.Identity.String(), custodian.String()); err != nil {
			return fmt.Errorf("insert account custodian: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Country(ctx context.Context, code domain.CountryCode) (*Country, error) {
	country := &Country{}
	var c int32
	var minRating int16
	var counts, limits []int64
	err := s.pool.QueryRow(ctx,
		`SELECT code, allowed, min_rating, counts, limits FROM countries WHERE code = $1`,
		int32(code),
	).Scan(&c, &country.Allowed, &minRating, &counts, &limits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select country: %w", err)
	}
	country.Code = domain.CountryCode(c)
	country.MinRating = domain.Rating(minRating)
	copyCounts(&country.Counts, counts)
	copyCounts(&country.Limits, limits)
	return country, nil
}

func (s *PostgresStore) SaveCountry(ctx context.Context, country *Country) error {
	return upsertCountry(ctx, s.pool, country)
}

func upsertCountry(ctx context.Context, db execer, country *Country) error {
	_, err := db.Exec(ctx,
		`INSERT INTO countries (code, allowed, min_rating, counts, limits)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (code) DO UPDATE SET
			allowed = EXCLUDED.allowed,
			min_rating = EXCLUDED.min_rating,
			counts = EXCLUDED.counts,
			limits = EXCLUDED.limits`,
		int32(country.Code), country.Allowed, int16(country.MinRating),
		toSlice(country.Counts), toSlice(country.Limits))
	if err != nil {
		return fmt.Errorf("upsert country: %w", err)
	}
	return nil
}

func (s *PostgresStore) Global(ctx context.Context) (*CountsRow, error) {
	row := &CountsRow{}
	var counts, limits []int64
	err := s.pool.QueryRow(ctx,
		`SELECT counts, limits FROM global_counts WHERE id = 1`,
	).Scan(&counts, &limits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return row, nil
		}
		return nil, fmt.Errorf("select global counts: %w", err)
	}
	copyCounts(&row.Counts, counts)
	copyCounts(&row.Limits, limits)
	return row, nil
}

func (s *PostgresStore) SaveGlobal(ctx context.Context, row *CountsRow) error {
	return upsertGlobal(ctx, s.pool, row)
}

func upsertGlobal(ctx context.Context, db execer, row *CountsRow) error {
	_, err := db.Exec(ctx,
		`INSERT INTO global_counts (id, counts, limits) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET counts = EXCLUDED.counts, limits = EXCLUDED.limits`,
		toSlice(row.Counts), toSlice(row.Limits))
	if err != nil {
		return fmt.Errorf("upsert global counts: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveBatch(ctx context.Context, accounts []*Account, countries []*Country, global *CountsRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, account := range accounts {
		if err := upsertAccount(ctx, tx, account); err != nil {
			return err
		}
	}
	for _, country := range countries {
		if err := upsertCountry(ctx, tx, country); err != nil {
			return err
		}
	}
	if global != nil {
		if err := upsertGlobal(ctx, tx, global); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Token(ctx context.Context, id domain.TokenID) (*Token, error) {
	token := &Token{Set: true}
	var tokenID string
	err := s.pool.QueryRow(ctx,
		`SELECT id, restricted FROM tokens WHERE id = $1`, id.String(),
	).Scan(&tokenID, &token.Restricted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select token: %w", err)
	}
	token.ID = domain.TokenID(tokenID)
	return token, nil
}

func (s *PostgresStore) SaveToken(ctx context.Context, token *Token) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tokens (id, restricted) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET restricted = EXCLUDED.restricted`,
		token.ID.String(), token.Restricted)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

func toSlice(arr [domain.RatingClasses + 1]uint64) []int64 {
	out := make([]int64, len(arr))
	for i, v := range arr {
		out[i] = int64(v)
	}
	return out
}

func copyCounts(dst *[domain.RatingClasses + 1]uint64, src []int64) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] = uint64(src[i])
	}
}
