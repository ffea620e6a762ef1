package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"credrelay/internal/domain"
	"credrelay/pkg/platform/sentinel"
)

// Postgres stores persist wallet state across restarts. Schema stays
// minimal: both tables are key-value with a serial insertion sequence for
// deterministic ordering. The database/sql handle is expected to be backed
// by the pgx stdlib driver.

const Schema = `
CREATE TABLE IF NOT EXISTS credentials (
	content_hash TEXT PRIMARY KEY,
	seq          BIGSERIAL,
	body         JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS proof_requests (
	id          TEXT PRIMARY KEY,
	seq         BIGSERIAL,
	status      TEXT NOT NULL,
	body        JSONB NOT NULL
);
`

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

type PostgresCredentialStore struct {
	db *sql.DB
}

func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (s *PostgresCredentialStore) Put(ctx context.Context, cred domain.Credential) error {
	body, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	// ON CONFLICT DO NOTHING keeps re-insertion of an identical credential a
	// no-op success.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (content_hash, body)
		VALUES ($1, $2)
		ON CONFLICT (content_hash) DO NOTHING
	`, key(cred.ContentHash), body)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (s *PostgresCredentialStore) Get(ctx context.Context, contentHash string) (domain.Credential, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM credentials WHERE content_hash = $1`, key(contentHash),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credential{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("get credential: %w", err)
	}
	var cred domain.Credential
	if err := json.Unmarshal(body, &cred); err != nil {
		return domain.Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}

func (s *PostgresCredentialStore) List(ctx context.Context) ([]domain.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM credentials ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []domain.Credential
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("list credentials: %w", err)
		}
		var cred domain.Credential
		if err := json.Unmarshal(body, &cred); err != nil {
			return nil, fmt.Errorf("decode credential: %w", err)
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

type PostgresRequestStore struct {
	db *sql.DB
}

func NewPostgresRequestStore(db *sql.DB) *PostgresRequestStore {
	return &PostgresRequestStore{db: db}
}

func (s *PostgresRequestStore) Save(ctx context.Context, req domain.ProofRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proof_requests (id, status, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, body = EXCLUDED.body
	`, req.ID, string(req.Status), body)
	if err != nil {
		return fmt.Errorf("store request: %w", err)
	}
	return nil
}

func (s *PostgresRequestStore) Get(ctx context.Context, id string) (domain.ProofRequest, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM proof_requests WHERE id = $1`, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProofRequest{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.ProofRequest{}, fmt.Errorf("get request: %w", err)
	}
	var req domain.ProofRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.ProofRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func (s *PostgresRequestStore) ListPending(ctx context.Context) ([]domain.ProofRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM proof_requests WHERE status = $1 ORDER BY seq`,
		string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ProofRequest, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("list requests: %w", err)
		}
		var req domain.ProofRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Resolve commits the terminal state with a single conditional UPDATE: the
// WHERE clause on status is the compare-and-swap.
func (s *PostgresRequestStore) Resolve(ctx context.Context, id string, status domain.RequestStatus, presentation *domain.Presentation, resolvedAt time.Time) (domain.ProofRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return domain.ProofRequest{}, err
	}
	if req.Status != domain.StatusPending {
		return req, sentinel.ErrConflict
	}

	req.Status = status
	req.ResolvedAt = &resolvedAt
	req.Presentation = presentation
	body, err := json.Marshal(req)
	if err != nil {
		return domain.ProofRequest{}, fmt.Errorf("marshal request: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE proof_requests
		SET status = $2, body = $3
		WHERE id = $1 AND status = $4
	`, id, string(status), body, string(domain.StatusPending))
	if err != nil {
		return domain.ProofRequest{}, fmt.Errorf("resolve request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ProofRequest{}, fmt.Errorf("resolve request: %w", err)
	}
	if affected == 0 {
		// Lost the race: someone else committed between Get and UPDATE.
		current, err := s.Get(ctx, id)
		if err != nil {
			return domain.ProofRequest{}, err
		}
		return current, sentinel.ErrConflict
	}
	return req, nil
}
