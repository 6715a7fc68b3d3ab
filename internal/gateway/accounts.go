package gateway

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/snapfeed/backend/internal/db"
)

// SessionTTL is how long an issued session token stays valid.
const SessionTTL = 30 * 24 * time.Hour

// PostgresAccountStore persists authentication accounts and their opaque
// session tokens.
type PostgresAccountStore struct {
	pool    db.Pool
	NowFunc func() time.Time
}

// NewPostgresAccountStore constructs an account store backed by PostgreSQL.
func NewPostgresAccountStore(pool db.Pool) *PostgresAccountStore {
	return &PostgresAccountStore{pool: pool}
}

// CreateAccount registers a new identity with a bcrypt-hashed password.
func (s *PostgresAccountStore) CreateAccount(ctx context.Context, email, password, name string) (Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Account{}, fmt.Errorf("email and password are required: %w", ErrAuth)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w: %w", ErrAuth, err)
	}

	account := Account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		CreatedAt: s.now(),
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, email, name, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, account.ID, account.Email, account.Name, string(hashed), account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, fmt.Errorf("account %s: %w: %w", email, ErrAuth, ErrConflict)
		}
		return Account{}, fmt.Errorf("insert account: %w: %w", ErrAuth, err)
	}

	return account, nil
}

// CreateSession exchanges credentials for a session token. One attempt, no
// refresh flow: an expired or failed session means signing in again.
func (s *PostgresAccountStore) CreateSession(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, password_hash
        FROM accounts
        WHERE email = $1
    `, email)

	var accountID, hash string
	if err := row.Scan(&accountID, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, fmt.Errorf("account %s: %w: %w", email, ErrAuth, ErrNotFound)
		}
		return Session{}, fmt.Errorf("select account: %w: %w", ErrAuth, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Session{}, fmt.Errorf("invalid credentials: %w", ErrAuth)
	}

	token, err := sessionToken()
	if err != nil {
		return Session{}, fmt.Errorf("generate session token: %w: %w", ErrAuth, err)
	}

	session := Session{
		Token:     token,
		AccountID: accountID,
		ExpiresAt: s.now().Add(SessionTTL),
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (token, account_id, expires_at)
        VALUES ($1, $2, $3)
    `, session.Token, session.AccountID, session.ExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w: %w", ErrAuth, err)
	}

	return session, nil
}

// GetAccount resolves the identity behind an active session token.
func (s *PostgresAccountStore) GetAccount(ctx context.Context, token string) (Account, error) {
	if token == "" {
		return Account{}, fmt.Errorf("missing session token: %w: %w", ErrAuth, ErrNotFound)
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT a.id, a.email, a.name, a.created_at
        FROM sessions s
        JOIN accounts a ON a.id = s.account_id
        WHERE s.token = $1 AND s.expires_at > $2
    `, token, s.now())

	var account Account
	if err := row.Scan(&account.ID, &account.Email, &account.Name, &account.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("session: %w: %w", ErrAuth, ErrNotFound)
		}
		return Account{}, fmt.Errorf("select session account: %w: %w", ErrAuth, err)
	}

	account.CreatedAt = account.CreatedAt.UTC()
	return account, nil
}

// DeleteSession terminates the session behind the provided token.
func (s *PostgresAccountStore) DeleteSession(ctx context.Context, token string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM sessions
        WHERE token = $1
    `, token)
	if err != nil {
		return fmt.Errorf("delete session: %w: %w", ErrAuth, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session: %w: %w", ErrAuth, ErrNotFound)
	}

	return nil
}

func (s *PostgresAccountStore) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func sessionToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

var _ AccountStore = (*PostgresAccountStore)(nil)
