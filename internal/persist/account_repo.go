package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// AccountRow is one row of the accounts table.
type AccountRow struct {
	Name         string
	PasswordHash string
	Banned       bool
	Online       bool
	CreatedAt    time.Time
	LastActive   *time.Time
}

// AccountRepo is the credential store backing handshake.Verifier.
type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Load(ctx context.Context, name string) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, password_hash, banned, online, created_at, last_active
		 FROM accounts WHERE name = $1`, name,
	).Scan(&row.Name, &row.PasswordHash, &row.Banned, &row.Online, &row.CreatedAt, &row.LastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) Create(ctx context.Context, name, rawPassword string) (*AccountRow, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	row := &AccountRow{
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastActive:   &now,
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO accounts (name, password_hash, last_active) VALUES ($1, $2, $3)`,
		row.Name, row.PasswordHash, row.LastActive,
	)
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) ValidatePassword(hash string, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}

func (r *AccountRepo) UpdateLastActive(ctx context.Context, name string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_active = NOW() WHERE name = $1`, name,
	)
	return err
}

func (r *AccountRepo) SetOnline(ctx context.Context, name string, online bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET online = $2 WHERE name = $1`, name, online,
	)
	return err
}

// Verify implements handshake.Verifier against the accounts table: an
// unknown or banned account is rejected the same way a bad password is,
// without distinguishing the two in the returned reason.
func (r *AccountRepo) Verify(accountName, password string) (bool, error) {
	row, err := r.Load(context.Background(), accountName)
	if err != nil {
		return false, err
	}
	if row == nil || row.Banned {
		return false, nil
	}
	return r.ValidatePassword(row.PasswordHash, password), nil
}
