package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"licensegate.app/cloud/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteStorage struct {
	db   *sql.DB
	path string
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStorage{db: db, path: path}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQLiteStorage) GetLicense(ctx context.Context, email string) (*models.License, error) {
	query := `SELECT email, license_key, expiry FROM licenses WHERE email = ?`

	var license models.License
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&license.Email,
		&license.Key,
		&license.Expiry,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// UpsertLicense replaces both the key and the expiry in one statement, so a
// renewal can never leave a row half overwritten. Last write wins under
// concurrent renewals for the same email.
func (s *SQLiteStorage) UpsertLicense(ctx context.Context, email, key string, expiry int64) error {
	query := `INSERT INTO licenses (email, license_key, expiry) VALUES (?, ?, ?)
	          ON CONFLICT(email) DO UPDATE SET license_key = excluded.license_key, expiry = excluded.expiry`

	if _, err := s.db.ExecContext(ctx, query, email, key, expiry); err != nil {
		return fmt.Errorf("failed to upsert license: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RecordPendingPayment(ctx context.Context, email, plan string) (int64, error) {
	query := `INSERT INTO payments (email, plan, status) VALUES (?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query, email, plan, models.PaymentPending)
	if err != nil {
		return 0, fmt.Errorf("failed to record payment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *SQLiteStorage) LatestPayment(ctx context.Context, email string) (*models.Payment, error) {
	query := `SELECT id, email, plan, status, created_at FROM payments WHERE email = ? ORDER BY id DESC LIMIT 1`

	var payment models.Payment
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&payment.ID,
		&payment.Email,
		&payment.Plan,
		&payment.Status,
		&payment.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *SQLiteStorage) ListPendingPayments(ctx context.Context) ([]models.Payment, error) {
	query := `SELECT id, email, plan, status, created_at FROM payments WHERE status = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, models.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var payment models.Payment
		err := rows.Scan(
			&payment.ID,
			&payment.Email,
			&payment.Plan,
			&payment.Status,
			&payment.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

// TransitionPayment is the compare-and-set guard against double disposition:
// the status check lives inside the UPDATE itself, not in a prior read.
func (s *SQLiteStorage) TransitionPayment(ctx context.Context, id int64, from, to string) (bool, error) {
	query := `UPDATE payments SET status = ? WHERE id = ? AND status = ?`

	result, err := s.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ApproveLatestPending approves the most recent pending payment for the
// email and plan in a single conditional statement. Two racing approvals
// cannot both see an affected row.
func (s *SQLiteStorage) ApproveLatestPending(ctx context.Context, email, plan string) (int64, bool, error) {
	query := `UPDATE payments SET status = ?
	          WHERE id = (SELECT id FROM payments WHERE email = ? AND plan = ? AND status = ? ORDER BY id DESC LIMIT 1)
	            AND status = ?
	          RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		models.PaymentApproved, email, plan, models.PaymentPending, models.PaymentPending,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to approve payment: %w", err)
	}
	return id, true, nil
}

func (s *SQLiteStorage) FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	query := `SELECT id, email, password_hash, created_at FROM admin_users WHERE email = ?`

	var admin models.AdminUser
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&admin.ID,
		&admin.Email,
		&admin.PasswordHash,
		&admin.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (s *SQLiteStorage) CreateAdmin(ctx context.Context, email, passwordHash string) error {
	query := `INSERT INTO admin_users (email, password_hash) VALUES (?, ?)`

	if _, err := s.db.ExecContext(ctx, query, email, passwordHash); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
