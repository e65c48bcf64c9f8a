package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"licensegate.app/cloud/models"
)

type Storage interface {
	GetLicense(ctx context.Context, email string) (*models.License, error)
	UpsertLicense(ctx context.Context, email, key string, expiry int64) error

	RecordPendingPayment(ctx context.Context, email, plan string) (int64, error)
	LatestPayment(ctx context.Context, email string) (*models.Payment, error)
	ListPendingPayments(ctx context.Context) ([]models.Payment, error)
	TransitionPayment(ctx context.Context, id int64, from, to string) (bool, error)
	ApproveLatestPending(ctx context.Context, email, plan string) (int64, bool, error)

	FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	CreateAdmin(ctx context.Context, email, passwordHash string) error

	Close() error
}

// MemoryStorage backs tests and local development. All operations hold the
// mutex for their full duration, which gives the same single-row atomicity
// the SQLite implementation gets from conditional statements.
type MemoryStorage struct {
	mu       sync.Mutex
	licenses map[string]models.License
	payments map[int64]models.Payment
	admins   map[string]models.AdminUser
	nextID   int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		licenses: make(map[string]models.License),
		payments: make(map[int64]models.Payment),
		admins:   make(map[string]models.AdminUser),
		nextID:   1,
	}
}

func (m *MemoryStorage) GetLicense(ctx context.Context, email string) (*models.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	license, exists := m.licenses[email]
	if !exists {
		return nil, nil
	}
	return &license, nil
}

func (m *MemoryStorage) UpsertLicense(ctx context.Context, email, key string, expiry int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.licenses[email] = models.License{
		Email:  email,
		Key:    key,
		Expiry: expiry,
	}
	return nil
}

func (m *MemoryStorage) RecordPendingPayment(ctx context.Context, email, plan string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.payments[id] = models.Payment{
		ID:        id,
		Email:     email,
		Plan:      plan,
		Status:    models.PaymentPending,
		CreatedAt: time.Now().UTC(),
	}
	return id, nil
}

func (m *MemoryStorage) LatestPayment(ctx context.Context, email string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.Payment
	for _, payment := range m.payments {
		if payment.Email != email {
			continue
		}
		if latest == nil || payment.ID > latest.ID {
			p := payment
			latest = &p
		}
	}
	return latest, nil
}

func (m *MemoryStorage) ListPendingPayments(ctx context.Context) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []models.Payment
	for _, payment := range m.payments {
		if payment.Status == models.PaymentPending {
			pending = append(pending, payment)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (m *MemoryStorage) TransitionPayment(ctx context.Context, id int64, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, exists := m.payments[id]
	if !exists || payment.Status != from {
		return false, nil
	}
	payment.Status = to
	m.payments[id] = payment
	return true, nil
}

func (m *MemoryStorage) ApproveLatestPending(ctx context.Context, email, plan string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var match *models.Payment
	for _, payment := range m.payments {
		if payment.Email != email || payment.Plan != plan || payment.Status != models.PaymentPending {
			continue
		}
		if match == nil || payment.ID > match.ID {
			p := payment
			match = &p
		}
	}
	if match == nil {
		return 0, false, nil
	}
	match.Status = models.PaymentApproved
	m.payments[match.ID] = *match
	return match.ID, true, nil
}

func (m *MemoryStorage) FindAdminByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	admin, exists := m.admins[email]
	if !exists {
		return nil, nil
	}
	return &admin, nil
}

func (m *MemoryStorage) CreateAdmin(ctx context.Context, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.admins[email] = models.AdminUser{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
