package licensing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"licensegate.app/cloud/internal/license"
	"licensegate.app/cloud/models"
	"licensegate.app/cloud/storage"
)

const secondsPerDay = 86400

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrIssuanceIncomplete means the payment was approved but writing the
	// license failed. The ledger transition is not repeatable, so the fix is
	// to retry just the issuance via Renew, not to re-approve.
	ErrIssuanceIncomplete = errors.New("payment approved but license issuance failed")
)

// CheckResult is the verdict for a presented license key.
type CheckResult struct {
	Status        string
	ExpiresOn     string
	DaysRemaining int
}

// LicenseGrant is the outcome of an approval or renewal.
type LicenseGrant struct {
	Email         string
	Key           string
	Expiry        int64
	ExpiresOn     string
	DaysRemaining int
}

// Service orchestrates the license store and the payment ledger. It holds no
// state of its own and is safe to run as multiple instances against a shared
// store; every invariant rides on the store's single-statement atomicity.
type Service struct {
	store  storage.Storage
	secret []byte
	plans  map[string]bool
	now    func() time.Time
}

// NewService builds a licensing service. plans is an optional whitelist; when
// empty, any non-empty plan string is accepted.
func NewService(store storage.Storage, secret []byte, plans []string) *Service {
	allowed := make(map[string]bool, len(plans))
	for _, plan := range plans {
		allowed[plan] = true
	}
	return &Service{
		store:  store,
		secret: secret,
		plans:  allowed,
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Check verifies a presented key for an email. Both fields are required; a
// missing key is a caller error, never a silently skipped verification.
func (s *Service) Check(ctx context.Context, email, key string) (CheckResult, error) {
	var invalid *multierror.Error
	if license.Normalize(email) == "" {
		invalid = multierror.Append(invalid, fmt.Errorf("email is required"))
	}
	if key == "" {
		invalid = multierror.Append(invalid, fmt.Errorf("key is required"))
	}
	if err := invalid.ErrorOrNil(); err != nil {
		return CheckResult{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	email = license.Normalize(email)
	stored, err := s.store.GetLicense(ctx, email)
	if err != nil {
		return CheckResult{}, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	if stored != nil {
		if !license.Verify(s.secret, email, key) {
			return CheckResult{Status: models.StatusInvalid}, nil
		}
		now := s.now().Unix()
		if now > stored.Expiry {
			return CheckResult{
				Status:    models.StatusExpired,
				ExpiresOn: stored.ExpiresOn(),
			}, nil
		}
		return CheckResult{
			Status:        models.StatusValid,
			ExpiresOn:     stored.ExpiresOn(),
			DaysRemaining: int((stored.Expiry - now) / secondsPerDay),
		}, nil
	}

	latest, err := s.store.LatestPayment(ctx, email)
	if err != nil {
		return CheckResult{}, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	switch {
	case latest == nil:
		return CheckResult{Status: models.StatusInactive}, nil
	case latest.Status == models.PaymentPending:
		return CheckResult{Status: models.StatusPending}, nil
	case latest.Status == models.PaymentRejected:
		return CheckResult{Status: models.StatusRejected}, nil
	default:
		// Approved payment without a license row: an earlier issuance was
		// interrupted. Report inactive so the client retries later.
		return CheckResult{Status: models.StatusInactive}, nil
	}
}

// SubmitPayment appends a new pending payment. Resubmission is allowed and
// produces a new row; the admin disposes of the latest one.
func (s *Service) SubmitPayment(ctx context.Context, email, plan string) (models.Payment, error) {
	var invalid *multierror.Error
	if license.Normalize(email) == "" {
		invalid = multierror.Append(invalid, fmt.Errorf("email is required"))
	}
	if plan == "" {
		invalid = multierror.Append(invalid, fmt.Errorf("plan is required"))
	}
	if plan != "" && len(s.plans) > 0 && !s.plans[plan] {
		invalid = multierror.Append(invalid, fmt.Errorf("unknown plan %q", plan))
	}
	if err := invalid.ErrorOrNil(); err != nil {
		return models.Payment{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	email = license.Normalize(email)
	id, err := s.store.RecordPendingPayment(ctx, email, plan)
	if err != nil {
		return models.Payment{}, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return models.Payment{
		ID:     id,
		Email:  email,
		Plan:   plan,
		Status: models.PaymentPending,
	}, nil
}

// ApprovePayment transitions the latest pending payment for (email, plan) to
// approved and issues the license. The non-repeatable ledger transition runs
// first and gates the idempotent license write.
func (s *Service) ApprovePayment(ctx context.Context, email, plan string, days int) (LicenseGrant, error) {
	email = license.Normalize(email)
	if email == "" || plan == "" {
		return LicenseGrant{}, fmt.Errorf("%w: email and plan are required", ErrInvalidInput)
	}
	if days <= 0 {
		return LicenseGrant{}, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	_, ok, err := s.store.ApproveLatestPending(ctx, email, plan)
	if err != nil {
		return LicenseGrant{}, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	if !ok {
		return LicenseGrant{}, fmt.Errorf("%w: no pending payment for %s/%s", ErrNotFound, email, plan)
	}

	grant, err := s.issue(ctx, email, days)
	if err != nil {
		return LicenseGrant{}, fmt.Errorf("%w: %s", ErrIssuanceIncomplete, err)
	}
	return grant, nil
}

// RejectPayment transitions a pending payment to rejected. A miss means the
// row does not exist or was already disposed of, which is a not-found
// condition for the caller, not a fault.
func (s *Service) RejectPayment(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: payment id must be positive", ErrInvalidInput)
	}
	ok, err := s.store.TransitionPayment(ctx, id, models.PaymentPending, models.PaymentRejected)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: no pending payment with id %d", ErrNotFound, id)
	}
	return nil
}

// Renew issues or extends a license with no payment prerequisite. It is also
// the operator's recovery path after ErrIssuanceIncomplete.
func (s *Service) Renew(ctx context.Context, email string, days int) (LicenseGrant, error) {
	email = license.Normalize(email)
	if email == "" {
		return LicenseGrant{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if days <= 0 {
		return LicenseGrant{}, fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}

	grant, err := s.issue(ctx, email, days)
	if err != nil {
		return LicenseGrant{}, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return grant, nil
}

// PendingPayments lists every undisposed payment for the admin.
func (s *Service) PendingPayments(ctx context.Context) ([]models.Payment, error) {
	payments, err := s.store.ListPendingPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return payments, nil
}

func (s *Service) issue(ctx context.Context, email string, days int) (LicenseGrant, error) {
	now := s.now().Unix()
	expiry := now + int64(days)*secondsPerDay
	key := license.Derive(s.secret, email)

	if err := s.store.UpsertLicense(ctx, email, key, expiry); err != nil {
		return LicenseGrant{}, err
	}
	issued := models.License{Email: email, Key: key, Expiry: expiry}
	return LicenseGrant{
		Email:         email,
		Key:           key,
		Expiry:        expiry,
		ExpiresOn:     issued.ExpiresOn(),
		DaysRemaining: int((expiry - now) / secondsPerDay),
	}, nil
}
