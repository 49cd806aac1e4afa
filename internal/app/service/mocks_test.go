package service

import (
	"context"
	"sync"
	"time"

	"github.com/trackflow/trackflow/internal/app/model"
	"github.com/trackflow/trackflow/internal/app/repository"
)

type mockOfferRepository struct {
	createFn    func(ctx context.Context, offer *model.Offer) error
	getFn       func(ctx context.Context, id string) (*model.Offer, error)
	incrementFn func(ctx context.Context, id string, delta int64) error
	addRuleFn   func(ctx context.Context, rule *model.SmartRule) error
	promoCodeFn func(ctx context.Context, offerID string) (*model.PromoCode, error)
}

func (m *mockOfferRepository) Create(ctx context.Context, offer *model.Offer) error {
	if m.createFn != nil {
		return m.createFn(ctx, offer)
	}
	return nil
}

func (m *mockOfferRepository) GetByID(ctx context.Context, id string) (*model.Offer, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrOfferNotFound
}

func (m *mockOfferRepository) IncrementHits(ctx context.Context, id string, delta int64) error {
	if m.incrementFn != nil {
		return m.incrementFn(ctx, id, delta)
	}
	return nil
}

func (m *mockOfferRepository) AddSmartRule(ctx context.Context, rule *model.SmartRule) error {
	if m.addRuleFn != nil {
		return m.addRuleFn(ctx, rule)
	}
	return nil
}

func (m *mockOfferRepository) ActivePromoCode(ctx context.Context, offerID string) (*model.PromoCode, error) {
	if m.promoCodeFn != nil {
		return m.promoCodeFn(ctx, offerID)
	}
	return nil, nil
}

type mockClickRepository struct {
	createFn      func(ctx context.Context, click *model.Click) (bool, error)
	getFn         func(ctx context.Context, id string) (*model.Click, error)
	markFn        func(ctx context.Context, id string) error
	latestFn      func(ctx context.Context, placementID uint, since time.Time) (*model.Click, error)
	fraudSignalFn func(ctx context.Context, signal *model.FraudSignal) error
}

func (m *mockClickRepository) Create(ctx context.Context, click *model.Click) (bool, error) {
	if m.createFn != nil {
		return m.createFn(ctx, click)
	}
	return true, nil
}

func (m *mockClickRepository) GetByID(ctx context.Context, id string) (*model.Click, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrClickNotFound
}

func (m *mockClickRepository) MarkConverted(ctx context.Context, id string) error {
	if m.markFn != nil {
		return m.markFn(ctx, id)
	}
	return nil
}

func (m *mockClickRepository) LatestForPlacement(ctx context.Context, placementID uint, since time.Time) (*model.Click, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, placementID, since)
	}
	return nil, repository.ErrClickNotFound
}

func (m *mockClickRepository) CreateFraudSignal(ctx context.Context, signal *model.FraudSignal) error {
	if m.fraudSignalFn != nil {
		return m.fraudSignalFn(ctx, signal)
	}
	return nil
}

type mockConversionRepository struct {
	createFn     func(ctx context.Context, conversion *model.Conversion) error
	getFn        func(ctx context.Context, id string) (*model.Conversion, error)
	forClickFn   func(ctx context.Context, clickID string) (bool, error)
	forOfferIPFn func(ctx context.Context, offerID, ip string) (bool, error)
}

func (m *mockConversionRepository) Create(ctx context.Context, conversion *model.Conversion) error {
	if m.createFn != nil {
		return m.createFn(ctx, conversion)
	}
	return nil
}

func (m *mockConversionRepository) GetByID(ctx context.Context, id string) (*model.Conversion, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrConversionNotFound
}

func (m *mockConversionRepository) ExistsOpenForClick(ctx context.Context, clickID string) (bool, error) {
	if m.forClickFn != nil {
		return m.forClickFn(ctx, clickID)
	}
	return false, nil
}

func (m *mockConversionRepository) ExistsOpenForOfferIP(ctx context.Context, offerID, ip string) (bool, error) {
	if m.forOfferIPFn != nil {
		return m.forOfferIPFn(ctx, offerID, ip)
	}
	return false, nil
}

type mockJobRepository struct {
	createFn    func(ctx context.Context, job *model.PostbackJob) error
	getFn       func(ctx context.Context, id string) (*model.PostbackJob, error)
	leaseFn     func(ctx context.Context, limit int, lease time.Duration) ([]string, error)
	sentFn      func(ctx context.Context, id string, attempts int) error
	retryFn     func(ctx context.Context, id string, attempts int, nextAttemptAt time.Time) error
	failedFn    func(ctx context.Context, id string, attempts int) error
	appendLogFn func(ctx context.Context, log *model.DeliveryLog) error
}

func (m *mockJobRepository) Create(ctx context.Context, job *model.PostbackJob) error {
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockJobRepository) GetByID(ctx context.Context, id string) (*model.PostbackJob, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrJobNotFound
}

func (m *mockJobRepository) LeaseDue(ctx context.Context, limit int, lease time.Duration) ([]string, error) {
	if m.leaseFn != nil {
		return m.leaseFn(ctx, limit, lease)
	}
	return nil, nil
}

func (m *mockJobRepository) MarkSent(ctx context.Context, id string, attempts int) error {
	if m.sentFn != nil {
		return m.sentFn(ctx, id, attempts)
	}
	return nil
}

func (m *mockJobRepository) ScheduleRetry(ctx context.Context, id string, attempts int, nextAttemptAt time.Time) error {
	if m.retryFn != nil {
		return m.retryFn(ctx, id, attempts, nextAttemptAt)
	}
	return nil
}

func (m *mockJobRepository) MarkFailed(ctx context.Context, id string, attempts int) error {
	if m.failedFn != nil {
		return m.failedFn(ctx, id, attempts)
	}
	return nil
}

func (m *mockJobRepository) AppendDeliveryLog(ctx context.Context, log *model.DeliveryLog) error {
	if m.appendLogFn != nil {
		return m.appendLogFn(ctx, log)
	}
	return nil
}

type mockInboundRepository struct {
	createEventFn  func(ctx context.Context, event *model.InboundPostbackEvent) error
	createRecordFn func(ctx context.Context, record *model.ForwardedPostbackRecord) error
	partnerFn      func(ctx context.Context, key string) (*model.Partner, error)
	placementFn    func(ctx context.Context, id uint) (*model.Placement, error)
}

func (m *mockInboundRepository) CreateEvent(ctx context.Context, event *model.InboundPostbackEvent) error {
	if m.createEventFn != nil {
		return m.createEventFn(ctx, event)
	}
	return nil
}

func (m *mockInboundRepository) CreateForwardedRecord(ctx context.Context, record *model.ForwardedPostbackRecord) error {
	if m.createRecordFn != nil {
		return m.createRecordFn(ctx, record)
	}
	return nil
}

func (m *mockInboundRepository) GetPartnerByKey(ctx context.Context, key string) (*model.Partner, error) {
	if m.partnerFn != nil {
		return m.partnerFn(ctx, key)
	}
	return nil, repository.ErrPartnerNotFound
}

func (m *mockInboundRepository) GetPlacement(ctx context.Context, id uint) (*model.Placement, error) {
	if m.placementFn != nil {
		return m.placementFn(ctx, id)
	}
	return nil, repository.ErrPlacementNotFound
}

type mockUserRepository struct {
	mu       sync.Mutex
	balances map[uint]float64
	ledger   []model.PointsTransaction

	getFn        func(ctx context.Context, id uint) (*model.User, error)
	byUsernameFn func(ctx context.Context, username string) (*model.User, error)
	creditFn     func(ctx context.Context, userID uint, delta float64) error
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.byUsernameFn != nil {
		return m.byUsernameFn(ctx, username)
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) CreditPoints(ctx context.Context, userID uint, delta float64) error {
	if m.creditFn != nil {
		return m.creditFn(ctx, userID, delta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances == nil {
		m.balances = make(map[uint]float64)
	}
	m.balances[userID] += delta
	return nil
}

func (m *mockUserRepository) AppendPointsTransaction(ctx context.Context, tx *model.PointsTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, *tx)
	return nil
}

func (m *mockUserRepository) balance(userID uint) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

func (m *mockUserRepository) ledgerLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ledger)
}

// fakeVelocityStore counts increments in memory.
type fakeVelocityStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeVelocityStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

// fakeSender returns a scripted response per call.
type fakeSender struct {
	mu    sync.Mutex
	calls []string
	fn    func(method, rawURL string) (int, string, error)
}

func (f *fakeSender) Send(ctx context.Context, method, rawURL string) (int, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(method, rawURL)
	}
	return 200, "OK", nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (f *fakePublisher) PublishJob(jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.jobs = append(f.jobs, jobID)
	f.mu.Unlock()
	return nil
}
