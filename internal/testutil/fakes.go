// Package testutil holds hand-written fakes for the repository and
// coordination interfaces, shared across package test suites the way
// the teacher's internal/tests mocks.go is shared across its own.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/provider"
	"dispatch/internal/repository"
	"dispatch/internal/workqueue"
)

// ──────────────────────────────────────────────
// FAKE ORDER REPOSITORY
// ──────────────────────────────────────────────

// FakeOrderRepository is an in-memory OrderRepository.
type FakeOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	CreateCallCount int32
	UpdateCallCount int32

	CreateError error
	UpdateError error
}

// NewFakeOrderRepository creates an empty fake order repository.
func NewFakeOrderRepository() *FakeOrderRepository {
	return &FakeOrderRepository{orders: make(map[string]*domain.Order)}
}

// AddOrder seeds the repository directly, bypassing Create.
func (m *FakeOrderRepository) AddOrder(o *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *FakeOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
	return nil
}

func (m *FakeOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *o
	return &copy, nil
}

func (m *FakeOrderRepository) GetAll(ctx context.Context) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		copy := *o
		out = append(out, &copy)
	}
	return out, nil
}

func (m *FakeOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return repository.ErrNotFound
	}
	m.orders[order.ID] = order
	return nil
}

func (m *FakeOrderRepository) GetPending(ctx context.Context) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusPending {
			copy := *o
			out = append(out, &copy)
		}
	}
	return out, nil
}

// GetOrder returns the order for test assertions, bypassing the copy
// the interface method makes.
func (m *FakeOrderRepository) GetOrder(id string) *domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// ──────────────────────────────────────────────
// FAKE DRIVER REPOSITORY
// ──────────────────────────────────────────────

// FakeDriverRepository is an in-memory DriverRepository.
type FakeDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	UpdateStatusCallCount   int32
	UpdateLocationCallCount int32

	UpdateStatusError error
}

// NewFakeDriverRepository creates an empty fake driver repository.
func NewFakeDriverRepository() *FakeDriverRepository {
	return &FakeDriverRepository{drivers: make(map[string]*domain.Driver)}
}

// AddDriver seeds the repository directly.
func (m *FakeDriverRepository) AddDriver(d *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID] = d
}

func (m *FakeDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *FakeDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *d
	return &copy, nil
}

func (m *FakeDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *FakeDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		out = append(out, &copy)
	}
	return out, nil
}

func (m *FakeDriverRepository) GetAvailable(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Driver
	for _, d := range m.drivers {
		if d.IsMatchable() {
			copy := *d
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *FakeDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = status
	return nil
}

func (m *FakeDriverRepository) UpdateLocation(ctx context.Context, id string, loc domain.DriverLocation) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.Location = loc
	return nil
}

func (m *FakeDriverRepository) Near(ctx context.Context, center domain.Point, radiusMeters float64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id := range m.drivers {
		out = append(out, id)
	}
	return out, nil
}

// ──────────────────────────────────────────────
// FAKE ASSIGNMENT REPOSITORY + TX
// ──────────────────────────────────────────────

// FakeAssignmentRepository is an in-memory AssignmentRepository and
// TxBeginner, mirroring repository.AssignmentTx's atomic order+assignment
// write with a simple in-process mutex rather than a real transaction.
type FakeAssignmentRepository struct {
	mu          sync.Mutex
	assignments map[string]*domain.Assignment
	orders      repository.OrderRepository
	nextID      int

	CreateCallCount int32
	UpdateCallCount int32

	GetByIDError error
}

// NewFakeAssignmentRepository creates an empty fake, wired to an
// OrderRepository so CreateOffer/RebuildOffer can apply the paired order
// write the way the real Postgres transaction does.
func NewFakeAssignmentRepository(orders repository.OrderRepository) *FakeAssignmentRepository {
	return &FakeAssignmentRepository{
		assignments: make(map[string]*domain.Assignment),
		orders:      orders,
	}
}

// AddAssignment seeds the repository directly.
func (m *FakeAssignmentRepository) AddAssignment(a *domain.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		m.nextID++
		a.ID = idFromCounter(m.nextID)
	}
	m.assignments[a.ID] = a
}

func (m *FakeAssignmentRepository) Create(ctx context.Context, a *domain.Assignment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		m.nextID++
		a.ID = idFromCounter(m.nextID)
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *FakeAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.Assignment, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (m *FakeAssignmentRepository) Update(ctx context.Context, a *domain.Assignment) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.ID]; !ok {
		return repository.ErrNotFound
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *FakeAssignmentRepository) GetActiveByOrderID(ctx context.Context, orderID string) (*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.OrderID == orderID && !a.Status.IsTerminal() && a.Status != domain.AssignmentStatusRejected && a.Status != domain.AssignmentStatusExpired {
			copy := *a
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *FakeAssignmentRepository) GetLatestByOrderID(ctx context.Context, orderID string) (*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Assignment
	for _, a := range m.assignments {
		if a.OrderID != orderID {
			continue
		}
		if latest == nil || a.OfferRound >= latest.OfferRound {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	copy := *latest
	return &copy, nil
}

func (m *FakeAssignmentRepository) GetOfferedByDriverID(ctx context.Context, driverID string) ([]*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range m.assignments {
		if a.DriverID == driverID && a.Status == domain.AssignmentStatusOffered {
			copy := *a
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *FakeAssignmentRepository) GetAcceptedRouteByDriverID(ctx context.Context, driverID string) ([]*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range m.assignments {
		if a.DriverID == driverID && (a.Status == domain.AssignmentStatusAccepted || a.Status == domain.AssignmentStatusPickedUp) {
			copy := *a
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *FakeAssignmentRepository) GetExpiredOffers(ctx context.Context, asOf time.Time) ([]*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range m.assignments {
		if a.Status == domain.AssignmentStatusOffered && a.OfferExpiry.Before(asOf) {
			copy := *a
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *FakeAssignmentRepository) GetAllOffered(ctx context.Context) ([]*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Assignment
	for _, a := range m.assignments {
		if a.Status == domain.AssignmentStatusOffered {
			copy := *a
			out = append(out, &copy)
		}
	}
	return out, nil
}

// BeginAssignmentTx returns a fake transaction handle operating directly
// on the repository's map, guarded by the same mutex Commit releases.
func (m *FakeAssignmentRepository) BeginAssignmentTx(ctx context.Context) (repository.AssignmentTx, error) {
	m.mu.Lock()
	return &fakeAssignmentTx{repo: m}, nil
}

type fakeAssignmentTx struct {
	repo     *FakeAssignmentRepository
	done     bool
}

func (tx *fakeAssignmentTx) CreateOffer(ctx context.Context, a *domain.Assignment, order *domain.Order) error {
	if a.ID == "" {
		tx.repo.nextID++
		a.ID = idFromCounter(tx.repo.nextID)
	}
	tx.repo.assignments[a.ID] = a
	return tx.repo.orders.Update(ctx, order)
}

func (tx *fakeAssignmentTx) RebuildOffer(ctx context.Context, a *domain.Assignment, order *domain.Order) error {
	tx.repo.assignments[a.ID] = a
	return tx.repo.orders.Update(ctx, order)
}

func (tx *fakeAssignmentTx) Commit() error {
	if !tx.done {
		tx.done = true
		tx.repo.mu.Unlock()
	}
	return nil
}

func (tx *fakeAssignmentTx) Rollback() error {
	if !tx.done {
		tx.done = true
		tx.repo.mu.Unlock()
	}
	return nil
}

func idFromCounter(n int) string {
	const alphabet = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{alphabet[n%16]}, b...)
		n /= 16
	}
	return "assignment-" + string(b)
}

// ──────────────────────────────────────────────
// FAKE LOCK STORE
// ──────────────────────────────────────────────

// FakeLockStore is an in-memory LockStoreInterface.
type FakeLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	AcquireAssignmentCallCount int32
	ForceAcquireFailure        bool
}

// NewFakeLockStore creates an empty fake lock store.
func NewFakeLockStore() *FakeLockStore {
	return &FakeLockStore{locks: make(map[string]time.Time)}
}

func (m *FakeLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	return m.acquire("lock:driver:"+driverID, ttl)
}

func (m *FakeLockStore) ReleaseDriverLock(ctx context.Context, driverID string) error {
	m.release("lock:driver:" + driverID)
	return nil
}

func (m *FakeLockStore) AcquireAssignmentLock(ctx context.Context, assignmentID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireAssignmentCallCount, 1)
	return m.acquire("lock:assignment:"+assignmentID, ttl)
}

func (m *FakeLockStore) ReleaseAssignmentLock(ctx context.Context, assignmentID string) error {
	m.release("lock:assignment:" + assignmentID)
	return nil
}

func (m *FakeLockStore) acquire(key string, ttl time.Duration) (bool, error) {
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *FakeLockStore) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
}

// ──────────────────────────────────────────────
// FAKE DRAFT REPOSITORY
// ──────────────────────────────────────────────

// FakeDraftRepository is an in-memory DraftRepository.
type FakeDraftRepository struct {
	mu     sync.Mutex
	groups []*domain.DraftGroup

	TruncateCallCount int32
	CreateCallCount   int32
}

// NewFakeDraftRepository creates an empty fake draft repository.
func NewFakeDraftRepository() *FakeDraftRepository {
	return &FakeDraftRepository{}
}

func (m *FakeDraftRepository) TruncateAll(ctx context.Context) error {
	atomic.AddInt32(&m.TruncateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = nil
	return nil
}

func (m *FakeDraftRepository) CreateGroup(ctx context.Context, g *domain.DraftGroup) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, g)
	return nil
}

func (m *FakeDraftRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*domain.DraftGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DraftGroup
	for _, g := range m.groups {
		if g.SessionID == sessionID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *FakeDraftRepository) MarkSelected(ctx context.Context, sessionID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := 0
	for _, g := range m.groups {
		if g.SessionID != sessionID {
			continue
		}
		g.IsSelected = i == index
		i++
	}
	return nil
}

// Groups returns every stored group for test assertions.
func (m *FakeDraftRepository) Groups() []*domain.DraftGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DraftGroup, len(m.groups))
	copy(out, m.groups)
	return out
}

// ──────────────────────────────────────────────
// FAKE OBSERVATION REPOSITORY
// ──────────────────────────────────────────────

// FakeObservationRepository is an in-memory ObservationRepository.
type FakeObservationRepository struct {
	mu   sync.Mutex
	rows []repository.RouteSegmentObservation

	AppendBatchCallCount int32
	AppendBatchError     error
}

// NewFakeObservationRepository creates an empty fake observation repository.
func NewFakeObservationRepository() *FakeObservationRepository {
	return &FakeObservationRepository{}
}

func (m *FakeObservationRepository) AppendBatch(ctx context.Context, obs []repository.RouteSegmentObservation) error {
	atomic.AddInt32(&m.AppendBatchCallCount, 1)
	if m.AppendBatchError != nil {
		return m.AppendBatchError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, obs...)
	return nil
}

func (m *FakeObservationRepository) SampleRecent(ctx context.Context, fromKey, toKey string, profile domain.RoutingProfile, limit int) ([]repository.RouteSegmentObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.RouteSegmentObservation, 0, len(m.rows))
	out = append(out, m.rows...)
	if len(out) > limit && limit > 0 {
		out = out[:limit]
	}
	return out, nil
}

// Rows returns every appended observation for test assertions.
func (m *FakeObservationRepository) Rows() []repository.RouteSegmentObservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.RouteSegmentObservation, len(m.rows))
	copy(out, m.rows)
	return out
}

// ──────────────────────────────────────────────
// FAKE GEO INDEX
// ──────────────────────────────────────────────

// FakeGeoIndex is an in-memory stand-in for the Redis geo-index, tracking
// only what the handler needs: the latest point pushed per driver.
type FakeGeoIndex struct {
	mu       sync.Mutex
	points   map[string]domain.Point
	UpdateError error
}

// NewFakeGeoIndex creates an empty fake geo-index.
func NewFakeGeoIndex() *FakeGeoIndex {
	return &FakeGeoIndex{points: make(map[string]domain.Point)}
}

func (m *FakeGeoIndex) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[driverID] = domain.Point{Lat: lat, Lng: lng}
	return nil
}

// PointFor returns the last point pushed for a driver, for test assertions.
func (m *FakeGeoIndex) PointFor(driverID string) (domain.Point, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.points[driverID]
	return p, ok
}

// ──────────────────────────────────────────────
// FAKE DISTANCE CACHE REPOSITORY
// ──────────────────────────────────────────────

// FakeDistanceCacheRepository is an in-memory DistanceCacheRepository.
type FakeDistanceCacheRepository struct {
	mu      sync.Mutex
	entries map[string]*domain.DistanceCacheEntry

	GetCallCount int32
	PutCallCount int32
}

// NewFakeDistanceCacheRepository creates an empty fake distance cache.
func NewFakeDistanceCacheRepository() *FakeDistanceCacheRepository {
	return &FakeDistanceCacheRepository{entries: make(map[string]*domain.DistanceCacheEntry)}
}

func (m *FakeDistanceCacheRepository) Get(ctx context.Context, key string) (*domain.DistanceCacheEntry, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *e
	return &copy, nil
}

func (m *FakeDistanceCacheRepository) GetMany(ctx context.Context, keys []string) ([]*domain.DistanceCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DistanceCacheEntry
	for _, k := range keys {
		if e, ok := m.entries[k]; ok {
			copy := *e
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (m *FakeDistanceCacheRepository) Put(ctx context.Context, entry *domain.DistanceCacheEntry) error {
	atomic.AddInt32(&m.PutCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *entry
	m.entries[entry.Key] = &copy
	return nil
}

func (m *FakeDistanceCacheRepository) PutMany(ctx context.Context, entries []*domain.DistanceCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		copy := *e
		m.entries[e.Key] = &copy
		atomic.AddInt32(&m.PutCallCount, 1)
	}
	return nil
}

func (m *FakeDistanceCacheRepository) DeleteExpired(ctx context.Context, asOf time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if e.ExpiresAt.Before(asOf) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of entries currently cached, for test assertions.
func (m *FakeDistanceCacheRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ──────────────────────────────────────────────
// FAKE DISTANCE PROVIDER
// ──────────────────────────────────────────────

// FakeDistanceProvider is a scriptable stand-in for the gRPC routing
// provider: each call delegates to RouteFunc/MatrixFunc when set, or
// returns a zero-valued result and a nil error otherwise.
type FakeDistanceProvider struct {
	mu sync.Mutex

	RouteFunc  func(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (provider.Route, error)
	MatrixFunc func(ctx context.Context, points []domain.Point, profile domain.RoutingProfile) (provider.MatrixResult, error)

	RouteCallCount  int32
	MatrixCallCount int32
}

func (m *FakeDistanceProvider) Route(ctx context.Context, from, to domain.Point, profile domain.RoutingProfile) (provider.Route, error) {
	atomic.AddInt32(&m.RouteCallCount, 1)
	if m.RouteFunc != nil {
		return m.RouteFunc(ctx, from, to, profile)
	}
	return provider.Route{}, nil
}

func (m *FakeDistanceProvider) Matrix(ctx context.Context, points []domain.Point, profile domain.RoutingProfile) (provider.MatrixResult, error) {
	atomic.AddInt32(&m.MatrixCallCount, 1)
	if m.MatrixFunc != nil {
		return m.MatrixFunc(ctx, points, profile)
	}
	return provider.MatrixResult{}, nil
}

// ──────────────────────────────────────────────
// FAKE JOB QUEUE
// ──────────────────────────────────────────────

// FakeQueue is a stand-in for workqueue.Queue, recording every job it's
// handed instead of touching Redis.
type FakeQueue struct {
	mu   sync.Mutex
	jobs []workqueue.Job

	EnqueueErr error
}

func NewFakeQueue() *FakeQueue {
	return &FakeQueue{}
}

func (m *FakeQueue) Enqueue(ctx context.Context, job workqueue.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// Jobs returns a copy of every job enqueued so far, for test assertions.
func (m *FakeQueue) Jobs() []workqueue.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]workqueue.Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}
