// Package mocks provides testify mocks for the domain interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t testingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

func as[T any](v any) T {
	var zero T
	if v == nil {
		return zero
	}
	return v.(T)
}

// MockGateway mocks interfaces.Gateway.
type MockGateway struct {
	mock.Mock
}

// NewMockGateway creates a MockGateway that asserts its expectations on cleanup.
func NewMockGateway(t testingT) *MockGateway {
	m := &MockGateway{}
	register(&m.Mock, t)
	return m
}

func (m *MockGateway) TestConnection(ctx context.Context, dialect interfaces.Dialect, creds domain.Credentials) (*domain.ConnectionTest, error) {
	args := m.Called(ctx, dialect, creds)
	return as[*domain.ConnectionTest](args.Get(0)), args.Error(1)
}

func (m *MockGateway) ListTables(ctx context.Context, dialect interfaces.Dialect, creds domain.Credentials) ([]domain.Table, error) {
	args := m.Called(ctx, dialect, creds)
	return as[[]domain.Table](args.Get(0)), args.Error(1)
}

func (m *MockGateway) ListConstraints(ctx context.Context, dialect interfaces.Dialect, creds domain.Credentials) ([]domain.Constraint, error) {
	args := m.Called(ctx, dialect, creds)
	return as[[]domain.Constraint](args.Get(0)), args.Error(1)
}

func (m *MockGateway) PreviewTable(ctx context.Context, dialect interfaces.Dialect, creds domain.Credentials, table string, limit int) (any, error) {
	args := m.Called(ctx, dialect, creds, table, limit)
	return args.Get(0), args.Error(1)
}

func (m *MockGateway) RunQuery(ctx context.Context, dialect interfaces.Dialect, creds domain.Credentials, sql string, limit int) (any, error) {
	args := m.Called(ctx, dialect, creds, sql, limit)
	return args.Get(0), args.Error(1)
}

// MockBoundGateway is a MockGateway that also accepts bound queries.
type MockBoundGateway struct {
	MockGateway
}

// NewMockBoundGateway creates a MockBoundGateway.
func NewMockBoundGateway(t testingT) *MockBoundGateway {
	m := &MockBoundGateway{}
	register(&m.Mock, t)
	return m
}

func (m *MockBoundGateway) SupportsBinding(dialect interfaces.Dialect) bool {
	return m.Called(dialect).Bool(0)
}

func (m *MockBoundGateway) RunBoundQuery(ctx context.Context, dialect interfaces.Dialect, creds domain.Credentials, sql string, params []any, limit int) (any, error) {
	args := m.Called(ctx, dialect, creds, sql, params, limit)
	return args.Get(0), args.Error(1)
}

// MockConnectionRepository mocks interfaces.ConnectionRepository.
type MockConnectionRepository struct {
	mock.Mock
}

func NewMockConnectionRepository(t testingT) *MockConnectionRepository {
	m := &MockConnectionRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockConnectionRepository) Get(ctx context.Context, id string) (*domain.Connection, error) {
	args := m.Called(ctx, id)
	return as[*domain.Connection](args.Get(0)), args.Error(1)
}

func (m *MockConnectionRepository) List(ctx context.Context, workspaceID string) ([]*domain.Connection, error) {
	args := m.Called(ctx, workspaceID)
	return as[[]*domain.Connection](args.Get(0)), args.Error(1)
}

func (m *MockConnectionRepository) Create(ctx context.Context, c *domain.Connection) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockConnectionRepository) RecordTest(ctx context.Context, id string, result domain.ConnectionTest, at time.Time) error {
	return m.Called(ctx, id, result, at).Error(0)
}

// MockHistoryRepository mocks interfaces.HistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

func NewMockHistoryRepository(t testingT) *MockHistoryRepository {
	m := &MockHistoryRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockHistoryRepository) Create(ctx context.Context, h *domain.QueryHistory) error {
	return m.Called(ctx, h).Error(0)
}

func (m *MockHistoryRepository) Get(ctx context.Context, workspaceID, id string) (*domain.QueryHistory, error) {
	args := m.Called(ctx, workspaceID, id)
	return as[*domain.QueryHistory](args.Get(0)), args.Error(1)
}

func (m *MockHistoryRepository) List(ctx context.Context, filter domain.HistoryFilter) ([]*domain.QueryHistory, error) {
	args := m.Called(ctx, filter)
	return as[[]*domain.QueryHistory](args.Get(0)), args.Error(1)
}

func (m *MockHistoryRepository) Delete(ctx context.Context, workspaceID, id string) error {
	return m.Called(ctx, workspaceID, id).Error(0)
}

// MockHistorySink mocks interfaces.HistorySink.
type MockHistorySink struct {
	mock.Mock
}

func NewMockHistorySink(t testingT) *MockHistorySink {
	m := &MockHistorySink{}
	register(&m.Mock, t)
	return m
}

func (m *MockHistorySink) Record(ctx context.Context, h *domain.QueryHistory) error {
	return m.Called(ctx, h).Error(0)
}

// MockScheduledQueryRepository mocks interfaces.ScheduledQueryRepository.
type MockScheduledQueryRepository struct {
	mock.Mock
}

func NewMockScheduledQueryRepository(t testingT) *MockScheduledQueryRepository {
	m := &MockScheduledQueryRepository{}
	register(&m.Mock, t)
	return m
}

func (m *MockScheduledQueryRepository) Get(ctx context.Context, id string) (*domain.ScheduledQuery, error) {
	args := m.Called(ctx, id)
	return as[*domain.ScheduledQuery](args.Get(0)), args.Error(1)
}

func (m *MockScheduledQueryRepository) List(ctx context.Context, workspaceID string) ([]*domain.ScheduledQuery, error) {
	args := m.Called(ctx, workspaceID)
	return as[[]*domain.ScheduledQuery](args.Get(0)), args.Error(1)
}

func (m *MockScheduledQueryRepository) ListEnabled(ctx context.Context) ([]*domain.ScheduledQuery, error) {
	args := m.Called(ctx)
	return as[[]*domain.ScheduledQuery](args.Get(0)), args.Error(1)
}

func (m *MockScheduledQueryRepository) Create(ctx context.Context, q *domain.ScheduledQuery) error {
	return m.Called(ctx, q).Error(0)
}

func (m *MockScheduledQueryRepository) Update(ctx context.Context, q *domain.ScheduledQuery) error {
	return m.Called(ctx, q).Error(0)
}

func (m *MockScheduledQueryRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockScheduledQueryRepository) UpdateRunState(ctx context.Context, id string, state domain.RunState) error {
	return m.Called(ctx, id, state).Error(0)
}

func (m *MockScheduledQueryRepository) UpdateNextRun(ctx context.Context, id string, next *time.Time) error {
	return m.Called(ctx, id, next).Error(0)
}

// MockDecrypter mocks interfaces.Decrypter.
type MockDecrypter struct {
	mock.Mock
}

func NewMockDecrypter(t testingT) *MockDecrypter {
	m := &MockDecrypter{}
	register(&m.Mock, t)
	return m
}

func (m *MockDecrypter) Decrypt(ciphertext string) (domain.Credentials, error) {
	args := m.Called(ciphertext)
	return as[domain.Credentials](args.Get(0)), args.Error(1)
}

// MockDeliveryService mocks interfaces.DeliveryService.
type MockDeliveryService struct {
	mock.Mock
}

func NewMockDeliveryService(t testingT) *MockDeliveryService {
	m := &MockDeliveryService{}
	register(&m.Mock, t)
	return m
}

func (m *MockDeliveryService) Send(ctx context.Context, msg interfaces.Message) error {
	return m.Called(ctx, msg).Error(0)
}

var (
	_ interfaces.Gateway                  = (*MockGateway)(nil)
	_ interfaces.BoundQueryRunner         = (*MockBoundGateway)(nil)
	_ interfaces.ConnectionRepository     = (*MockConnectionRepository)(nil)
	_ interfaces.HistoryRepository        = (*MockHistoryRepository)(nil)
	_ interfaces.HistorySink              = (*MockHistorySink)(nil)
	_ interfaces.ScheduledQueryRepository = (*MockScheduledQueryRepository)(nil)
	_ interfaces.Decrypter                = (*MockDecrypter)(nil)
	_ interfaces.DeliveryService          = (*MockDeliveryService)(nil)
)
