package mocks

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockRemoteStore is a mock implementation of ports.RemoteStore
type MockRemoteStore struct {
	mock.Mock
}

func NewMockRemoteStore() *MockRemoteStore {
	return &MockRemoteStore{}
}

func (m *MockRemoteStore) List(ctx context.Context) ([]domain.Ticket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockRemoteStore) Upsert(ctx context.Context, ticket domain.Ticket, action ports.UpsertAction) bool {
	args := m.Called(ctx, ticket, action)
	return args.Bool(0)
}

// MockKeyValueStore is a mock implementation of ports.KeyValueStore
type MockKeyValueStore struct {
	mock.Mock
}

func NewMockKeyValueStore() *MockKeyValueStore {
	return &MockKeyValueStore{}
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyValueStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockKeyValueStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSheetRepository is a mock implementation of ports.SheetRepository
type MockSheetRepository struct {
	mock.Mock
}

func NewMockSheetRepository() *MockSheetRepository {
	return &MockSheetRepository{}
}

func (m *MockSheetRepository) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockSheetRepository) UpsertTicket(ctx context.Context, ticket domain.Ticket) (bool, error) {
	args := m.Called(ctx, ticket)
	return args.Bool(0), args.Error(1)
}

// MockExporter is a mock implementation of ports.Exporter
type MockExporter struct {
	mock.Mock
}

func NewMockExporter() *MockExporter {
	return &MockExporter{}
}

func (m *MockExporter) Export(w io.Writer, tickets []domain.Ticket) error {
	args := m.Called(w, tickets)
	return args.Error(0)
}

func (m *MockExporter) FileName(now time.Time) string {
	args := m.Called(now)
	return args.String(0)
}

func (m *MockExporter) ContentType() string {
	args := m.Called()
	return args.String(0)
}

// MockWorkspace is a mock implementation of ports.Workspace
type MockWorkspace struct {
	mock.Mock
}

func NewMockWorkspace() *MockWorkspace {
	return &MockWorkspace{}
}

func (m *MockWorkspace) State() domain.DeskState {
	args := m.Called()
	return args.Get(0).(domain.DeskState)
}

func (m *MockWorkspace) Load(ctx context.Context, force bool) error {
	args := m.Called(ctx, force)
	return args.Error(0)
}

func (m *MockWorkspace) SaveFormDraft(form domain.TicketForm) {
	m.Called(form)
}

func (m *MockWorkspace) CreateTicket(ctx context.Context, form domain.TicketForm) (domain.Ticket, error) {
	args := m.Called(ctx, form)
	return args.Get(0).(domain.Ticket), args.Error(1)
}

func (m *MockWorkspace) AdvanceStatus(ctx context.Context, ticketID int64, target domain.TicketStatus) (ports.TransitionResult, error) {
	args := m.Called(ctx, ticketID, target)
	return args.Get(0).(ports.TransitionResult), args.Error(1)
}

func (m *MockWorkspace) StartRating(ticketID int64) (domain.RatingDraft, error) {
	args := m.Called(ticketID)
	return args.Get(0).(domain.RatingDraft), args.Error(1)
}

func (m *MockWorkspace) UpdateRatingDraft(draft domain.RatingDraft) (domain.RatingDraft, error) {
	args := m.Called(draft)
	return args.Get(0).(domain.RatingDraft), args.Error(1)
}

func (m *MockWorkspace) SubmitRating(ctx context.Context) (domain.Ticket, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Ticket), args.Error(1)
}

func (m *MockWorkspace) SetView(view domain.View) {
	m.Called(view)
}

func (m *MockWorkspace) SetFilter(ctx context.Context, status domain.TicketStatus) error {
	args := m.Called(ctx, status)
	return args.Error(0)
}

func (m *MockWorkspace) ExportCompleted(w io.Writer) error {
	args := m.Called(w)
	return args.Error(0)
}

func (m *MockWorkspace) Wait() {
	m.Called()
}

// MockWorkspaceProvider is a mock implementation of ports.WorkspaceProvider
type MockWorkspaceProvider struct {
	mock.Mock
}

func NewMockWorkspaceProvider() *MockWorkspaceProvider {
	return &MockWorkspaceProvider{}
}

func (m *MockWorkspaceProvider) Acquire(clientID uuid.UUID) ports.Workspace {
	args := m.Called(clientID)
	return args.Get(0).(ports.Workspace)
}

func (m *MockWorkspaceProvider) Shutdown() {
	m.Called()
}

// RecordingPublisher is a ports.EventPublisher that keeps every event it is
// given, for assertions on alerts.
type RecordingPublisher struct {
	mu     sync.Mutex
	events map[uuid.UUID][]domain.Event
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{events: make(map[uuid.UUID][]domain.Event)}
}

func (p *RecordingPublisher) Publish(clientID uuid.UUID, event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[clientID] = append(p.events[clientID], event)
}

// Alerts returns the alerts published to clientID in order.
func (p *RecordingPublisher) Alerts(clientID uuid.UUID) []domain.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()

	var alerts []domain.Alert
	for _, e := range p.events[clientID] {
		if alert, ok := e.Payload.(domain.Alert); ok && e.Type == domain.EventAlert {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// Count returns how many events of type t were published to clientID.
func (p *RecordingPublisher) Count(clientID uuid.UUID, t domain.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.events[clientID] {
		if e.Type == t {
			n++
		}
	}
	return n
}
