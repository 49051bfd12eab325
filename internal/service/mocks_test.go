package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/repository"
)

// MockCallRepository is a mock implementation of domain.CallRepository for testing.
type MockCallRepository struct {
	mu           sync.RWMutex
	records      map[uuid.UUID]*domain.CallRecord
	byProviderID map[string]*domain.CallRecord

	// For tracking method calls
	CreateCalls          int
	UpdateCalls          int
	GetByIDCalls         int
	GetByProviderIDCalls int
	ListCallsCount       int
	CountCalls           int

	// For injecting errors
	CreateError          error
	UpdateError          error
	GetByIDError         error
	GetByProviderIDError error
	ListError            error
	CountError           error
}

func NewMockCallRepository() *MockCallRepository {
	return &MockCallRepository{
		records:      make(map[uuid.UUID]*domain.CallRecord),
		byProviderID: make(map[string]*domain.CallRecord),
	}
}

func (m *MockCallRepository) Create(ctx context.Context, record *domain.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	m.records[record.ID] = record
	m.byProviderID[record.ProviderCallID] = record
	return nil
}

func (m *MockCallRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.GetByIDCalls++
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	if record, ok := m.records[id]; ok {
		return record, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockCallRepository) GetByProviderCallID(ctx context.Context, providerCallID string) (*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.GetByProviderIDCalls++
	if m.GetByProviderIDError != nil {
		return nil, m.GetByProviderIDError
	}
	if record, ok := m.byProviderID[providerCallID]; ok {
		return record, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockCallRepository) Update(ctx context.Context, record *domain.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.records[record.ID]; !ok {
		return repository.ErrNotFound
	}
	m.records[record.ID] = record
	m.byProviderID[record.ProviderCallID] = record
	return nil
}

func (m *MockCallRepository) List(ctx context.Context, limit, offset int) ([]*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.ListCallsCount++
	if m.ListError != nil {
		return nil, m.ListError
	}
	var result []*domain.CallRecord
	for _, record := range m.records {
		result = append(result, record)
	}
	if offset >= len(result) {
		return []*domain.CallRecord{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (m *MockCallRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.CountCalls++
	if m.CountError != nil {
		return 0, m.CountError
	}
	return len(m.records), nil
}

func (m *MockCallRepository) ListByOutcome(ctx context.Context, outcome domain.CallOutcome, limit, offset int) ([]*domain.CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.CallRecord
	for _, record := range m.records {
		if record.Outcome == outcome {
			result = append(result, record)
		}
	}
	if offset >= len(result) {
		return []*domain.CallRecord{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// MockOutcomeReporter is a mock implementation of OutcomeReporter for testing.
type MockOutcomeReporter struct {
	mu sync.Mutex

	EnqueueCalls      int
	EnqueueError      error
	LastCallID        uuid.UUID
	LastUsedResponses []int64
}

func (m *MockOutcomeReporter) Enqueue(callID uuid.UUID, usedResponses []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnqueueCalls++
	if m.EnqueueError != nil {
		return m.EnqueueError
	}
	m.LastCallID = callID
	m.LastUsedResponses = usedResponses
	return nil
}

// mockResponseRepo serves a fixed template list to the engine's selector.
type mockResponseRepo struct {
	templates []*domain.ResponseTemplate
}

func (m *mockResponseRepo) GetCandidates(ctx context.Context, stage domain.Stage, subCategory string, limit int) ([]*domain.ResponseTemplate, error) {
	var out []*domain.ResponseTemplate
	for _, tpl := range m.templates {
		if tpl.Stage == stage {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (m *mockResponseRepo) GetByStage(ctx context.Context, stage domain.Stage, limit int) ([]*domain.ResponseTemplate, error) {
	return m.GetCandidates(ctx, stage, "", limit)
}

func (m *mockResponseRepo) RecordUsage(ctx context.Context, id int64, ledToMeeting bool) error {
	return nil
}

func (m *mockResponseRepo) TopPerforming(ctx context.Context, minUses, limit int) ([]*domain.ResponseTemplate, error) {
	return nil, nil
}

type mockRedirectRepo struct{}

func (m *mockRedirectRepo) GetBest(ctx context.Context, category domain.RedirectCategory) (*domain.RedirectTemplate, error) {
	return &domain.RedirectTemplate{
		ID:             1,
		Category:       domain.RedirectGeneral,
		Acknowledgment: "I understand.",
		RedirectDirect: "But back to your website.",
		RedirectSoft:   "Anyway, about your online presence.",
	}, nil
}

func (m *mockRedirectRepo) RecordUsage(ctx context.Context, id int64, successful bool) error {
	return nil
}

type mockFillerRepo struct{}

func (m *mockFillerRepo) RandomFiller(ctx context.Context) (string, error) {
	return "", nil
}
