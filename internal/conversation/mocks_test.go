package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/lososs/callagent/internal/domain"
)

var errNotFound = errors.New("not found")

// MockResponseRepository is an in-memory domain.ResponseRepository for testing.
type MockResponseRepository struct {
	mu        sync.RWMutex
	templates []*domain.ResponseTemplate

	// For tracking method calls
	GetCandidatesCalls int
	GetByStageCalls    int
	RecordUsageCalls   int

	// For injecting errors
	GetCandidatesError error
	GetByStageError    error
	RecordUsageError   error

	// Usage recorded as (id, ledToMeeting) pairs
	RecordedUsage map[int64]bool
}

func NewMockResponseRepository(templates ...*domain.ResponseTemplate) *MockResponseRepository {
	return &MockResponseRepository{
		templates:     templates,
		RecordedUsage: make(map[int64]bool),
	}
}

func (m *MockResponseRepository) GetCandidates(ctx context.Context, stage domain.Stage, subCategory string, limit int) ([]*domain.ResponseTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCandidatesCalls++
	if m.GetCandidatesError != nil {
		return nil, m.GetCandidatesError
	}
	var out []*domain.ResponseTemplate
	for _, t := range m.templates {
		if t.Stage == stage && (subCategory == "" || t.SubCategory == subCategory) {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockResponseRepository) GetByStage(ctx context.Context, stage domain.Stage, limit int) ([]*domain.ResponseTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetByStageCalls++
	if m.GetByStageError != nil {
		return nil, m.GetByStageError
	}
	var out []*domain.ResponseTemplate
	for _, t := range m.templates {
		if t.Stage == stage {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockResponseRepository) RecordUsage(ctx context.Context, id int64, ledToMeeting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordUsageCalls++
	if m.RecordUsageError != nil {
		return m.RecordUsageError
	}
	m.RecordedUsage[id] = ledToMeeting
	return nil
}

func (m *MockResponseRepository) TopPerforming(ctx context.Context, minUses, limit int) ([]*domain.ResponseTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ResponseTemplate
	for _, t := range m.templates {
		if t.TimesUsed >= minUses {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MockRedirectRepository is an in-memory domain.RedirectRepository for testing.
type MockRedirectRepository struct {
	mu        sync.RWMutex
	templates map[domain.RedirectCategory]*domain.RedirectTemplate

	GetBestCalls     int
	RecordUsageCalls int

	GetBestError     error
	RecordUsageError error
}

func NewMockRedirectRepository(templates ...*domain.RedirectTemplate) *MockRedirectRepository {
	byCategory := make(map[domain.RedirectCategory]*domain.RedirectTemplate)
	for _, t := range templates {
		byCategory[t.Category] = t
	}
	return &MockRedirectRepository{templates: byCategory}
}

func (m *MockRedirectRepository) GetBest(ctx context.Context, category domain.RedirectCategory) (*domain.RedirectTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetBestCalls++
	if m.GetBestError != nil {
		return nil, m.GetBestError
	}
	if t, ok := m.templates[category]; ok {
		return t, nil
	}
	if t, ok := m.templates[domain.RedirectGeneral]; ok {
		return t, nil
	}
	return nil, errNotFound
}

func (m *MockRedirectRepository) RecordUsage(ctx context.Context, id int64, successful bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordUsageCalls++
	return m.RecordUsageError
}

// MockFillerRepository returns a fixed filler phrase.
type MockFillerRepository struct {
	mu     sync.Mutex
	Filler string

	RandomFillerCalls int
	RandomFillerError error
}

func (m *MockFillerRepository) RandomFiller(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RandomFillerCalls++
	if m.RandomFillerError != nil {
		return "", m.RandomFillerError
	}
	return m.Filler, nil
}

// MockNaturalizer rewrites templates with a fixed result or error.
type MockNaturalizer struct {
	mu     sync.Mutex
	Result string
	Err    error

	NaturalizeCalls int
	LastTemplate    string
	LastUtterance   string
}

func (m *MockNaturalizer) Naturalize(ctx context.Context, template, utterance string, history []domain.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NaturalizeCalls++
	m.LastTemplate = template
	m.LastUtterance = utterance
	if m.Err != nil {
		return "", m.Err
	}
	if m.Result == "" {
		return template, nil
	}
	return m.Result, nil
}

// testTopics is a representative topic whitelist for classifier tests.
func testTopics() []*domain.TopicDefinition {
	return []*domain.TopicDefinition{
		{ID: 1, Name: "website", Category: "core", Keywords: []string{"website", "web", "site", "online", "domain"}, Priority: 10, IsCore: true},
		{ID: 2, Name: "pricing", Category: "business", Keywords: []string{"price", "cost", "expensive", "cheap", "budget", "how much"}, Priority: 9},
		{ID: 3, Name: "meeting", Category: "business", Keywords: []string{"meeting", "appointment", "schedule", "tomorrow", "call back"}, Priority: 9},
		{ID: 4, Name: "business", Category: "business", Keywords: []string{"company", "business", "customers", "clients", "services"}, Priority: 8},
		{ID: 5, Name: "marketing", Category: "core", Keywords: []string{"seo", "google", "marketing", "advertising", "social media"}, Priority: 7},
	}
}
