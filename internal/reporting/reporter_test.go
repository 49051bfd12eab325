package reporting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/ai"
	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/domain"
)

type mockCallRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.CallRecord

	GetByIDCalls int
	UpdateCalls  int
	GetByIDError error
	UpdateError  error
}

func newMockCallRepo(records ...*domain.CallRecord) *mockCallRepo {
	m := &mockCallRepo{records: make(map[uuid.UUID]*domain.CallRecord)}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

func (m *mockCallRepo) Create(ctx context.Context, record *domain.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
	return nil
}

func (m *mockCallRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetByIDCalls++
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	if r, ok := m.records[id]; ok {
		return r, nil
	}
	return nil, errors.New("record not found")
}

func (m *mockCallRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (*domain.CallRecord, error) {
	return nil, errors.New("record not found")
}

func (m *mockCallRepo) Update(ctx context.Context, record *domain.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.records[record.ID] = record
	return nil
}

func (m *mockCallRepo) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UpdateCalls
}

func (m *mockCallRepo) List(ctx context.Context, limit, offset int) ([]*domain.CallRecord, error) {
	return nil, nil
}

func (m *mockCallRepo) Count(ctx context.Context) (int, error) { return len(m.records), nil }

func (m *mockCallRepo) ListByOutcome(ctx context.Context, outcome domain.CallOutcome, limit, offset int) ([]*domain.CallRecord, error) {
	return nil, nil
}

type usage struct {
	id           int64
	ledToMeeting bool
}

type mockResponseRepo struct {
	mu     sync.Mutex
	Usages []usage

	RecordUsageError error
}

func (m *mockResponseRepo) GetCandidates(ctx context.Context, stage domain.Stage, subCategory string, limit int) ([]*domain.ResponseTemplate, error) {
	return nil, nil
}

func (m *mockResponseRepo) GetByStage(ctx context.Context, stage domain.Stage, limit int) ([]*domain.ResponseTemplate, error) {
	return nil, nil
}

func (m *mockResponseRepo) RecordUsage(ctx context.Context, id int64, ledToMeeting bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordUsageError != nil {
		return m.RecordUsageError
	}
	m.Usages = append(m.Usages, usage{id: id, ledToMeeting: ledToMeeting})
	return nil
}

func (m *mockResponseRepo) TopPerforming(ctx context.Context, minUses, limit int) ([]*domain.ResponseTemplate, error) {
	return nil, nil
}

type mockPatternRepo struct {
	mu       sync.Mutex
	Patterns []*domain.LearnedPattern

	CreateError error
}

func (m *mockPatternRepo) Create(ctx context.Context, pattern *domain.LearnedPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	m.Patterns = append(m.Patterns, pattern)
	return nil
}

func (m *mockPatternRepo) ListByKind(ctx context.Context, kind domain.PatternKind, limit int) ([]*domain.LearnedPattern, error) {
	return nil, nil
}

type mockAnalyzer struct {
	mu       sync.Mutex
	Analysis *ai.Analysis
	Err      error
	Calls    int
}

func (m *mockAnalyzer) AnalyzeCall(ctx context.Context, transcript string) (*ai.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Analysis, nil
}

const sampleTranscript = "agent: Good morning, this is Petra from Moravia Webworks.\n" +
	"caller: hello, who is this\n" +
	"agent: Do you have a website for your company at the moment?\n" +
	"caller: no we don't have one\n"

func testRecord(transcript string) *domain.CallRecord {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	record := domain.NewCallRecord("CA100", domain.DirectionOutbound, "+420777111222", "brno-march", now)
	record.FinalStage = domain.StageDiscovery
	record.EndReason = domain.EndReasonGoodbye
	duration := 120
	record.DurationSeconds = &duration
	if transcript != "" {
		record.Transcript = &transcript
	}
	return record
}

func testConfig() *Config {
	return &Config{
		QueueSize:      8,
		WorkerCount:    1,
		JobTimeout:     5 * time.Second,
		AnalyzeRetries: 1,
		RetryInterval:  time.Millisecond,
	}
}

func newTestReporter(callRepo *mockCallRepo, analyzer Analyzer) (*Reporter, *mockResponseRepo, *mockPatternRepo) {
	responses := &mockResponseRepo{}
	patterns := &mockPatternRepo{}
	clk := clock.NewMock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	r := NewReporter(callRepo, responses, patterns, analyzer, clk, zap.NewNop(), nil, testConfig())
	return r, responses, patterns
}

func TestReporter_Process_ModelAnalysis(t *testing.T) {
	record := testRecord(sampleTranscript)
	callRepo := newMockCallRepo(record)
	analyzer := &mockAnalyzer{Analysis: &ai.Analysis{
		Outcome:         "success",
		SalesScore:      85,
		PositiveSignals: 3,
		ObjectionsCount: 1,
		Summary:         "Caller agreed to a meeting next week.",
	}}

	r, responses, patterns := newTestReporter(callRepo, analyzer)
	r.process(context.Background(), job{callID: record.ID, usedResponses: []int64{1, 3}})

	if analyzer.Calls != 1 {
		t.Errorf("analyzer calls = %d, want 1", analyzer.Calls)
	}
	if record.Outcome != domain.OutcomeSuccess {
		t.Errorf("Outcome = %q, want success", record.Outcome)
	}
	if record.Score == nil || *record.Score != 85 {
		t.Errorf("Score = %v, want 85", record.Score)
	}
	if record.Summary == nil || *record.Summary == "" {
		t.Error("Summary should be stored")
	}
	if record.PositiveSignals != 3 || record.ObjectionCount != 1 {
		t.Errorf("signals = %d, objections = %d", record.PositiveSignals, record.ObjectionCount)
	}

	if len(responses.Usages) != 2 {
		t.Fatalf("settled usages = %d, want 2", len(responses.Usages))
	}
	for _, u := range responses.Usages {
		if !u.ledToMeeting {
			t.Errorf("template %d should be credited for a successful call", u.id)
		}
	}

	if len(patterns.Patterns) != 2 {
		t.Fatalf("patterns = %d, want 2", len(patterns.Patterns))
	}
	for _, p := range patterns.Patterns {
		if p.Kind != domain.PatternSuccess {
			t.Errorf("Kind = %q, want success", p.Kind)
		}
		if p.SourceCall != record.ID {
			t.Error("pattern should reference the source call")
		}
	}
}

func TestReporter_Process_AnalyzerError_FallsBackToHeuristic(t *testing.T) {
	record := testRecord(sampleTranscript)
	record.MeetingScheduled = true
	callRepo := newMockCallRepo(record)
	analyzer := &mockAnalyzer{Err: errors.New("model unavailable")}

	r, responses, _ := newTestReporter(callRepo, analyzer)
	r.process(context.Background(), job{callID: record.ID, usedResponses: []int64{1}})

	// One initial attempt plus one retry.
	if analyzer.Calls != 2 {
		t.Errorf("analyzer calls = %d, want 2", analyzer.Calls)
	}
	if record.Outcome != domain.OutcomeSuccess {
		t.Errorf("Outcome = %q, want success from heuristic", record.Outcome)
	}
	if record.Score == nil || *record.Score != 85 {
		t.Errorf("Score = %v, want 85", record.Score)
	}
	if len(responses.Usages) != 1 || !responses.Usages[0].ledToMeeting {
		t.Error("usage should still settle on heuristic scoring")
	}
}

func TestReporter_Process_LowScore_FailurePatterns(t *testing.T) {
	record := testRecord(sampleTranscript)
	callRepo := newMockCallRepo(record)
	analyzer := &mockAnalyzer{Analysis: &ai.Analysis{Outcome: "no_interest", SalesScore: 20}}

	r, responses, patterns := newTestReporter(callRepo, analyzer)
	r.process(context.Background(), job{callID: record.ID, usedResponses: []int64{2}})

	if record.Outcome != domain.OutcomeNoInterest {
		t.Errorf("Outcome = %q, want no_interest", record.Outcome)
	}
	if len(patterns.Patterns) == 0 {
		t.Fatal("low-scoring call should produce failure patterns")
	}
	for _, p := range patterns.Patterns {
		if p.Kind != domain.PatternFailure {
			t.Errorf("Kind = %q, want failure", p.Kind)
		}
	}
	if len(responses.Usages) != 1 || responses.Usages[0].ledToMeeting {
		t.Error("failed call must not credit its templates")
	}
}

func TestReporter_Process_MidScore_LearnsNothing(t *testing.T) {
	record := testRecord(sampleTranscript)
	callRepo := newMockCallRepo(record)
	analyzer := &mockAnalyzer{Analysis: &ai.Analysis{Outcome: "callback", SalesScore: 55}}

	r, _, patterns := newTestReporter(callRepo, analyzer)
	r.process(context.Background(), job{callID: record.ID})

	if record.Outcome != domain.OutcomeCallback {
		t.Errorf("Outcome = %q, want callback", record.Outcome)
	}
	if len(patterns.Patterns) != 0 {
		t.Errorf("patterns = %d, want 0 for a middling score", len(patterns.Patterns))
	}
}

func TestReporter_Process_NoTranscript(t *testing.T) {
	record := testRecord("")
	callRepo := newMockCallRepo(record)
	analyzer := &mockAnalyzer{Analysis: &ai.Analysis{Outcome: "success", SalesScore: 90}}

	r, _, _ := newTestReporter(callRepo, analyzer)
	r.process(context.Background(), job{callID: record.ID})

	if analyzer.Calls != 0 {
		t.Errorf("analyzer calls = %d, want 0 without a transcript", analyzer.Calls)
	}
	if record.Outcome != domain.OutcomeNoAnswer {
		t.Errorf("Outcome = %q, want no_answer", record.Outcome)
	}
	if record.Score == nil || *record.Score != 0 {
		t.Errorf("Score = %v, want 0", record.Score)
	}
}

func TestReporter_Enqueue_NotRunning(t *testing.T) {
	r, _, _ := newTestReporter(newMockCallRepo(), nil)

	if err := r.Enqueue(uuid.New(), nil); err == nil {
		t.Error("Enqueue() should fail before Start()")
	}
}

func TestReporter_Enqueue_QueueFull(t *testing.T) {
	callRepo := newMockCallRepo()
	clk := clock.NewMock(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	cfg := testConfig()
	cfg.QueueSize = 1
	r := NewReporter(callRepo, &mockResponseRepo{}, &mockPatternRepo{}, nil, clk, zap.NewNop(), nil, cfg)

	// Mark running without workers so the queue fills up.
	r.running = true

	if err := r.Enqueue(uuid.New(), nil); err != nil {
		t.Fatalf("first Enqueue() error = %v", err)
	}
	if err := r.Enqueue(uuid.New(), nil); err == nil {
		t.Error("Enqueue() should fail once the queue is full")
	}
}

func TestReporter_StartStop_ProcessesJob(t *testing.T) {
	record := testRecord(sampleTranscript)
	callRepo := newMockCallRepo(record)
	analyzer := &mockAnalyzer{Analysis: &ai.Analysis{Outcome: "callback", SalesScore: 60}}

	r, _, _ := newTestReporter(callRepo, analyzer)
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := r.Enqueue(record.ID, []int64{1}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for callRepo.updateCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job was not processed in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if err := r.Enqueue(record.ID, nil); err == nil {
		t.Error("Enqueue() should fail after Stop()")
	}
}

func TestReporter_StartTwice(t *testing.T) {
	r, _, _ := newTestReporter(newMockCallRepo(), nil)
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(); err == nil {
		t.Error("second Start() should fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestAgentPhrases(t *testing.T) {
	transcript := "agent: short\n" +
		"agent: This phrase is long enough to count as a pattern.\n" +
		"caller: This caller line is also long but must be ignored.\n" +
		"agent: Another substantial agent phrase that qualifies here.\n"

	phrases := agentPhrases(transcript, 3)
	if len(phrases) != 2 {
		t.Fatalf("len(phrases) = %d, want 2", len(phrases))
	}
	for _, p := range phrases {
		if len(p) < minPatternChars {
			t.Errorf("phrase %q too short", p)
		}
	}
}

func TestHeuristicAnalysis(t *testing.T) {
	duration := func(d int) *int { return &d }
	transcript := sampleTranscript

	tests := []struct {
		name        string
		mutate      func(r *domain.CallRecord)
		wantOutcome string
		wantScore   int
	}{
		{
			name:        "no transcript means no answer",
			mutate:      func(r *domain.CallRecord) { r.Transcript = nil },
			wantOutcome: "no_answer",
			wantScore:   0,
		},
		{
			name:        "meeting scheduled wins",
			mutate:      func(r *domain.CallRecord) { r.MeetingScheduled = true },
			wantOutcome: "success",
			wantScore:   85,
		},
		{
			name:        "hard rejection",
			mutate:      func(r *domain.CallRecord) { r.EndReason = domain.EndReasonHardRejection },
			wantOutcome: "no_interest",
			wantScore:   10,
		},
		{
			name:        "long friendly goodbye suggests callback",
			mutate:      func(r *domain.CallRecord) { r.EndReason = domain.EndReasonGoodbye; r.DurationSeconds = duration(90) },
			wantOutcome: "callback",
			wantScore:   50,
		},
		{
			name:        "short call without signals",
			mutate:      func(r *domain.CallRecord) { r.EndReason = domain.EndReasonNoInput; r.DurationSeconds = duration(20) },
			wantOutcome: "no_interest",
			wantScore:   30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := testRecord(transcript)
			tt.mutate(record)

			analysis := heuristicAnalysis(record)
			if analysis.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", analysis.Outcome, tt.wantOutcome)
			}
			if analysis.SalesScore != tt.wantScore {
				t.Errorf("SalesScore = %d, want %d", analysis.SalesScore, tt.wantScore)
			}
		})
	}
}
