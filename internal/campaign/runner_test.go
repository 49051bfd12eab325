package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/domain"
)

// mockDialer is a mock implementation of CallStarter for testing.
type mockDialer struct {
	Calls    int
	FailNext int
	Err      error
	LastTo   string
	LastURL  string
}

func (m *mockDialer) StartCall(ctx context.Context, toNumber, webhookURL string) (string, error) {
	m.Calls++
	m.LastTo = toNumber
	m.LastURL = webhookURL
	if m.FailNext > 0 {
		m.FailNext--
		return "", m.Err
	}
	return "CA-test", nil
}

// mockCallRepo is a mock implementation of domain.CallRepository.
type mockCallRepo struct {
	Created     []*domain.CallRecord
	CreateError error
}

func (m *mockCallRepo) Create(ctx context.Context, record *domain.CallRecord) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.Created = append(m.Created, record)
	return nil
}

func (m *mockCallRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	return nil, errors.New("record not found")
}

func (m *mockCallRepo) GetByProviderCallID(ctx context.Context, providerCallID string) (*domain.CallRecord, error) {
	return nil, errors.New("record not found")
}

func (m *mockCallRepo) Update(ctx context.Context, record *domain.CallRecord) error {
	return nil
}

func (m *mockCallRepo) List(ctx context.Context, limit, offset int) ([]*domain.CallRecord, error) {
	return nil, nil
}

func (m *mockCallRepo) Count(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *mockCallRepo) ListByOutcome(ctx context.Context, outcome domain.CallOutcome, limit, offset int) ([]*domain.CallRecord, error) {
	return nil, nil
}

func testWindow(t *testing.T) Window {
	t.Helper()
	w, err := ParseWindow("09:00", "17:00")
	if err != nil {
		t.Fatalf("ParseWindow() error = %v", err)
	}
	return w
}

// tuesdayMorning is inside the test window.
func tuesdayMorning() time.Time {
	return time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
}

func newTestRunner(t *testing.T, dialer *mockDialer, repo *mockCallRepo, cfg Config) *Runner {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "brno-march"
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "https://agent.example.com"
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = time.Millisecond
	}
	cfg.Window = testWindow(t)

	r, err := NewRunner(dialer, nil, repo, clock.NewMock(tuesdayMorning()), zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return r
}

func TestRunner_Run(t *testing.T) {
	dialer := &mockDialer{}
	repo := &mockCallRepo{}
	runner := newTestRunner(t, dialer, repo, Config{CallsPerMinute: 60})

	contacts := []Contact{
		{Name: "Jan Novak", Phone: "+420777111222"},
		{Name: "Petra Svoboda", Phone: "+420777333444"},
	}

	summary, err := runner.Run(context.Background(), contacts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Attempted != 2 || summary.Started != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if dialer.Calls != 2 {
		t.Errorf("dialer.Calls = %d, want 2", dialer.Calls)
	}
	if dialer.LastURL != "https://agent.example.com/outbound?campaign=brno-march" {
		t.Errorf("webhook URL = %q", dialer.LastURL)
	}
	if len(repo.Created) != 2 {
		t.Fatalf("created records = %d, want 2", len(repo.Created))
	}
	record := repo.Created[0]
	if record.ProviderCallID != "CA-test" || record.Campaign != "brno-march" {
		t.Errorf("unexpected record: %+v", record)
	}
	if record.Direction != domain.DirectionOutbound {
		t.Errorf("direction = %q", record.Direction)
	}
}

func TestRunner_Run_RetriesTransientDialFailure(t *testing.T) {
	dialer := &mockDialer{FailNext: 1, Err: errors.New("provider 500")}
	runner := newTestRunner(t, dialer, &mockCallRepo{}, Config{MaxAttempts: 3})

	summary, err := runner.Run(context.Background(), []Contact{{Phone: "+420777111222"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Started != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if dialer.Calls != 2 {
		t.Errorf("dialer.Calls = %d, want 2 (one failure, one retry)", dialer.Calls)
	}
}

func TestRunner_Run_GivesUpAfterMaxAttempts(t *testing.T) {
	dialer := &mockDialer{FailNext: 10, Err: errors.New("provider 500")}
	runner := newTestRunner(t, dialer, &mockCallRepo{}, Config{MaxAttempts: 2})

	summary, err := runner.Run(context.Background(), []Contact{{Phone: "+420777111222"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Failed != 1 || summary.Started != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if dialer.Calls != 2 {
		t.Errorf("dialer.Calls = %d, want 2", dialer.Calls)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Phone != "+420777111222" {
		t.Errorf("errors = %+v", summary.Errors)
	}
}

func TestRunner_Run_StopsOutsideCallingHours(t *testing.T) {
	dialer := &mockDialer{}
	runner := newTestRunner(t, dialer, &mockCallRepo{}, Config{})
	runner.clock.(*clock.Mock).Set(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC))

	contacts := []Contact{{Phone: "+420777111222"}, {Phone: "+420777333444"}}

	summary, err := runner.Run(context.Background(), contacts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Skipped != 2 || summary.Attempted != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if dialer.Calls != 0 {
		t.Errorf("dialer.Calls = %d, want 0", dialer.Calls)
	}
}

func TestRunner_Run_DryRunNeverDials(t *testing.T) {
	dialer := &mockDialer{}
	repo := &mockCallRepo{}
	runner := newTestRunner(t, dialer, repo, Config{DryRun: true})

	summary, err := runner.Run(context.Background(), []Contact{{Phone: "+420777111222"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Started != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if dialer.Calls != 0 {
		t.Errorf("dialer.Calls = %d, want 0", dialer.Calls)
	}
	if len(repo.Created) != 0 {
		t.Errorf("dry run must not write records, got %d", len(repo.Created))
	}
}

func TestRunner_Run_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := newTestRunner(t, &mockDialer{}, &mockCallRepo{}, Config{})

	_, err := runner.Run(ctx, []Contact{{Phone: "+420777111222"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunner_Run_RecordWriteFailureIsNotFatal(t *testing.T) {
	dialer := &mockDialer{}
	repo := &mockCallRepo{CreateError: errors.New("db down")}
	runner := newTestRunner(t, dialer, repo, Config{})

	summary, err := runner.Run(context.Background(), []Contact{{Phone: "+420777111222"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Started != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestNewRunner_Validation(t *testing.T) {
	w, _ := ParseWindow("09:00", "17:00")

	if _, err := NewRunner(&mockDialer{}, nil, nil, nil, zap.NewNop(), Config{PublicURL: "https://x", Window: w}); err == nil {
		t.Error("expected error for missing campaign name")
	}
	if _, err := NewRunner(&mockDialer{}, nil, nil, nil, zap.NewNop(), Config{Name: "x", Window: w}); err == nil {
		t.Error("expected error for missing public URL")
	}
	if _, err := NewRunner(&mockDialer{}, nil, nil, nil, zap.NewNop(), Config{Name: "x", DryRun: true, Window: w}); err != nil {
		t.Errorf("dry run without URL should work, got %v", err)
	}
}
