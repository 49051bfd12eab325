// Package reporting runs the post-call pipeline: outcome analysis,
// template usage settlement, and pattern learning. Calls are queued in
// memory and processed by a small worker pool so webhook handlers never
// wait on the LLM.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/ai"
	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/metrics"
)

// Learning thresholds: calls scoring at or above scoreSuccess contribute
// success patterns, calls below scoreFailure contribute failure patterns.
// Calls in between teach nothing.
const (
	scoreSuccess = 70
	scoreFailure = 40

	maxPatternsPerCall = 3
	minPatternChars    = 25
)

// Analyzer scores a finished call from its transcript.
type Analyzer interface {
	AnalyzeCall(ctx context.Context, transcript string) (*ai.Analysis, error)
}

// Config holds reporter tuning knobs.
type Config struct {
	QueueSize      int
	WorkerCount    int
	JobTimeout     time.Duration
	AnalyzeRetries uint64
	RetryInterval  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		QueueSize:      64,
		WorkerCount:    2,
		JobTimeout:     60 * time.Second,
		AnalyzeRetries: 2,
		RetryInterval:  500 * time.Millisecond,
	}
}

type job struct {
	callID        uuid.UUID
	usedResponses []int64
}

// Reporter consumes completed calls and writes back what was learned.
type Reporter struct {
	callRepo     domain.CallRepository
	responseRepo domain.ResponseRepository
	patternRepo  domain.PatternRepository
	analyzer     Analyzer
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *metrics.Metrics
	events       *metrics.BusinessEventLogger

	jobTimeout     time.Duration
	analyzeRetries uint64
	retryInterval  time.Duration
	workerCount    int

	jobCh    chan job
	stopCh   chan struct{}
	workerWg sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewReporter creates a reporter. analyzer and m may be nil; without an
// analyzer every call is scored heuristically.
func NewReporter(
	callRepo domain.CallRepository,
	responseRepo domain.ResponseRepository,
	patternRepo domain.PatternRepository,
	analyzer Analyzer,
	clk clock.Clock,
	logger *zap.Logger,
	m *metrics.Metrics,
	config *Config,
) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	workerCount := config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	if clk == nil {
		clk = clock.New()
	}

	return &Reporter{
		callRepo:       callRepo,
		responseRepo:   responseRepo,
		patternRepo:    patternRepo,
		analyzer:       analyzer,
		clock:          clk,
		logger:         logger,
		metrics:        m,
		events:         metrics.NewBusinessEventLogger(logger),
		jobTimeout:     config.JobTimeout,
		analyzeRetries: config.AnalyzeRetries,
		retryInterval:  config.RetryInterval,
		workerCount:    workerCount,
		jobCh:          make(chan job, config.QueueSize),
		stopCh:         make(chan struct{}),
	}
}

// Start launches the worker pool.
func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("reporter already running")
	}
	r.running = true

	r.logger.Info("starting outcome reporter",
		zap.Int("worker_count", r.workerCount),
		zap.Int("queue_size", cap(r.jobCh)),
	)

	for i := 0; i < r.workerCount; i++ {
		r.workerWg.Add(1)
		go r.worker(i)
	}
	return nil
}

// Stop drains the queue and waits for in-flight jobs, bounded by ctx.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.logger.Info("stopping outcome reporter")
	close(r.stopCh)
	close(r.jobCh)

	done := make(chan struct{})
	go func() {
		r.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("outcome reporter stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("outcome reporter stop timed out")
		return ctx.Err()
	}
}

// Enqueue queues a completed call for analysis. A full queue is reported
// back to the caller; the call record itself is already complete, so a
// dropped job only loses the analysis fields.
func (r *Reporter) Enqueue(callID uuid.UUID, usedResponses []int64) error {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		return errors.New("reporter not running")
	}

	select {
	case r.jobCh <- job{callID: callID, usedResponses: usedResponses}:
		if r.metrics != nil {
			r.metrics.ReportJobsInQueue.Inc()
		}
		return nil
	default:
		if r.metrics != nil {
			r.metrics.RecordReportJob("dropped")
		}
		return fmt.Errorf("report queue full, dropping call %s", callID)
	}
}

func (r *Reporter) worker(id int) {
	defer r.workerWg.Done()

	logger := r.logger.With(zap.Int("worker_id", id))
	logger.Debug("reporter worker started")

	for j := range r.jobCh {
		if r.metrics != nil {
			r.metrics.ReportJobsInQueue.Dec()
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.jobTimeout)
		r.process(ctx, j)
		cancel()
	}

	logger.Debug("reporter worker stopped")
}

// process runs the full pipeline for one call: analyze, persist the
// outcome, settle template usage, extract patterns.
func (r *Reporter) process(ctx context.Context, j job) {
	logger := r.logger.With(zap.String("call_id", j.callID.String()))

	record, err := r.callRepo.GetByID(ctx, j.callID)
	if err != nil {
		logger.Error("failed to load call for analysis", zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordReportJob("failed")
		}
		return
	}

	analysis, fromModel := r.analyze(ctx, record, logger)

	r.apply(record, analysis)
	if err := r.callRepo.Update(ctx, record); err != nil {
		logger.Error("failed to store call analysis", zap.Error(err))
		if r.metrics != nil {
			r.metrics.RecordReportJob("failed")
		}
		return
	}

	r.settleUsage(ctx, j.usedResponses, record, logger)
	r.learn(ctx, record, logger)

	if r.metrics != nil {
		status := "completed"
		if !fromModel {
			status = "fallback"
		}
		r.metrics.RecordReportJob(status)
		r.metrics.RecordSalesScore(analysis.SalesScore)
	}

	r.events.CallScored(ctx, j.callID, analysis.Outcome, analysis.SalesScore, analysis.ObjectionsCount)

	logger.Info("call analyzed",
		zap.String("outcome", analysis.Outcome),
		zap.Int("score", analysis.SalesScore),
		zap.Bool("from_model", fromModel),
	)
}

// analyze asks the model with bounded retries and falls back to the
// duration/stage heuristic when the model is unavailable. The second
// return value reports whether the model produced the analysis.
func (r *Reporter) analyze(ctx context.Context, record *domain.CallRecord, logger *zap.Logger) (*ai.Analysis, bool) {
	transcript := ""
	if record.Transcript != nil {
		transcript = strings.TrimSpace(*record.Transcript)
	}
	if r.analyzer == nil || transcript == "" {
		return heuristicAnalysis(record), false
	}

	var analysis *ai.Analysis
	operation := func() error {
		a, err := r.analyzer.AnalyzeCall(ctx, transcript)
		if err != nil {
			return err
		}
		analysis = a
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.retryInterval
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, r.analyzeRetries), ctx))
	if err != nil {
		logger.Warn("model analysis failed, using heuristic scoring", zap.Error(err))
		return heuristicAnalysis(record), false
	}
	return analysis, true
}

// apply copies analysis fields onto the record.
func (r *Reporter) apply(record *domain.CallRecord, analysis *ai.Analysis) {
	record.Outcome = mapOutcome(analysis.Outcome)
	score := analysis.SalesScore
	record.Score = &score
	if analysis.Summary != "" {
		summary := analysis.Summary
		record.Summary = &summary
	}
	record.PositiveSignals = analysis.PositiveSignals
	record.ObjectionCount = analysis.ObjectionsCount
	if analysis.ScheduledCallback && record.Outcome == domain.OutcomeCallback {
		record.MeetingScheduled = record.MeetingScheduled || analysis.ScheduledCallback
	}
}

// settleUsage credits or debits every template the call used. A call
// that scored as a success feeds the success rates that drive future
// selection ordering.
func (r *Reporter) settleUsage(ctx context.Context, usedResponses []int64, record *domain.CallRecord, logger *zap.Logger) {
	ledToMeeting := record.MeetingScheduled || record.Outcome == domain.OutcomeSuccess
	for _, id := range usedResponses {
		if id <= 0 {
			continue
		}
		if err := r.responseRepo.RecordUsage(ctx, id, ledToMeeting); err != nil {
			logger.Warn("failed to settle template usage",
				zap.Int64("template_id", id),
				zap.Error(err),
			)
		}
	}
}

// learn extracts agent phrases from strongly scored calls.
func (r *Reporter) learn(ctx context.Context, record *domain.CallRecord, logger *zap.Logger) {
	if record.Score == nil || record.Transcript == nil {
		return
	}

	var kind domain.PatternKind
	switch {
	case *record.Score >= scoreSuccess:
		kind = domain.PatternSuccess
	case *record.Score < scoreFailure:
		kind = domain.PatternFailure
	default:
		return
	}

	phrases := agentPhrases(*record.Transcript, maxPatternsPerCall)
	for _, phrase := range phrases {
		pattern := &domain.LearnedPattern{
			Kind:       kind,
			Phrase:     phrase,
			Stage:      record.FinalStage,
			Score:      *record.Score,
			SourceCall: record.ID,
			CreatedAt:  r.clock.NowUTC(),
		}
		if err := r.patternRepo.Create(ctx, pattern); err != nil {
			logger.Warn("failed to store learned pattern", zap.Error(err))
			continue
		}
		if r.metrics != nil {
			r.metrics.RecordPatternLearned(string(kind))
		}
		r.events.PatternLearned(ctx, record.ID, string(kind), phrase)
	}
}

// agentPhrases pulls up to n substantial agent lines out of a
// "speaker: text" transcript.
func agentPhrases(transcript string, n int) []string {
	var phrases []string
	for _, line := range strings.Split(transcript, "\n") {
		text, ok := strings.CutPrefix(line, string(domain.SpeakerAgent)+": ")
		if !ok {
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) < minPatternChars {
			continue
		}
		phrases = append(phrases, text)
		if len(phrases) == n {
			break
		}
	}
	return phrases
}

func mapOutcome(outcome string) domain.CallOutcome {
	switch outcome {
	case "success":
		return domain.OutcomeSuccess
	case "callback":
		return domain.OutcomeCallback
	case "no_interest":
		return domain.OutcomeNoInterest
	case "no_answer":
		return domain.OutcomeNoAnswer
	}
	return domain.OutcomeUnknown
}

// heuristicAnalysis scores a call without the model, from what the
// conversation engine already knows: how the call ended, how long it
// ran, and whether a meeting was agreed.
func heuristicAnalysis(record *domain.CallRecord) *ai.Analysis {
	duration := 0
	if record.DurationSeconds != nil {
		duration = *record.DurationSeconds
	}
	hasTranscript := record.Transcript != nil && strings.TrimSpace(*record.Transcript) != ""

	analysis := &ai.Analysis{Summary: "heuristic scoring, model analysis unavailable"}

	switch {
	case !hasTranscript || duration == 0:
		analysis.Outcome = "no_answer"
		analysis.SalesScore = 0
	case record.MeetingScheduled:
		analysis.Outcome = "success"
		analysis.SalesScore = 85
	case record.EndReason == domain.EndReasonHardRejection:
		analysis.Outcome = "no_interest"
		analysis.SalesScore = 10
	case record.EndReason == domain.EndReasonGoodbye && duration >= 60:
		analysis.Outcome = "callback"
		analysis.SalesScore = 50
	default:
		analysis.Outcome = "no_interest"
		analysis.SalesScore = 30
	}

	return analysis
}
