package campaign

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/ratelimit"
	"github.com/lososs/callagent/internal/sanitize"
)

// CallStarter places one outbound call through the telephony provider.
type CallStarter interface {
	StartCall(ctx context.Context, toNumber, webhookURL string) (string, error)
}

// Config holds the settings for one campaign run.
type Config struct {
	// Name tags every call record and rides on the webhook URL so the
	// server can attribute answered calls back to this campaign.
	Name      string
	PublicURL string

	CallsPerMinute int
	MaxAttempts    int
	RetryInterval  time.Duration
	Window         Window

	// DryRun loads and paces contacts but never dials.
	DryRun bool
}

// Summary is the final tally of a campaign run.
type Summary struct {
	Attempted int
	Started   int
	Failed    int
	Skipped   int
	Errors    []DialError
}

// DialError records one contact that could not be dialed.
type DialError struct {
	Phone string
	Err   error
}

// Runner works through a contact list one dial at a time.
type Runner struct {
	dialer   CallStarter
	limiter  *ratelimit.DialLimiter
	callRepo domain.CallRepository
	clock    clock.Clock
	logger   *zap.Logger
	cfg      Config
}

// NewRunner creates a campaign runner. The call repository may be nil for
// dry runs without a database.
func NewRunner(dialer CallStarter, limiter *ratelimit.DialLimiter, callRepo domain.CallRepository, clk clock.Clock, logger *zap.Logger, cfg Config) (*Runner, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("campaign name is required")
	}
	if cfg.PublicURL == "" && !cfg.DryRun {
		return nil, fmt.Errorf("public URL is required")
	}
	if cfg.CallsPerMinute <= 0 {
		cfg.CallsPerMinute = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Runner{
		dialer:   dialer,
		limiter:  limiter,
		callRepo: callRepo,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}, nil
}

// Run dials each contact in order until the list is exhausted, the
// calling window closes, or ctx is canceled. Individual dial failures
// are recorded in the summary, not returned.
func (r *Runner) Run(ctx context.Context, contacts []Contact) (Summary, error) {
	summary := Summary{}
	pause := time.Duration(60/r.cfg.CallsPerMinute) * time.Second

	r.logger.Info("campaign started",
		zap.String("campaign", r.cfg.Name),
		zap.Int("contacts", len(contacts)),
		zap.Int("calls_per_minute", r.cfg.CallsPerMinute),
		zap.Bool("dry_run", r.cfg.DryRun),
	)

	for i, contact := range contacts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if !r.cfg.Window.Contains(r.clock.Now()) {
			summary.Skipped = len(contacts) - i
			r.logger.Info("outside calling hours, stopping",
				zap.String("campaign", r.cfg.Name),
				zap.Int("remaining", summary.Skipped),
			)
			return summary, nil
		}

		summary.Attempted++
		if err := r.dialContact(ctx, contact); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, DialError{Phone: contact.Phone, Err: err})
			r.logger.Error("dial failed",
				zap.String("campaign", r.cfg.Name),
				zap.String("phone", sanitize.Phone(contact.Phone)),
				zap.Error(err),
			)
		} else {
			summary.Started++
		}

		if i < len(contacts)-1 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-r.clock.After(pause):
			}
		}
	}

	r.logger.Info("campaign finished",
		zap.String("campaign", r.cfg.Name),
		zap.Int("attempted", summary.Attempted),
		zap.Int("started", summary.Started),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// dialContact places one call, retrying transient provider failures with
// exponential backoff.
func (r *Runner) dialContact(ctx context.Context, contact Contact) error {
	r.logger.Info("dialing contact",
		zap.String("campaign", r.cfg.Name),
		zap.String("name", contact.Name),
		zap.String("phone", sanitize.Phone(contact.Phone)),
	)

	if r.cfg.DryRun {
		return nil
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("acquiring dial slot: %w", err)
		}
		defer r.limiter.Release()
	}

	var sid string
	dial := func() error {
		var err error
		sid, err = r.dialer.StartCall(ctx, contact.Phone, r.webhookURL())
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.cfg.MaxAttempts-1)), ctx)
	if err := backoff.Retry(dial, policy); err != nil {
		return err
	}

	if r.callRepo != nil {
		record := domain.NewCallRecord(sid, domain.DirectionOutbound, contact.Phone, r.cfg.Name, r.clock.NowUTC())
		if err := r.callRepo.Create(ctx, record); err != nil {
			// The webhook server creates the record on answer if this
			// write never landed.
			r.logger.Warn("failed to record dialed call",
				zap.String("call_sid", sid),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (r *Runner) webhookURL() string {
	return r.cfg.PublicURL + "/outbound?campaign=" + url.QueryEscape(r.cfg.Name)
}
