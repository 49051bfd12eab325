// Package main is the cold-call campaign CLI. It loads a contact list and
// dials contacts through the telephony provider, pointing each answered
// call at the webhook server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/campaign"
	"github.com/lososs/callagent/internal/clock"
	"github.com/lososs/callagent/internal/config"
	"github.com/lososs/callagent/internal/database"
	"github.com/lososs/callagent/internal/domain"
	"github.com/lososs/callagent/internal/ratelimit"
	"github.com/lososs/callagent/internal/repository"
	"github.com/lososs/callagent/internal/telephony"
)

var (
	contactsPath string
	campaignName string
	publicURL    string
	maxCalls     int
	dryRun       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "campaign",
		Short: "Run an outbound cold-call campaign",
		Long: `Dials the contacts in a CSV file (name,phone,company,email) at a
polite pace inside configured calling hours. Each answered call is
handled by the webhook server at the configured public URL.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVarP(&contactsPath, "contacts", "c", "", "path to the contacts CSV file (required)")
	rootCmd.Flags().StringVarP(&campaignName, "name", "n", "", "campaign name used to tag call records (required)")
	rootCmd.Flags().StringVar(&publicURL, "public-url", "", "webhook server base URL (defaults to app.public_url)")
	rootCmd.Flags().IntVar(&maxCalls, "max-calls", 0, "dial at most this many contacts (0 = all)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "load and pace contacts without dialing")
	_ = rootCmd.MarkFlagRequired("contacts")
	_ = rootCmd.MarkFlagRequired("name")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "campaign failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := initLogger()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if publicURL == "" {
		publicURL = cfg.App.PublicURL
	}

	contacts, err := campaign.LoadContacts(contactsPath)
	if err != nil {
		return err
	}
	if len(contacts) == 0 {
		return fmt.Errorf("no dialable contacts in %s", contactsPath)
	}
	if maxCalls > 0 && maxCalls < len(contacts) {
		contacts = contacts[:maxCalls]
	}

	window, err := campaign.ParseWindow(cfg.Campaign.CallingFrom, cfg.Campaign.CallingUntil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var callRepo domain.CallRepository
	if !dryRun {
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		callRepo = repository.NewCallRepository(db.Pool)
	}

	limiterCfg := ratelimit.DefaultDialLimiterConfig()
	limiterCfg.MaxCallsPerMinute = cfg.Campaign.CallsPerMinute
	limiter := ratelimit.NewDialLimiter(limiterCfg, logger)

	dialer := telephony.NewDialer(&cfg.Telephony, logger)

	runner, err := campaign.NewRunner(dialer, limiter, callRepo, clock.New(), logger, campaign.Config{
		Name:           campaignName,
		PublicURL:      publicURL,
		CallsPerMinute: cfg.Campaign.CallsPerMinute,
		MaxAttempts:    cfg.Campaign.MaxAttempts,
		Window:         window,
		DryRun:         dryRun,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Campaign %q: %d contacts, %d calls/minute, window %s-%s\n",
		campaignName, len(contacts), cfg.Campaign.CallsPerMinute,
		cfg.Campaign.CallingFrom, cfg.Campaign.CallingUntil)
	if dryRun {
		fmt.Println("Dry run: no calls will be placed.")
	}

	summary, err := runner.Run(ctx, contacts)
	printSummary(summary)
	return err
}

func printSummary(s campaign.Summary) {
	fmt.Printf("\nCampaign finished.\n")
	fmt.Printf("  Attempted: %d\n", s.Attempted)
	fmt.Printf("  Started:   %d\n", s.Started)
	fmt.Printf("  Failed:    %d\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Printf("  Skipped:   %d (outside calling hours)\n", s.Skipped)
	}
	for _, e := range s.Errors {
		fmt.Printf("  error: %s: %v\n", e.Phone, e.Err)
	}
}

// initLogger initializes the zap logger based on environment.
func initLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
