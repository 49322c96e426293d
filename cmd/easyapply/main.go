// Command easyapply runs the Easy Apply automation agent: it searches
// configured job titles and locations, fills each posting's multi-step
// application form from the applicant profile, and records every closed
// attempt in the application ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"easyapply/internal/answer"
	"easyapply/internal/config"
	"easyapply/internal/engine"
	"easyapply/internal/ledger"
	"easyapply/internal/linkedin"
	"easyapply/internal/logging"
)

var (
	configPath  string
	dryRun      bool
	summaryOnly bool
	verbose     bool
	sinceWindow time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "easyapply",
	Short: "LinkedIn Easy Apply automation agent",
	Long: `easyapply searches LinkedIn for the configured job titles and applies
to Easy Apply postings by filling the multi-step form from your profile
configuration. Every attempt is recorded in a local ledger and mirrored
to a CSV file.

Screening questions are answered from the configured tables first
(eligibility, yes/no, numeric), then by STAR-method narratives for
behavioral questions, then by structural defaults. A required question
with no answer blocks that application; the run continues with the next
posting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if summaryOnly {
			return printSummary(cmd.Context())
		}
		return runEngine(cmd.Context())
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the application summary without starting a browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSummary(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on the console")
	rootCmd.PersistentFlags().DurationVar(&sinceWindow, "since", 7*24*time.Hour, "summary reporting window")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "exercise the full flow but never submit")
	rootCmd.Flags().BoolVar(&summaryOnly, "summary", false, "print the application summary and exit")
	rootCmd.AddCommand(summaryCmd)
}

func main() {
	// Credentials may live in a .env file next to the binary.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("%w\ncreate %s with your search and profile settings first", err, configPath)
		}
		return nil, err
	}
	return cfg, nil
}

// printSummary reads the ledger and renders the aggregate report. No
// credentials and no browser are needed on this path.
func printSummary(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	led, err := ledger.Open(cfg.Logging.DBPath, cfg.Logging.CSVPath)
	if err != nil {
		return err
	}
	defer led.Close()

	s, err := led.Summarize(ctx, time.Now().Add(-sinceWindow))
	if err != nil {
		return err
	}
	fmt.Print(s)
	return nil
}

func runEngine(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := logging.New(cfg.Logging, verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	led, err := ledger.Open(cfg.Logging.DBPath, cfg.Logging.CSVPath)
	if err != nil {
		return err
	}
	defer led.Close()

	session := linkedin.NewSession(cfg.LinkedIn, cfg.Browser, logger)
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("closing browser failed", zap.Error(err))
		}
	}()
	if err := session.Login(ctx); err != nil {
		return err
	}

	if dryRun {
		logger.Info("dry-run: forms will be filled but never submitted")
	}

	resolver := answer.NewResolver(cfg)
	forms := linkedin.NewApplyForm(session, logger)
	search := linkedin.NewJobSearch(session, cfg.Search, logger)
	executor := engine.NewStepExecutor(resolver, forms, logger)
	controller := engine.NewController(cfg, search, forms, led, executor, logger, dryRun)

	report, runErr := controller.Run(ctx)

	fields := []zap.Field{zap.Int("submitted", report.Submitted)}
	for status, n := range report.Counts {
		fields = append(fields, zap.Int(string(status), n))
	}
	logger.Info("run complete", fields...)

	if s, err := led.Summarize(ctx, time.Now().Add(-sinceWindow)); err == nil {
		fmt.Print(s)
	} else {
		logger.Warn("summary unavailable", zap.Error(err))
	}
	return runErr
}
