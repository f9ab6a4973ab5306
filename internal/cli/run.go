package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kumasuke/s3ready/internal/backoff"
	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/checks"
	"github.com/kumasuke/s3ready/internal/config"
	"github.com/kumasuke/s3ready/internal/endpoint"
	"github.com/kumasuke/s3ready/internal/isolation"
	"github.com/kumasuke/s3ready/internal/report"
	"github.com/kumasuke/s3ready/internal/results"
	"github.com/kumasuke/s3ready/internal/scheduler"
	"github.com/kumasuke/s3ready/internal/scoring"
)

var (
	configFile  string
	endpointURL string
	accessKey   string
	secretKey   string
	region      string
	testIDs     string
	category    string
	concurrency int
	outputDir   string
	logLevel    string
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the validation suite against an endpoint",
		Long: "Run selected tests against the configured S3 endpoint and produce " +
			"a production-readiness verdict. Exit code 0 means production-ready, " +
			"1 means the run completed but the endpoint is not ready, 2 means the " +
			"run could not start, 3 means the run aborted on an internal error.",
		RunE: runValidation,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	cmd.Flags().StringVar(&endpointURL, "endpoint", "", "S3 endpoint URL")
	cmd.Flags().StringVar(&accessKey, "access-key", "", "access key")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "secret key")
	cmd.Flags().StringVar(&region, "region", "", "region")
	cmd.Flags().StringVar(&testIDs, "tests", "", "comma-separated test ids to run")
	cmd.Flags().StringVar(&category, "category", "", "run only this category")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "worker pool size")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "report output directory")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

func runValidation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load config")
		return &exitError{code: ExitConfigError}
	}
	setupLogging(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return &exitError{code: ExitConfigError}
	}

	filter, err := parseFilter()
	if err != nil {
		log.Error().Err(err).Msg("Invalid selection")
		return &exitError{code: ExitConfigError}
	}
	selected, err := checks.Catalog().Select(filter)
	if err != nil {
		log.Error().Err(err).Msg("Test selection failed")
		return &exitError{code: ExitConfigError}
	}

	runID := uuid.NewString()
	log.Info().
		Str("run_id", runID).
		Str("endpoint", cfg.Endpoint.URL).
		Int("selected", len(selected)).
		Int("concurrency", cfg.Run.Concurrency).
		Msg("Starting validation run")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := endpoint.NewClient(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build S3 client")
		return &exitError{code: ExitConfigError}
	}

	policy := backoff.FromConfig(cfg.Retry)
	if _, err := policy.Execute(ctx, func(ctx context.Context) error {
		return endpoint.CheckConnectivity(ctx, client)
	}); err != nil {
		log.Error().Err(err).Str("endpoint", cfg.Endpoint.URL).Msg("Endpoint unreachable")
		return &exitError{code: ExitConfigError}
	}

	caps, err := endpoint.Probe(ctx, client, cfg.Run.BucketPrefix)
	if err != nil {
		log.Error().Err(err).Msg("Capability probe failed")
		return &exitError{code: ExitConfigError}
	}

	dir := cfg.Run.OutputDir
	if dir == "" {
		dir = fmt.Sprintf("validation-%s", runID[:8])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Msg("Failed to create output directory")
		return &exitError{code: ExitConfigError}
	}

	journal, err := results.OpenJournal(filepath.Join(dir, "results.db"))
	if err != nil {
		log.Error().Err(err).Msg("Failed to open results journal")
		return &exitError{code: ExitConfigError}
	}
	defer journal.Close()

	agg := results.NewAggregator(runID, journal)
	namespaces := isolation.NewManager(client, cfg.Run.BucketPrefix, runID)

	sched := scheduler.New(cfg, client, namespaces, policy, caps, agg)
	complete, runErr := sched.Run(ctx, selected)

	// A report is emitted for whatever completed, even when the run was
	// cancelled or aborted.
	verdict := scoring.Score(agg.Snapshot(), cfg.Scoring, complete)
	rep := report.Build(runID, cfg.Endpoint.URL, agg.Sorted(), verdict)
	if path, err := rep.WriteFile(dir); err != nil {
		log.Error().Err(err).Msg("Failed to write report")
	} else {
		log.Info().Str("path", path).Msg("Report written")
	}
	rep.PrintSummary(os.Stdout)

	if runErr != nil {
		log.Error().Err(runErr).Msg("Run aborted by framework error; verdict is not trustworthy")
		return &exitError{code: ExitInternalError}
	}
	if !verdict.ProductionReady || !complete {
		return &exitError{code: ExitNotReady}
	}
	return nil
}

func loadConfig() (*config.RunConfig, error) {
	var cfg *config.RunConfig
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	// Command line flags override file and environment.
	if endpointURL != "" {
		cfg.Endpoint.URL = endpointURL
	}
	if accessKey != "" {
		cfg.Endpoint.AccessKey = accessKey
	}
	if secretKey != "" {
		cfg.Endpoint.SecretKey = secretKey
	}
	if region != "" {
		cfg.Endpoint.Region = region
	}
	if concurrency != 0 {
		cfg.Run.Concurrency = concurrency
	}
	if outputDir != "" {
		cfg.Run.OutputDir = outputDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func parseFilter() (catalog.Filter, error) {
	var f catalog.Filter
	if testIDs != "" && category != "" {
		return f, fmt.Errorf("--tests and --category are mutually exclusive")
	}
	if testIDs != "" {
		for _, part := range strings.Split(testIDs, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return f, fmt.Errorf("invalid test id %q", part)
			}
			f.IDs = append(f.IDs, id)
		}
	}
	f.Category = catalog.Category(category)
	return f, nil
}
