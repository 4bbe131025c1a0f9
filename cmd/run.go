package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riqlabs/labmatch-cli/internal/checkpoint"
	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/directory"
	"github.com/riqlabs/labmatch-cli/internal/discovery"
	"github.com/riqlabs/labmatch-cli/internal/extract"
	"github.com/riqlabs/labmatch-cli/internal/pipeline"
	"github.com/riqlabs/labmatch-cli/internal/scrape"
	"github.com/riqlabs/labmatch-cli/pkg/brave"
	"github.com/riqlabs/labmatch-cli/pkg/openalex"
	"github.com/riqlabs/labmatch-cli/pkg/orcid"
)

var (
	runInstitution string
	runMaxFaculty  int
	runAPIKey      string
	runOpts        pipeline.Options
)

// loadInstitution resolves the --institution key against the configured table.
func loadInstitution(key string) (config.Institution, error) {
	table, err := config.LoadInstitutions(cfg.Institutions.File)
	if err != nil {
		return config.Institution{}, err
	}
	inst, ok := table[key]
	if !ok {
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		return config.Institution{}, eris.Errorf("unknown institution %q (configured: %v)", key, keys)
	}
	return inst, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline for one institution",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		inst, err := loadInstitution(runInstitution)
		if err != nil {
			return err
		}

		apiKey := cfg.Search.Key
		if runAPIKey != "" {
			apiKey = runAPIKey
		}
		if apiKey == "" {
			zap.L().Warn("no search API key set, website discovery and fallback search will find nothing")
		}

		runID := uuid.NewString()
		store, err := checkpoint.NewStore(cfg.Checkpoint.Dir, inst.Name, runID)
		if err != nil {
			return err
		}

		search := brave.NewClient(apiKey,
			brave.WithBaseURL(cfg.Search.BaseURL),
			brave.WithDelay(cfg.Search.SearchDelay()),
			brave.WithTimeout(cfg.Search.Timeout()),
			brave.WithMaxRetries(cfg.Search.MaxRetries),
			brave.WithResultCount(cfg.Search.ResultCount),
		)
		fetcher := scrape.NewFetcher(
			scrape.WithDelay(cfg.Scrape.FetchDelay()),
			scrape.WithTimeout(cfg.Scrape.Timeout()),
			scrape.WithUserAgent(cfg.Scrape.UserAgent),
		)

		p := pipeline.New(
			cfg,
			inst,
			store,
			pipeline.NewSeeder(openalex.NewClient(cfg.OpenAlex.ContactEmail, openalex.WithBaseURL(cfg.OpenAlex.BaseURL)), cfg.OpenAlex),
			directory.NewScraper(inst, fetcher, cfg.Match.FuzzyThreshold),
			discovery.NewFinder(inst, cfg.Discovery, search),
			orcid.NewClient(orcid.WithBaseURL(cfg.ORCID.BaseURL)),
			extract.NewExtractor(inst, cfg.Extract, fetcher),
			extract.NewFallbackSearcher(inst, cfg.Extract, search),
			search,
			runID,
		)

		runOpts.MaxRecords = runMaxFaculty
		report, err := p.Run(ctx, runOpts)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		paths, err := pipeline.NewExporter(cfg.Output.Dir).Export(report)
		if err != nil {
			return err
		}
		zap.L().Info("output written", zap.Strings("paths", paths))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Metadata)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runInstitution, "institution", "i", "", "institution key from the institutions file (required)")
	runCmd.Flags().IntVarP(&runMaxFaculty, "max-faculty", "m", 0, "cap the seed population (0 = no cap)")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "override the configured search API key")

	runCmd.Flags().BoolVarP(&runOpts.Resume, "resume", "r", false, "resume from the latest checkpoint")
	runCmd.Flags().BoolVar(&runOpts.OnlyWebsites, "only-websites", false, "run only website discovery (needs a checkpoint)")
	runCmd.Flags().BoolVar(&runOpts.OnlyEmails, "only-emails", false, "run only the email phases (needs a checkpoint)")
	runCmd.Flags().BoolVar(&runOpts.SkipDirectories, "skip-directories", false, "skip directory scraping")
	runCmd.Flags().BoolVar(&runOpts.SkipWebsites, "skip-websites", false, "skip website discovery")
	runCmd.Flags().BoolVar(&runOpts.SkipORCID, "skip-orcid", false, "skip ORCID lookup")
	runCmd.Flags().BoolVar(&runOpts.SkipEmails, "skip-emails", false, "skip website email extraction")
	runCmd.Flags().BoolVar(&runOpts.SkipFallback, "skip-fallback", false, "skip fallback email search")
	runCmd.Flags().BoolVar(&runOpts.ClearCheckpoints, "clear-checkpoints", false, "delete checkpoints before running")

	_ = runCmd.MarkFlagRequired("institution")
	rootCmd.AddCommand(runCmd)
}
