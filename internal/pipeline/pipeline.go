// Package pipeline sequences the enrichment phases, checkpointing after
// each so an interrupted or quota-starved run resumes instead of re-paying.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riqlabs/labmatch-cli/internal/checkpoint"
	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/directory"
	"github.com/riqlabs/labmatch-cli/internal/discovery"
	"github.com/riqlabs/labmatch-cli/internal/extract"
	"github.com/riqlabs/labmatch-cli/internal/model"
	"github.com/riqlabs/labmatch-cli/pkg/brave"
	"github.com/riqlabs/labmatch-cli/pkg/orcid"
)

// directoryCacheKey names the directory side cache inside a snapshot.
const directoryCacheKey = "directory_cache"

// Options selects which phases run and how many records to seed.
type Options struct {
	MaxRecords       int
	Resume           bool
	OnlyWebsites     bool
	OnlyEmails       bool
	SkipDirectories  bool
	SkipWebsites     bool
	SkipORCID        bool
	SkipEmails       bool
	SkipFallback     bool
	ClearCheckpoints bool
}

// Pipeline wires the phase components together.
type Pipeline struct {
	cfg       *config.Config
	inst      config.Institution
	store     *checkpoint.Store
	seeder    *Seeder
	directory *directory.Scraper
	finder    *discovery.Finder
	orcid     orcid.Client
	extractor *extract.Extractor
	fallback  *extract.FallbackSearcher
	search    brave.Client
	runID     string
}

// New creates a pipeline with all dependencies.
func New(
	cfg *config.Config,
	inst config.Institution,
	store *checkpoint.Store,
	seeder *Seeder,
	dir *directory.Scraper,
	finder *discovery.Finder,
	orcidClient orcid.Client,
	extractor *extract.Extractor,
	fallback *extract.FallbackSearcher,
	search brave.Client,
	runID string,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		inst:      inst,
		store:     store,
		seeder:    seeder,
		directory: dir,
		finder:    finder,
		orcid:     orcidClient,
		extractor: extractor,
		fallback:  fallback,
		search:    search,
		runID:     runID,
	}
}

func recordPtrs(records []model.FacultyRecord) []*model.FacultyRecord {
	ptrs := make([]*model.FacultyRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	return ptrs
}

// plan decides which phases run, applying skip/only flags on top of the
// resume point.
func (p *Pipeline) plan(opts Options, resumedFrom model.Phase) map[model.Phase]bool {
	enabled := map[model.Phase]bool{
		model.PhaseExtract:        true,
		model.PhaseDirectories:    !opts.SkipDirectories,
		model.PhaseWebsites:       !opts.SkipWebsites,
		model.PhaseOrcidEmails:    !opts.SkipORCID,
		model.PhaseWebsiteEmails:  !opts.SkipEmails,
		model.PhaseFallbackEmails: !opts.SkipFallback,
	}

	if resumedFrom != "" {
		for _, phase := range model.AllPhases {
			if !resumedFrom.Before(phase) {
				enabled[phase] = false
			}
		}
	}

	if opts.OnlyWebsites {
		for _, phase := range model.AllPhases {
			enabled[phase] = phase == model.PhaseWebsites
		}
	}
	if opts.OnlyEmails {
		for _, phase := range model.AllPhases {
			enabled[phase] = phase == model.PhaseWebsiteEmails || phase == model.PhaseFallbackEmails
		}
	}
	return enabled
}

// resume loads the latest checkpoint and reconstructs side caches.
// A missing or unreadable checkpoint means "start fresh", never an error.
func (p *Pipeline) resume() (model.Phase, []model.FacultyRecord) {
	latest, err := p.store.LatestPhase()
	if err != nil {
		zap.L().Warn("no checkpoint found, starting fresh")
		return "", nil
	}
	snap, err := p.store.Load(latest)
	if err != nil {
		zap.L().Warn("checkpoint unreadable, starting fresh",
			zap.String("phase", string(latest)), zap.Error(err))
		return "", nil
	}

	if raw, ok := snap.Extra[directoryCacheKey]; ok {
		var cache directory.Cache
		if err := json.Unmarshal(raw, &cache); err == nil {
			p.directory.Restore(cache)
		} else {
			zap.L().Warn("directory cache in checkpoint unreadable", zap.Error(err))
		}
	}

	zap.L().Info("resuming from checkpoint",
		zap.String("phase", string(latest)), zap.Int("records", len(snap.Faculty)))
	return latest, snap.Faculty
}

func (p *Pipeline) save(phase model.Phase, records []model.FacultyRecord, extra map[string]json.RawMessage) {
	if err := p.store.Save(phase, records, extra); err != nil {
		zap.L().Error("checkpoint save failed",
			zap.String("phase", string(phase)), zap.Error(err))
	}
}

// Run executes the enabled phases in order and always produces a report for
// whatever was completed, even when search quota ran out mid-phase.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	log := zap.L().With(zap.String("institution", p.inst.Name), zap.String("run_id", p.runID))
	log.Info("pipeline starting")

	if opts.ClearCheckpoints {
		if err := p.store.Clear(); err != nil {
			return nil, eris.Wrap(err, "pipeline: clear checkpoints")
		}
	}

	var records []model.FacultyRecord
	var resumedFrom model.Phase
	if opts.Resume || opts.OnlyWebsites || opts.OnlyEmails {
		resumedFrom, records = p.resume()
	}
	enabled := p.plan(opts, resumedFrom)

	if enabled[model.PhaseExtract] {
		var err error
		records, err = p.seeder.Extract(ctx, p.inst, opts.MaxRecords)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, eris.New("pipeline: no faculty extracted")
		}
		p.save(model.PhaseExtract, records, nil)
	}
	if len(records) == 0 {
		return nil, eris.New("pipeline: no records to process; run the extract phase first")
	}

	if enabled[model.PhaseDirectories] {
		p.directory.ScrapeAll(ctx)
		matched := 0
		for i := range records {
			if !records[i].Email.Empty() {
				continue
			}
			if fact, ok := p.directory.LookupEmail(records[i].Name); ok {
				if records[i].SetEmail(fact) {
					matched++
				}
			}
		}
		log.Info("directory email matches", zap.Int("count", matched))

		extra := map[string]json.RawMessage{}
		if cache, err := json.Marshal(p.directory.Snapshot()); err == nil {
			extra[directoryCacheKey] = cache
		}
		p.save(model.PhaseDirectories, records, extra)
	}

	if enabled[model.PhaseWebsites] {
		if err := p.finder.FindBatch(ctx, recordPtrs(records), p.directory); err != nil {
			return nil, eris.Wrap(err, "pipeline: website discovery")
		}
		p.save(model.PhaseWebsites, records, nil)
	}

	if enabled[model.PhaseOrcidEmails] {
		p.lookupORCIDEmails(ctx, records)
		p.save(model.PhaseOrcidEmails, records, nil)
	}

	if enabled[model.PhaseWebsiteEmails] {
		p.extractor.ExtractBatch(ctx, recordPtrs(records))
		p.save(model.PhaseWebsiteEmails, records, nil)
	}

	if enabled[model.PhaseFallbackEmails] {
		if err := p.fallback.SearchBatch(ctx, recordPtrs(records)); err != nil {
			return nil, eris.Wrap(err, "pipeline: fallback email search")
		}
		p.save(model.PhaseFallbackEmails, records, nil)
	}

	report := BuildReport(p.inst.Name, p.runID, records,
		p.search.QueriesUsed(), p.search.QuotaExhausted(), time.Since(start))

	log.Info("pipeline complete",
		zap.Int("total", report.Metadata.TotalFaculty),
		zap.Int("websites", report.Metadata.WebsitesFound),
		zap.Int("emails", report.Metadata.EmailsFound),
		zap.Int("queries_used", report.Metadata.SearchQueriesUsed),
		zap.Bool("quota_exhausted", report.Metadata.QuotaExhausted),
	)
	return report, nil
}

// lookupORCIDEmails fills emails from the registry for records that carry an
// identifier. Lookup failures skip the one record, never the phase.
func (p *Pipeline) lookupORCIDEmails(ctx context.Context, records []model.FacultyRecord) {
	limiter := rate.NewLimiter(rate.Every(p.cfg.ORCID.LookupDelay()), 1)
	eligible := 0
	found := 0
	for i := range records {
		rec := &records[i]
		if rec.ORCID == "" || !rec.Email.Empty() {
			continue
		}
		eligible++
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		email, err := p.orcid.Email(ctx, rec.ORCID)
		if err != nil {
			zap.L().Debug("orcid lookup failed",
				zap.String("name", rec.Name), zap.Error(err))
			continue
		}
		if email == "" {
			continue
		}
		if rec.SetEmail(model.EmailFact{
			Value:            email,
			Source:           model.SourceORCID,
			Confidence:       model.ConfidenceHigh,
			ExtractedFrom:    "https://orcid.org/" + orcid.ExtractID(rec.ORCID),
			ExtractionMethod: "orcid_api",
			NameMatchScore:   1.0,
		}) {
			found++
		}
	}
	zap.L().Info("orcid lookup complete",
		zap.Int("found", found), zap.Int("eligible", eligible))
}
