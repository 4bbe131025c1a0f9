// Package discovery finds personal and lab pages for faculty records via
// metered web search. Every query costs money, so the batch planner consults
// the free directory cache first and trims low-priority records when the
// estimated query count would blow the budget.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/directory"
	"github.com/riqlabs/labmatch-cli/internal/model"
	"github.com/riqlabs/labmatch-cli/internal/namematch"
	"github.com/riqlabs/labmatch-cli/pkg/brave"
)

// hardDenylist lists domains that are never a person's page.
var hardDenylist = []string{
	"facebook.com", "twitter.com", "x.com", "instagram.com",
	"linkedin.com", "tiktok.com", "youtube.com",
	"doi.org", "pubmed.ncbi.nlm.nih.gov", "arxiv.org", "biorxiv.org",
	"wikipedia.org", "amazon.com",
}

// softDenylist lists aggregator profiles. They stay in the ranking but take
// a heavy penalty, so they only win when nothing institutional shows up.
var softDenylist = []string{
	"research.com", "researchgate.net", "academia.edu",
	"semanticscholar.org", "scholar.google.com", "aminer.org",
}

// urlPatternDenylist marks URL shapes that never lead to contact info.
var urlPatternDenylist = []string{
	"/login", "/signin", "/auth",
	"/course/", "/courses/",
	"/news/article", "/press-release",
	".pdf", ".doc", ".ppt",
	"/search?", "/tag/", "/category/",
	"/event/",
}

// personalPagePatterns are URL fragments typical of an individual's page.
var personalPagePatterns = []string{
	"/~", "/people/", "/faculty/", "/profile/", "/lab/", "/labs/",
	"/group/", "people.", "scholar.", "/person/", "/staff/",
}

// homepageKeywords are words a real academic homepage tends to carry.
var homepageKeywords = []string{
	"publications", "research", "teaching", "cv", "curriculum vitae",
	"students", "lab", "group", "contact", "about", "bio", "projects",
}

// Finder scores search results into at most one WebsiteFact per record.
type Finder struct {
	inst   config.Institution
	cfg    config.DiscoveryConfig
	search brave.Client
}

// NewFinder creates a finder backed by the given search client.
func NewFinder(inst config.Institution, cfg config.DiscoveryConfig, search brave.Client) *Finder {
	return &Finder{inst: inst, cfg: cfg, search: search}
}

func hardDenied(url string) bool {
	url = strings.ToLower(url)
	for _, d := range hardDenylist {
		if strings.Contains(url, d) {
			return true
		}
	}
	for _, p := range urlPatternDenylist {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}

// classifyPage buckets a URL and returns the bucket's score modifier.
func (f *Finder) classifyPage(url string) (string, float64) {
	url = strings.ToLower(url)

	for _, d := range softDenylist {
		if strings.Contains(url, d) {
			return "aggregator", -0.4
		}
	}
	for _, p := range []string{"/pubs", "/publications/", "/papers/"} {
		if strings.Contains(url, p) {
			return "publications", -0.2
		}
	}
	for _, p := range personalPagePatterns {
		if strings.Contains(url, p) {
			return "personal", 0.1
		}
	}
	if f.inst.WebsiteDomain != "" && strings.Contains(url, strings.ToLower(f.inst.WebsiteDomain)) {
		return "department", 0.05
	}
	return "unknown", 0.0
}

// scoreResult accumulates weighted signals for one search result.
func (f *Finder) scoreResult(result brave.Result, name string) (float64, []string, string) {
	url := strings.ToLower(result.URL)
	title := strings.ToLower(result.Title)
	combined := title + " " + strings.ToLower(result.Description)

	score := 0.0
	var signals []string

	pageType, modifier := f.classifyPage(url)
	score += modifier
	if modifier != 0 {
		signals = append(signals, "type:"+pageType)
	}

	if f.inst.WebsiteDomain != "" && strings.Contains(url, strings.ToLower(f.inst.WebsiteDomain)) {
		score += 0.4
		signals = append(signals, "institution_domain")
	}
	if strings.Contains(url, ".edu") {
		score += 0.2
		signals = append(signals, "edu_domain")
	}

	switch {
	case strings.Contains(url, "/~"):
		score += 0.35
		signals = append(signals, "tilde_url")
	case containsAny(url, "/people/", "/faculty/", "/profile/"):
		score += 0.2
		signals = append(signals, "profile_url")
	case containsAny(url, "/lab/", "/labs/", "/group/"):
		score += 0.15
		signals = append(signals, "lab_url")
	}

	first, _, last := namematch.Parts(name)
	if len(last) > 2 {
		if strings.Contains(url, last) {
			score += 0.25
			signals = append(signals, "lastname_in_url")
		}
		if strings.Contains(title, last) {
			score += 0.15
			signals = append(signals, "lastname_in_title")
		}
	}
	if len(first) > 2 && strings.Contains(title, first) {
		score += 0.1
		signals = append(signals, "firstname_in_title")
	}
	if strings.Contains(title, strings.ToLower(name)) {
		score += 0.2
		signals = append(signals, "fullname_in_title")
	}

	kwCount := 0
	for _, kw := range homepageKeywords {
		if strings.Contains(combined, kw) {
			kwCount++
		}
	}
	if kwCount >= 2 {
		score += 0.1
		signals = append(signals, fmt.Sprintf("keywords:%d", kwCount))
	}

	trimmed := strings.TrimRight(url, "/")
	for _, suffix := range []string{"/people", "/faculty", "/directory", "/staff"} {
		if strings.HasSuffix(trimmed, suffix) {
			score -= 0.3
			signals = append(signals, "generic_listing")
			break
		}
	}

	return score, signals, pageType
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// queries builds the search queries for one person. Everyone gets the
// site-scoped name query; high-value people get two broader ones on top.
func (f *Finder) queries(name string, hIndex int) []string {
	var qs []string
	if f.inst.WebsiteDomain != "" {
		qs = append(qs, fmt.Sprintf("%q site:%s", name, f.inst.WebsiteDomain))
	}
	if hIndex >= f.cfg.HighValueHIndex {
		qs = append(qs,
			fmt.Sprintf("%q %s professor homepage", name, f.inst.Name),
			fmt.Sprintf("%q %s lab research group", name, f.inst.Name),
		)
	}
	return qs
}

// FindWebsite searches, scores, and selects at most one website for a record.
// An invalid-key error from the search client is returned; it is permanent
// and the caller must abort.
func (f *Finder) FindWebsite(ctx context.Context, rec *model.FacultyRecord) (model.WebsiteFact, bool, error) {
	if f.search.QuotaExhausted() {
		return model.WebsiteFact{}, false, nil
	}

	type ranked struct {
		result brave.Result
		rank   int
	}
	var all []ranked
	for _, query := range f.queries(rec.Name, rec.HIndex) {
		results, err := f.search.Search(ctx, query)
		if err != nil {
			if errors.Is(err, brave.ErrInvalidKey) {
				return model.WebsiteFact{}, false, err
			}
			zap.L().Warn("search failed", zap.String("query", query), zap.Error(err))
		}
		if f.search.QuotaExhausted() {
			break
		}
		for i, r := range results {
			all = append(all, ranked{result: r, rank: i + 1})
		}
	}
	if len(all) == 0 {
		return model.WebsiteFact{}, false, nil
	}

	seen := make(map[string]bool, len(all))
	var best model.WebsiteFact
	found := false
	for _, r := range all {
		key := strings.TrimRight(strings.ToLower(r.result.URL), "/")
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if hardDenied(r.result.URL) {
			continue
		}

		score, signals, pageType := f.scoreResult(r.result, rec.Name)
		score += 0.05 * float64(10-min(r.rank, 10)) / 10

		if !found || score > best.Score {
			best = model.WebsiteFact{
				Value:      r.result.URL,
				Source:     model.SourceSearch,
				Confidence: model.ConfidenceForScore(score, f.cfg.HighConfScore, f.cfg.MediumConfScore),
				Score:      score,
				Signals:    signals,
				PageType:   pageType,
			}
			found = true
		}
	}

	if !found || best.Score < f.cfg.MinScore {
		return model.WebsiteFact{}, false, nil
	}
	return best, true, nil
}

// checkQuota issues one probe query so a dead key or spent quota surfaces
// before the per-record loop starts. A bad key is an error; spent quota is
// reported through QuotaExhausted.
func (f *Finder) checkQuota(ctx context.Context) error {
	if _, err := f.search.Search(ctx, "test"); err != nil {
		if errors.Is(err, brave.ErrInvalidKey) {
			return err
		}
		zap.L().Warn("quota probe failed", zap.Error(err))
	}
	return nil
}

// progressInterval is how many records pass between progress log lines.
const progressInterval = 25

// FindBatch fills missing websites across the population. One probe query
// checks the quota first; then directory cache hits are taken for free and
// the remainder is searched in descending h-index order so a quota cutoff
// loses only the lowest-value records. The returned error is non-nil only
// for an invalid API key, which aborts the run.
func (f *Finder) FindBatch(ctx context.Context, records []*model.FacultyRecord, dir *directory.Scraper) error {
	if err := f.checkQuota(ctx); err != nil {
		return err
	}
	if f.search.QuotaExhausted() {
		zap.L().Warn("search quota already exhausted, skipping website discovery")
		return nil
	}

	if dir != nil {
		cacheHits := 0
		for _, rec := range records {
			if !rec.Website.Empty() {
				continue
			}
			if site, ok := dir.LookupWebsite(rec.Name); ok {
				rec.SetWebsite(model.WebsiteFact{
					Value:      site,
					Source:     model.SourceDirectory,
					Confidence: model.ConfidenceHigh,
					Score:      1.0,
					Signals:    []string{"directory_cache"},
					PageType:   "department",
				})
				cacheHits++
			}
		}
		zap.L().Info("directory cache hits", zap.Int("count", cacheHits))
	}

	var high, medium []*model.FacultyRecord
	for _, rec := range records {
		if !rec.Website.Empty() {
			continue
		}
		switch {
		case rec.HIndex >= f.cfg.HighValueHIndex:
			high = append(high, rec)
		case rec.HIndex >= f.cfg.MediumValueHIndex:
			medium = append(medium, rec)
		}
	}

	estimated := len(high)*3 + len(medium)
	zap.L().Info("website discovery plan",
		zap.Int("high_value", len(high)),
		zap.Int("medium_value", len(medium)),
		zap.Int("estimated_queries", estimated),
		zap.Int("max_queries", f.cfg.MaxQueries))

	if excess := estimated - f.cfg.MaxQueries; excess > 0 {
		drop := min(excess, len(medium))
		medium = medium[:len(medium)-drop]
		zap.L().Warn("trimmed batch to fit query budget", zap.Int("dropped", drop))
	}

	eligible := append(high, medium...)
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].HIndex > eligible[j].HIndex
	})

	found := 0
	for i, rec := range eligible {
		if f.search.QuotaExhausted() {
			zap.L().Warn("search quota exhausted",
				zap.Int("processed", i), zap.Int("eligible", len(eligible)))
			break
		}
		fact, ok, err := f.FindWebsite(ctx, rec)
		if err != nil {
			return err
		}
		if ok {
			rec.SetWebsite(fact)
			found++
			zap.L().Debug("website found",
				zap.String("name", rec.Name), zap.String("url", fact.Value))
		}
		if (i+1)%progressInterval == 0 {
			zap.L().Info("website discovery progress",
				zap.Int("processed", i+1),
				zap.Int("eligible", len(eligible)),
				zap.Int("found", found),
				zap.Int("queries_used", f.search.QueriesUsed()))
		}
	}

	zap.L().Info("website discovery complete",
		zap.Int("found", found),
		zap.Int("eligible", len(eligible)),
		zap.Int("queries_used", f.search.QueriesUsed()))
	return nil
}
