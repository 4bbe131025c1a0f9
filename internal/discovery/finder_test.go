package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/directory"
	"github.com/riqlabs/labmatch-cli/internal/model"
	"github.com/riqlabs/labmatch-cli/internal/scrape"
	"github.com/riqlabs/labmatch-cli/pkg/brave"
)

// fakeSearch is a canned search client for tests.
type fakeSearch struct {
	results   map[string][]brave.Result
	fallback  []brave.Result
	err       error
	calls     []string
	exhausted bool
	// exhaustAfter flips the quota flag after this many calls when > 0.
	exhaustAfter int
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]brave.Result, error) {
	if f.exhausted {
		return nil, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, query)
	if f.exhaustAfter > 0 && len(f.calls) >= f.exhaustAfter {
		f.exhausted = true
	}
	if r, ok := f.results[query]; ok {
		return r, nil
	}
	return f.fallback, nil
}

func (f *fakeSearch) QuotaExhausted() bool { return f.exhausted }
func (f *fakeSearch) QueriesUsed() int     { return len(f.calls) }

func testFinder(search brave.Client) *Finder {
	inst := config.Institution{
		Name:          "Example University",
		EmailDomains:  []string{"example.edu"},
		WebsiteDomain: "example.edu",
	}
	cfg := config.DiscoveryConfig{
		HighValueHIndex:   40,
		MediumValueHIndex: 20,
		MinScore:          0.15,
		HighConfScore:     0.5,
		MediumConfScore:   0.3,
		MaxQueries:        5000,
	}
	return NewFinder(inst, cfg, search)
}

func TestQueriesByTier(t *testing.T) {
	f := testFinder(&fakeSearch{})

	assert.Len(t, f.queries("Jane Doe", 15), 1)
	assert.Len(t, f.queries("Jane Doe", 45), 3)
	assert.Equal(t, `"Jane Doe" site:example.edu`, f.queries("Jane Doe", 15)[0])
}

func TestClassifyPage(t *testing.T) {
	f := testFinder(&fakeSearch{})

	pt, mod := f.classifyPage("https://www.researchgate.net/profile/Jane-Doe")
	assert.Equal(t, "aggregator", pt)
	assert.Equal(t, -0.4, mod)

	pt, _ = f.classifyPage("https://example.edu/stats/publications/2024")
	assert.Equal(t, "publications", pt)

	pt, _ = f.classifyPage("https://cs.example.edu/~jdoe/")
	assert.Equal(t, "personal", pt)

	pt, _ = f.classifyPage("https://example.edu/about")
	assert.Equal(t, "department", pt)
}

func TestHardDenied(t *testing.T) {
	assert.True(t, hardDenied("https://www.linkedin.com/in/jane-doe"))
	assert.True(t, hardDenied("https://example.edu/files/cv.pdf"))
	assert.True(t, hardDenied("https://example.edu/event/seminar"))
	assert.False(t, hardDenied("https://example.edu/~jdoe/"))
}

func TestFindWebsitePicksPersonalPage(t *testing.T) {
	search := &fakeSearch{fallback: []brave.Result{
		{URL: "https://www.linkedin.com/in/jane-doe", Title: "Jane Doe | LinkedIn"},
		{URL: "https://example.edu/~jdoe/", Title: "Jane Doe - Home", Description: "research publications teaching"},
		{URL: "https://example.edu/people", Title: "People"},
	}}
	f := testFinder(search)

	rec := model.NewFacultyRecord("Jane Doe")
	rec.HIndex = 25
	fact, ok, err := f.FindWebsite(context.Background(), &rec)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://example.edu/~jdoe/", fact.Value)
	assert.Equal(t, model.SourceSearch, fact.Source)
	assert.Equal(t, model.ConfidenceHigh, fact.Confidence)
	assert.Equal(t, "personal", fact.PageType)
	assert.Contains(t, fact.Signals, "tilde_url")
	assert.Contains(t, fact.Signals, "institution_domain")
	assert.Contains(t, fact.Signals, "fullname_in_title")
}

func TestFindWebsiteRejectsBelowFloor(t *testing.T) {
	search := &fakeSearch{fallback: []brave.Result{
		{URL: "https://randomsite.com/foo", Title: "Something else"},
	}}
	f := testFinder(search)

	rec := model.NewFacultyRecord("Jane Doe")
	_, ok, err := f.FindWebsite(context.Background(), &rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindWebsiteNoResults(t *testing.T) {
	f := testFinder(&fakeSearch{})

	rec := model.NewFacultyRecord("Jane Doe")
	_, ok, err := f.FindWebsite(context.Background(), &rec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindWebsitePropagatesInvalidKey(t *testing.T) {
	f := testFinder(&fakeSearch{err: brave.ErrInvalidKey})

	rec := model.NewFacultyRecord("Jane Doe")
	rec.HIndex = 25
	_, _, err := f.FindWebsite(context.Background(), &rec)
	assert.ErrorIs(t, err, brave.ErrInvalidKey)
}

func TestFindBatchUsesDirectoryCacheFirst(t *testing.T) {
	search := &fakeSearch{}
	f := testFinder(search)

	dir := directory.NewScraper(config.Institution{Name: "Example University"}, scrape.NewFetcher(), 0.85)
	dir.Restore(directory.Cache{
		Websites: map[string]string{"jane doe": "https://example.edu/people/jane-doe"},
	})

	rec := model.NewFacultyRecord("Jane Doe")
	rec.HIndex = 30
	records := []*model.FacultyRecord{&rec}
	require.NoError(t, f.FindBatch(context.Background(), records, dir))

	assert.Equal(t, "https://example.edu/people/jane-doe", rec.Website.Value)
	assert.Equal(t, model.SourceDirectory, rec.Website.Source)
	assert.Equal(t, model.ConfidenceHigh, rec.Website.Confidence)
	assert.Contains(t, rec.Website.Signals, "directory_cache")
	// The cache hit covers the record; only the quota probe was spent.
	assert.Equal(t, []string{"test"}, search.calls)
}

func TestFindBatchSkipsLowHIndex(t *testing.T) {
	search := &fakeSearch{}
	f := testFinder(search)

	rec := model.NewFacultyRecord("Jane Doe")
	rec.HIndex = 12
	require.NoError(t, f.FindBatch(context.Background(), []*model.FacultyRecord{&rec}, nil))

	// Quota probe only; the record is below the search tier.
	assert.Equal(t, []string{"test"}, search.calls)
	assert.True(t, rec.Website.Empty())
}

func TestFindBatchTrimsToQueryBudget(t *testing.T) {
	search := &fakeSearch{}
	f := testFinder(search)
	f.cfg.MaxQueries = 2

	recs := make([]*model.FacultyRecord, 0, 4)
	for _, name := range []string{"A One", "B Two", "C Three", "D Four"} {
		rec := model.NewFacultyRecord(name)
		rec.HIndex = 25
		recs = append(recs, &rec)
	}
	require.NoError(t, f.FindBatch(context.Background(), recs, nil))

	// Four medium-value people estimate four queries; two get trimmed.
	// The probe precedes them.
	assert.Len(t, search.calls, 3)
	assert.Equal(t, "test", search.calls[0])
}

func TestFindBatchStopsOnQuotaExhaustion(t *testing.T) {
	// The probe itself burns the last unit, so the whole phase is skipped.
	search := &fakeSearch{exhaustAfter: 1}
	f := testFinder(search)

	recs := make([]*model.FacultyRecord, 0, 3)
	for _, name := range []string{"A One", "B Two", "C Three"} {
		rec := model.NewFacultyRecord(name)
		rec.HIndex = 25
		recs = append(recs, &rec)
	}
	require.NoError(t, f.FindBatch(context.Background(), recs, nil))

	assert.Equal(t, []string{"test"}, search.calls)
	for _, rec := range recs {
		assert.True(t, rec.Website.Empty())
	}
}

func TestFindBatchMidPhaseQuotaCutoff(t *testing.T) {
	// Probe passes, then the second discovery query exhausts the quota;
	// the loop stops instead of walking the rest of the batch.
	search := &fakeSearch{exhaustAfter: 3}
	f := testFinder(search)

	recs := make([]*model.FacultyRecord, 0, 5)
	for _, name := range []string{"A One", "B Two", "C Three", "D Four", "E Five"} {
		rec := model.NewFacultyRecord(name)
		rec.HIndex = 25
		recs = append(recs, &rec)
	}
	require.NoError(t, f.FindBatch(context.Background(), recs, nil))

	assert.Len(t, search.calls, 3)
}

func TestFindBatchAbortsOnInvalidKey(t *testing.T) {
	search := &fakeSearch{err: brave.ErrInvalidKey}
	f := testFinder(search)

	rec := model.NewFacultyRecord("Jane Doe")
	rec.HIndex = 45
	err := f.FindBatch(context.Background(), []*model.FacultyRecord{&rec}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, brave.ErrInvalidKey)
	assert.True(t, rec.Website.Empty())
}
