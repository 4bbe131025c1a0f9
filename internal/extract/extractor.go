// Package extract pulls contact emails out of discovered pages and, as a
// last resort, out of search result snippets. Three channels feed the
// candidate pool: mailto links, raw regex hits in page text, and
// de-obfuscated "name [at] host [dot] edu" forms.
package extract

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/emailaddr"
	"github.com/riqlabs/labmatch-cli/internal/model"
	"github.com/riqlabs/labmatch-cli/internal/namematch"
	"github.com/riqlabs/labmatch-cli/internal/scrape"
)

// obfuscationRes match spelled-out addresses. Each has exactly three groups:
// local part, host, TLD.
var obfuscationRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\[\s*at\s*\]\s*([A-Za-z0-9.-]+)\s*\[\s*dot\s*\]\s*([A-Za-z]{2,})`),
	regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\(\s*at\s*\)\s*([A-Za-z0-9.-]+)\s*\(\s*dot\s*\)\s*([A-Za-z]{2,})`),
	regexp.MustCompile(`([A-Za-z0-9._%+-]+)\s+AT\s+([A-Za-z0-9.-]+)\s+DOT\s+([A-Za-z]{2,})`),
	regexp.MustCompile(`([A-Za-z0-9._%+-]+)\s+at\s+([A-Za-z0-9.-]+)\s+dot\s+([A-Za-z]{2,})`),
}

// contactLinkPatterns mark hrefs likely to lead to a contact page.
var contactLinkPatterns = []string{
	"/contact", "/about", "/email", "/bio", "/profile",
	"/cv", "/home", "biography", "personal",
	"/people/", "/faculty/", "/staff/", "/directory/",
	"/info", "/reach", "/connect",
	"?page=contact", "?view=contact", "?tab=contact",
}

// contactLinkWords mark anchor text likely to lead to a contact page.
var contactLinkWords = []string{"contact", "email", "reach", "about me", "bio"}

// methodBoost rewards extraction channels by reliability.
var methodBoost = map[string]float64{
	"mailto":       0.3,
	"regex":        0.2,
	"contact_page": 0.15,
	"obfuscated":   0.1,
}

// candidate is one extracted email plus the channel that produced it.
type candidate struct {
	email  string
	method string
}

// Extractor mines discovered pages for a person's email.
type Extractor struct {
	inst    config.Institution
	cfg     config.ExtractConfig
	fetcher *scrape.Fetcher
}

// NewExtractor creates an extractor using the shared rate-limited fetcher.
func NewExtractor(inst config.Institution, cfg config.ExtractConfig, fetcher *scrape.Fetcher) *Extractor {
	return &Extractor{inst: inst, cfg: cfg, fetcher: fetcher}
}

func matchesAny(s string, patterns []string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// extractMailto collects deduplicated mailto addresses from a page.
func extractMailto(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var out []string
	doc.Find("a[href^='mailto:']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		email := emailaddr.Clean(html.UnescapeString(href))
		if email != "" && !seen[email] {
			seen[email] = true
			out = append(out, email)
		}
	})
	return out
}

// extractRegex collects deduplicated email-shaped substrings from text.
func extractRegex(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range emailaddr.Re.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// extractObfuscated reassembles spelled-out addresses from text.
func extractObfuscated(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, re := range obfuscationRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			email := strings.ToLower(fmt.Sprintf("%s@%s.%s", m[1], m[2], m[3]))
			if !seen[email] {
				seen[email] = true
				out = append(out, email)
			}
		}
	}
	return out
}

// contactPages finds same-host links worth a second fetch, plus a few
// conventional /contact guesses, capped at the configured page limit.
func (e *Extractor) contactPages(page *scrape.Page) []string {
	baseHost := scrape.Host(page.URL)
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if u != "" && u != page.URL && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	page.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := strings.ToLower(a.Text())

		isContact := matchesAny(href, contactLinkPatterns)
		for _, w := range contactLinkWords {
			if strings.Contains(text, w) {
				isContact = true
				break
			}
		}
		if !isContact {
			return
		}
		full := scrape.Resolve(page.URL, href)
		if scrape.Host(full) == baseHost {
			add(full)
		}
	})

	if base, err := url.Parse(page.URL); err == nil {
		path := strings.TrimRight(base.Path, "/")
		root := base.Scheme + "://" + base.Host
		add(root + path + "/contact")
		add(root + "/contact")
		add(root + path + "?tab=contact")
	}

	if len(out) > e.cfg.MaxContactPages {
		out = out[:e.cfg.MaxContactPages]
	}
	return out
}

// selectBest scores candidates against the person's name and returns the
// winner, or ok=false when none clears the acceptance bars.
func (e *Extractor) selectBest(candidates []candidate, name string) (candidate, float64, bool) {
	var best candidate
	bestScore := -1.0
	for _, c := range candidates {
		if !emailaddr.Acceptable(c.email, e.inst.EmailDomains) {
			continue
		}
		nameScore := namematch.EmailNameScore(c.email, name)
		total := nameScore + methodBoost[c.method]

		minScore := e.cfg.GeneralMinScore
		if c.method == "mailto" {
			minScore = e.cfg.MailtoMinScore
		}
		if nameScore < minScore && total < e.cfg.CombinedMinScore {
			continue
		}
		if total > bestScore {
			best, bestScore = c, total
		}
	}
	return best, bestScore, bestScore >= 0
}

// ExtractEmail mines one discovered page (and, when needed, its contact
// pages) for the person's email.
func (e *Extractor) ExtractEmail(ctx context.Context, pageURL, name string) (model.EmailFact, bool) {
	if pageURL == "" || matchesAny(pageURL, e.inst.SkipEmailSites) {
		return model.EmailFact{}, false
	}

	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		zap.L().Debug("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return model.EmailFact{}, false
	}

	var candidates []candidate
	text := page.Doc.Text()
	for _, email := range extractMailto(page.Doc) {
		candidates = append(candidates, candidate{email, "mailto"})
	}
	for _, email := range extractRegex(text) {
		candidates = append(candidates, candidate{email, "regex"})
	}
	for _, email := range extractObfuscated(text) {
		candidates = append(candidates, candidate{email, "obfuscated"})
	}

	best, bestScore, found := e.selectBest(candidates, name)

	if !found || bestScore < e.cfg.ContactPageScore || matchesAny(pageURL, e.inst.ContactPageSites) {
		for _, contactURL := range e.contactPages(page) {
			contact, err := e.fetcher.Fetch(ctx, contactURL)
			if err != nil {
				continue
			}
			for _, email := range extractMailto(contact.Doc) {
				candidates = append(candidates, candidate{email, "contact_page"})
			}
			for _, email := range extractRegex(contact.Doc.Text()) {
				candidates = append(candidates, candidate{email, "contact_page"})
			}
			if b, s, ok := e.selectBest(candidates, name); ok && s > bestScore {
				best, bestScore, found = b, s, true
				if bestScore >= e.cfg.GoodEnoughScore {
					break
				}
			}
		}
	}

	if !found {
		return model.EmailFact{}, false
	}
	return model.EmailFact{
		Value:            best.email,
		Source:           model.SourceWebsite,
		Confidence:       model.ConfidenceForScore(bestScore, e.cfg.HighConfScore, e.cfg.MediumConfScore),
		ExtractedFrom:    pageURL,
		ExtractionMethod: best.method,
		NameMatchScore:   bestScore,
	}, true
}

// progressInterval is how many records pass between progress log lines.
const progressInterval = 25

// ExtractBatch fills missing emails for records that have a usable website.
// Aggregator profiles are skipped; they never expose institutional emails.
func (e *Extractor) ExtractBatch(ctx context.Context, records []*model.FacultyRecord) {
	var eligible []*model.FacultyRecord
	for _, rec := range records {
		if !rec.Website.Empty() && rec.Email.Empty() && rec.Website.PageType != "aggregator" {
			eligible = append(eligible, rec)
		}
	}
	zap.L().Info("website email extraction", zap.Int("eligible", len(eligible)))

	found := 0
	for i, rec := range eligible {
		if fact, ok := e.ExtractEmail(ctx, rec.Website.Value, rec.Name); ok {
			if rec.SetEmail(fact) {
				found++
				zap.L().Debug("email extracted",
					zap.String("name", rec.Name), zap.String("email", fact.Value))
			}
		}
		if (i+1)%progressInterval == 0 {
			zap.L().Info("website email extraction progress",
				zap.Int("processed", i+1),
				zap.Int("eligible", len(eligible)),
				zap.Int("found", found))
		}
	}
	zap.L().Info("website email extraction complete",
		zap.Int("found", found), zap.Int("eligible", len(eligible)))
}
