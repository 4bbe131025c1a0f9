// Package directory scrapes institutional listing pages into name-keyed
// contact caches. Cached hits are free; every hit here saves a metered
// search query later.
package directory

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/emailaddr"
	"github.com/riqlabs/labmatch-cli/internal/model"
	"github.com/riqlabs/labmatch-cli/internal/namematch"
	"github.com/riqlabs/labmatch-cli/internal/scrape"
)

// personClassRe spots list containers that hold one person each.
var personClassRe = regexp.MustCompile(`(?i)faculty|person|profile|member|staff|people`)

// profileLinkPatterns mark hrefs that point at an individual's profile page.
var profileLinkPatterns = []string{"/people/", "/faculty/", "/profile/", "/person/"}

// Cache is the serializable state of a scraped directory, attached to the
// directory-phase checkpoint so resumed runs skip the scrape entirely.
type Cache struct {
	Emails   map[string]string `json:"emails"`
	Websites map[string]string `json:"websites"`
}

// Scraper builds and queries the directory caches.
type Scraper struct {
	inst    config.Institution
	fetcher *scrape.Fetcher
	fuzzy   float64

	mu       sync.Mutex
	emails   map[string]string
	websites map[string]string
}

// NewScraper creates a scraper for one institution. fuzzy is the acceptance
// threshold for non-exact name matches.
func NewScraper(inst config.Institution, fetcher *scrape.Fetcher, fuzzy float64) *Scraper {
	return &Scraper{
		inst:     inst,
		fetcher:  fetcher,
		fuzzy:    fuzzy,
		emails:   make(map[string]string),
		websites: make(map[string]string),
	}
}

// ScrapeAll fetches every configured listing page once. A page that fails to
// load is logged and skipped; it never aborts the rest.
func (s *Scraper) ScrapeAll(ctx context.Context) {
	if len(s.inst.Directories) == 0 {
		zap.L().Info("no directory pages configured", zap.String("institution", s.inst.Name))
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for _, pageURL := range s.inst.Directories {
		g.Go(func() error {
			page, err := s.fetcher.Fetch(ctx, pageURL)
			if err != nil {
				zap.L().Warn("directory page fetch failed",
					zap.String("url", pageURL), zap.Error(err))
				return nil
			}
			added := s.scrapePage(page)
			zap.L().Debug("directory page scraped",
				zap.String("url", pageURL), zap.Int("entries", added))
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("directory cache built",
		zap.Int("emails", len(s.emails)), zap.Int("websites", len(s.websites)))
}

// scrapePage extracts name→email and name→website pairs from one listing
// page and merges them into the caches. Returns the number of entries added.
func (s *Scraper) scrapePage(page *scrape.Page) int {
	emails := make(map[string]string)
	websites := make(map[string]string)

	// Pass 1: every mailto link, keyed by the leading words of its nearest
	// row-ish ancestor.
	page.Doc.Find("a[href^='mailto:']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		email := emailaddr.Clean(href)
		if !emailaddr.Acceptable(email, s.inst.EmailDomains) {
			return
		}
		parent := a.Closest("tr, div, li, article, section")
		if parent.Length() == 0 {
			return
		}
		words := strings.Fields(parent.Text())
		if len(words) > 6 {
			words = words[:6]
		}
		name := namematch.Normalize(strings.Join(words, " "))
		if len(name) > 3 {
			emails[name] = email
		}
	})

	// Pass 2: per-person containers identified by class name, which also
	// carry profile links.
	page.Doc.Find("div, article, li, tr").Each(func(_ int, container *goquery.Selection) {
		class, _ := container.Attr("class")
		if !personClassRe.MatchString(class) {
			return
		}
		heading := container.Find("h2, h3, h4, a, strong").First()
		name := namematch.Normalize(heading.Text())
		if len(name) <= 3 {
			return
		}

		if href, ok := container.Find("a[href^='mailto:']").First().Attr("href"); ok {
			email := emailaddr.Clean(href)
			if emailaddr.Acceptable(email, s.inst.EmailDomains) {
				emails[name] = email
			}
		}

		container.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			for _, pattern := range profileLinkPatterns {
				if strings.Contains(href, pattern) {
					websites[name] = scrape.Resolve(page.URL, href)
					return false
				}
			}
			return true
		})
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, email := range emails {
		s.emails[name] = email
	}
	for name, site := range websites {
		s.websites[name] = site
	}
	return len(emails) + len(websites)
}

// LookupEmail resolves a faculty name against the email cache. Exact
// variation hits come back HIGH, fuzzy hits above the threshold MEDIUM.
func (s *Scraper) LookupEmail(name string) (model.EmailFact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, variant := range namematch.Variations(name) {
		if email, ok := s.emails[variant]; ok {
			return model.EmailFact{
				Value:            email,
				Source:           model.SourceDirectory,
				Confidence:       model.ConfidenceHigh,
				ExtractedFrom:    "department_directory",
				ExtractionMethod: "directory_exact_match",
				NameMatchScore:   1.0,
			}, true
		}
	}

	bestScore := 0.0
	bestEmail := ""
	for cached, email := range s.emails {
		if score := namematch.Similarity(name, cached); score > bestScore && score >= s.fuzzy {
			bestScore, bestEmail = score, email
		}
	}
	if bestEmail == "" {
		return model.EmailFact{}, false
	}
	return model.EmailFact{
		Value:            bestEmail,
		Source:           model.SourceDirectory,
		Confidence:       model.ConfidenceMedium,
		ExtractedFrom:    "department_directory",
		ExtractionMethod: "directory_fuzzy_match",
		NameMatchScore:   bestScore,
	}, true
}

// LookupWebsite resolves a faculty name against the website cache using the
// same exact-then-fuzzy strategy.
func (s *Scraper) LookupWebsite(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, variant := range namematch.Variations(name) {
		if site, ok := s.websites[variant]; ok {
			return site, true
		}
	}
	for cached, site := range s.websites {
		if namematch.Similarity(name, cached) >= s.fuzzy {
			return site, true
		}
	}
	return "", false
}

// Snapshot copies the caches for checkpointing.
func (s *Scraper) Snapshot() Cache {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Cache{
		Emails:   make(map[string]string, len(s.emails)),
		Websites: make(map[string]string, len(s.websites)),
	}
	for k, v := range s.emails {
		c.Emails[k] = v
	}
	for k, v := range s.websites {
		c.Websites[k] = v
	}
	return c
}

// Restore replaces the caches with a checkpointed snapshot.
func (s *Scraper) Restore(c Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.emails = make(map[string]string, len(c.Emails))
	for k, v := range c.Emails {
		s.emails[k] = v
	}
	s.websites = make(map[string]string, len(c.Websites))
	for k, v := range c.Websites {
		s.websites[k] = v
	}
}

// Size returns the cache entry counts, for run statistics.
func (s *Scraper) Size() (emails, websites int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emails), len(s.websites)
}
