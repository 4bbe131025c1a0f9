package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/emailaddr"
	"github.com/riqlabs/labmatch-cli/internal/model"
	"github.com/riqlabs/labmatch-cli/internal/namematch"
	"github.com/riqlabs/labmatch-cli/pkg/brave"
)

// FallbackSearcher mines search result snippets for email-shaped strings.
// It never fetches the result pages themselves; titles and descriptions only.
type FallbackSearcher struct {
	inst   config.Institution
	cfg    config.ExtractConfig
	search brave.Client
}

// NewFallbackSearcher creates a snippet-only email searcher.
func NewFallbackSearcher(inst config.Institution, cfg config.ExtractConfig, search brave.Client) *FallbackSearcher {
	return &FallbackSearcher{inst: inst, cfg: cfg, search: search}
}

// SearchEmail issues the targeted queries for one person and accepts the
// first allow-listed email whose name score clears the fallback bar. An
// invalid-key error is returned; it is permanent and the caller must abort.
func (s *FallbackSearcher) SearchEmail(ctx context.Context, rec *model.FacultyRecord) (model.EmailFact, bool, error) {
	if s.search.QuotaExhausted() {
		return model.EmailFact{}, false, nil
	}

	queries := []string{
		fmt.Sprintf("%q email site:%s", rec.Name, s.inst.WebsiteDomain),
		fmt.Sprintf("%q contact site:%s", rec.Name, s.inst.WebsiteDomain),
	}
	for _, query := range queries {
		results, err := s.search.Search(ctx, query)
		if err != nil {
			if errors.Is(err, brave.ErrInvalidKey) {
				return model.EmailFact{}, false, err
			}
			zap.L().Warn("fallback search failed", zap.String("query", query), zap.Error(err))
		}
		if s.search.QuotaExhausted() {
			break
		}
		for _, result := range results {
			text := result.Title + " " + result.Description
			for _, email := range emailaddr.Re.FindAllString(text, -1) {
				email = strings.ToLower(email)
				if !emailaddr.Acceptable(email, s.inst.EmailDomains) {
					continue
				}
				score := namematch.EmailNameScore(email, rec.Name)
				if score < s.cfg.FallbackMinScore {
					continue
				}
				return model.EmailFact{
					Value:            email,
					Source:           model.SourceFallback,
					Confidence:       model.ConfidenceMedium,
					ExtractedFrom:    result.URL,
					ExtractionMethod: "fallback_search",
					NameMatchScore:   score,
				}, true, nil
			}
		}
	}
	return model.EmailFact{}, false, nil
}

// SearchBatch runs the fallback queries for records that still lack an email
// despite having a website, capped at the configured maximum. The returned
// error is non-nil only for an invalid API key, which aborts the run.
func (s *FallbackSearcher) SearchBatch(ctx context.Context, records []*model.FacultyRecord) error {
	var eligible []*model.FacultyRecord
	for _, rec := range records {
		if !rec.Website.Empty() && rec.Email.Empty() {
			eligible = append(eligible, rec)
			if len(eligible) == s.cfg.MaxFallback {
				break
			}
		}
	}
	zap.L().Info("fallback email search", zap.Int("eligible", len(eligible)))

	found := 0
	for i, rec := range eligible {
		if s.search.QuotaExhausted() {
			zap.L().Warn("search quota exhausted",
				zap.Int("processed", i), zap.Int("eligible", len(eligible)))
			break
		}
		fact, ok, err := s.SearchEmail(ctx, rec)
		if err != nil {
			return err
		}
		if ok {
			if rec.SetEmail(fact) {
				found++
				zap.L().Debug("fallback email found",
					zap.String("name", rec.Name), zap.String("email", fact.Value))
			}
		}
		if (i+1)%progressInterval == 0 {
			zap.L().Info("fallback search progress",
				zap.Int("processed", i+1),
				zap.Int("eligible", len(eligible)),
				zap.Int("found", found))
		}
	}
	zap.L().Info("fallback search complete",
		zap.Int("found", found), zap.Int("eligible", len(eligible)))
	return nil
}
