package pipeline

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riqlabs/labmatch-cli/internal/config"
	"github.com/riqlabs/labmatch-cli/internal/model"
	"github.com/riqlabs/labmatch-cli/pkg/openalex"
)

// Seeder builds the seed population of faculty records from the
// bibliometric catalog.
type Seeder struct {
	client openalex.Client
	cfg    config.OpenAlexConfig
}

// NewSeeder creates a seeder over the catalog client.
func NewSeeder(client openalex.Client, cfg config.OpenAlexConfig) *Seeder {
	return &Seeder{client: client, cfg: cfg}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// researchProfile condenses an author's topics and concepts.
func researchProfile(a openalex.Author) model.ResearchProfile {
	var profile model.ResearchProfile

	for _, t := range a.Topics {
		if t.DisplayName == "" {
			continue
		}
		profile.Topics = append(profile.Topics, model.TopicScore{
			Name:  t.DisplayName,
			Score: round3(t.Score),
		})
		if len(profile.Topics) == 15 {
			break
		}
	}

	for _, c := range a.Concepts {
		if c.DisplayName == "" {
			continue
		}
		if len(profile.Concepts) < 10 {
			profile.Concepts = append(profile.Concepts, model.ConceptScore{
				Name:  c.DisplayName,
				Level: c.Level,
				Score: round3(c.Score),
			})
		}
		if c.Level == 0 && len(profile.Fields) < 5 {
			profile.Fields = append(profile.Fields, c.DisplayName)
		}
	}

	if len(profile.Topics) > 0 {
		for _, t := range profile.Topics {
			profile.Keywords = append(profile.Keywords, t.Name)
		}
	} else {
		for _, c := range profile.Concepts {
			if c.Level >= 1 {
				profile.Keywords = append(profile.Keywords, c.Name)
				if len(profile.Keywords) == 15 {
					break
				}
			}
		}
	}
	return profile
}

// Extract pages through the catalog and returns seed records ordered by
// descending h-index. A first-page failure is fatal; a later page failure
// keeps what was already fetched.
func (s *Seeder) Extract(ctx context.Context, inst config.Institution, maxRecords int) ([]model.FacultyRecord, error) {
	shortName := inst.ShortName()
	var records []model.FacultyRecord

	for page := 1; page <= s.cfg.MaxPages; page++ {
		if maxRecords > 0 && len(records) >= maxRecords {
			break
		}

		authors, err := s.client.ListAuthors(ctx, inst.OpenAlexID, page, s.cfg.PageSize)
		if err != nil {
			if page == 1 {
				return nil, eris.Wrap(err, "pipeline: seed extraction first page")
			}
			zap.L().Warn("catalog page failed, keeping partial seed",
				zap.Int("page", page), zap.Error(err))
			break
		}
		if len(authors.Results) == 0 {
			break
		}

		for _, a := range authors.Results {
			if maxRecords > 0 && len(records) >= maxRecords {
				break
			}
			if len(a.LastKnownInstitutions) == 0 {
				continue
			}
			// The catalog's institution filter matches historical
			// affiliations too; wrong primaries get dropped here.
			if !strings.Contains(a.LastKnownInstitutions[0].DisplayName, shortName) {
				continue
			}
			if len(a.LastKnownInstitutions) > s.cfg.MaxAffiliations {
				continue
			}
			if a.SummaryStats.HIndex < s.cfg.MinHIndex && a.WorksCount < s.cfg.MinWorks {
				continue
			}
			if a.DisplayName == "" {
				continue
			}

			rec := model.NewFacultyRecord(a.DisplayName)
			rec.OpenAlexID = a.ID
			rec.ORCID = a.ORCID
			rec.Institution = inst.Name
			rec.InstitutionID = inst.OpenAlexID
			rec.HIndex = a.SummaryStats.HIndex
			rec.I10Index = a.SummaryStats.I10Index
			rec.WorksCount = a.WorksCount
			rec.CitedByCount = a.CitedByCount
			rec.Research = researchProfile(a)
			records = append(records, rec)
		}

		zap.L().Debug("catalog page processed",
			zap.Int("page", page), zap.Int("records", len(records)))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].HIndex > records[j].HIndex
	})

	withORCID := 0
	for _, r := range records {
		if r.ORCID != "" {
			withORCID++
		}
	}
	zap.L().Info("seed extraction complete",
		zap.Int("records", len(records)), zap.Int("with_orcid", withORCID))
	return records, nil
}
