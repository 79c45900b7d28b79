package citation

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/pkg/models"
)

var doiPattern = regexp.MustCompile(`(?i)10\.\d{4,9}/[-._;()/:A-Z0-9]+`)

// ExtractDOI returns the first DOI in text.
func ExtractDOI(text string) (string, bool) {
	doi := doiPattern.FindString(text)
	return doi, doi != ""
}

// MetadataSource is the part of the GitHub client the synthesizer reads.
type MetadataSource interface {
	GetRepository(ctx context.Context, repository string) (models.Repository, error)
	GetReadme(ctx context.Context, repository string) (string, error)
	ListContributors(ctx context.Context, repository string) ([]models.Contributor, error)
	ListLanguages(ctx context.Context, repository string) ([]string, error)
	ListReleases(ctx context.Context, repository string) ([]models.Release, error)
	GetUser(ctx context.Context, login string) (models.User, error)
}

// Synthesizer assembles a citation from repository metadata.
type Synthesizer struct {
	client      MetadataSource
	now         func() time.Time
	concurrency int
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(client MetadataSource) *Synthesizer {
	return &Synthesizer{
		client:      client,
		now:         time.Now,
		concurrency: 8,
	}
}

// Synthesize gathers metadata for repository and builds its citation.
func (s *Synthesizer) Synthesize(ctx context.Context, repository string) (Record, error) {
	contributors, err := s.client.ListContributors(ctx, repository)
	if err != nil {
		return Record{}, fmt.Errorf("failed to gather contributors: %w", err)
	}

	languages, err := s.client.ListLanguages(ctx, repository)
	if err != nil {
		return Record{}, fmt.Errorf("failed to gather languages: %w", err)
	}
	logging.InfoContext(ctx, "repository languages", "languages", languages)

	releases, err := s.client.ListReleases(ctx, repository)
	if err != nil {
		return Record{}, fmt.Errorf("failed to gather releases: %w", err)
	}

	repo, err := s.client.GetRepository(ctx, repository)
	if err != nil {
		return Record{}, fmt.Errorf("failed to gather repository metadata: %w", err)
	}

	profiles, err := iter.Mapper[models.Contributor, models.User]{MaxGoroutines: s.concurrency}.MapErr(contributors,
		func(c *models.Contributor) (models.User, error) {
			return s.client.GetUser(ctx, c.Login)
		})
	if err != nil {
		return Record{}, fmt.Errorf("failed to gather contributor profiles: %w", err)
	}

	var doi string
	if readme, err := s.client.GetReadme(ctx, repository); err != nil {
		logging.DebugContext(ctx, "readme unavailable, no doi", "error", err)
	} else if found, ok := ExtractDOI(readme); ok {
		doi = found
	}

	record := Record{
		Authors:        authors(profiles),
		CFFVersion:     CFFVersion,
		DateReleased:   s.dateReleased(releases),
		Identifiers:    []Identifier{{Description: DOIIdentifierDetails, Type: DOIIdentifierType, Value: doi}},
		License:        repo.LicenseSPDXID,
		Message:        Message,
		RepositoryCode: repo.HTMLURL,
		Title:          repo.Name,
		Type:           TypeSoftware,
		Abstract:       repo.Description,
		Keywords:       repo.Topics,
		URL:            repo.Homepage,
	}
	if record.URL == "" {
		record.URL = repo.HTMLURL
	}
	// GitHub reports unrecognised license files as NOASSERTION.
	if record.License == "NOASSERTION" {
		record.License = ""
	}

	logging.InfoContext(ctx, "synthesized citation",
		"authors", len(record.Authors),
		"has_doi", doi != "",
		"date_released", record.DateReleased)
	return record, nil
}

func authors(profiles []models.User) []Author {
	var out []Author
	for _, p := range profiles {
		if p.IsBot() {
			continue
		}
		a := Author{
			Affiliation: p.Company,
			Email:       p.Email,
		}
		a.GivenNames, a.FamilyNames = ParseAuthorName(p.Name)
		if a.GivenNames == "" {
			a.Alias = p.Login
		}
		out = append(out, a)
	}
	return out
}

// dateReleased is the publication date of the newest non-draft release, or
// today in UTC.
func (s *Synthesizer) dateReleased(releases []models.Release) string {
	var latest *time.Time
	for _, r := range releases {
		if r.Draft || r.PublishedAt == nil {
			continue
		}
		if latest == nil || r.PublishedAt.After(*latest) {
			latest = r.PublishedAt
		}
	}
	if latest != nil {
		return latest.UTC().Format(dateLayout)
	}
	return s.now().UTC().Format(dateLayout)
}
