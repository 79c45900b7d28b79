// Package publisher commits generated files to a new branch and opens a pull
// request for them.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/danielolaszy/codefair/internal/compliance"
	"github.com/danielolaszy/codefair/internal/dedup"
	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/internal/spdx"
	"github.com/danielolaszy/codefair/pkg/models"
)

// Pull request titles. They also identify existing generated pull requests.
const (
	LicenseTitle  = "feat: ✨ LICENSE file added"
	CitationTitle = "feat: ✨ CITATION.cff created for repo"
)

// Client is the part of the GitHub client the publisher needs.
type Client interface {
	GetRepository(ctx context.Context, repository string) (models.Repository, error)
	GetBranch(ctx context.Context, repository, branch string) (models.Branch, error)
	CreateBranch(ctx context.Context, repository, branch, sha string) error
	CreateFile(ctx context.Context, repository, branch, path, message string, content []byte) error
	ListPullRequests(ctx context.Context, repository, state string) ([]models.PullRequest, error)
	CreatePullRequest(ctx context.Context, repository string, pull models.NewPullRequest) (models.PullRequest, error)
	CreateComment(ctx context.Context, repository string, number int, body string) error
}

// LicenseSource resolves SPDX identifiers to license text.
type LicenseSource interface {
	Lookup(id string) (spdx.License, error)
	FetchText(ctx context.Context, id string) (string, error)
}

// Outcome is what a publish request did.
type Outcome string

const (
	// OutcomeCreated means a branch, file and pull request were created.
	OutcomeCreated Outcome = "created"
	// OutcomeExisting means a matching pull request was already open.
	OutcomeExisting Outcome = "existing"
	// OutcomeRejected means the request named an unknown license.
	OutcomeRejected Outcome = "rejected"
	// OutcomeSkipped means a concurrent delivery is publishing the same file.
	OutcomeSkipped Outcome = "skipped"
)

// Result reports a publish request.
type Result struct {
	Outcome     Outcome
	Branch      string
	PullRequest models.PullRequest
}

// Publisher creates generated-file pull requests.
type Publisher struct {
	client   Client
	licenses LicenseSource
	guard    dedup.Guard
	suffix   func() int
}

// New creates a publisher. A nil guard disables the compare-and-create step.
func New(client Client, licenses LicenseSource, guard dedup.Guard) *Publisher {
	if guard == nil {
		guard = dedup.Nop{}
	}
	return &Publisher{
		client:   client,
		licenses: licenses,
		guard:    guard,
		suffix:   func() int { return rand.IntN(1_000_000_000) },
	}
}

// ExistingPullRequest returns the open pull request titled title, if any.
func (p *Publisher) ExistingPullRequest(ctx context.Context, repository, title string) (models.PullRequest, bool, error) {
	pulls, err := p.client.ListPullRequests(ctx, repository, "open")
	if err != nil {
		return models.PullRequest{}, false, fmt.Errorf("failed to list pull requests for %s: %w", repository, err)
	}
	for _, pr := range pulls {
		if pr.Title == title {
			return pr, true, nil
		}
	}
	return models.PullRequest{}, false, nil
}

// PublishLicense adds the license identified by spdxID on behalf of issue.
// Unknown identifiers are answered with a comment on the issue.
func (p *Publisher) PublishLicense(ctx context.Context, repository string, issue int, spdxID string) (Result, error) {
	ctx = logging.WithFields(ctx, "repository", repository, "issue_number", issue, "license", spdxID)

	if pr, ok, err := p.ExistingPullRequest(ctx, repository, LicenseTitle); err != nil {
		return Result{}, err
	} else if ok {
		body := fmt.Sprintf("A pull request for the LICENSE file already exists here: %s", pr.HTMLURL)
		return p.pointAt(ctx, repository, issue, pr, body)
	}

	if _, err := p.licenses.Lookup(spdxID); err != nil {
		if !errors.Is(err, spdx.ErrUnknownLicense) {
			return Result{}, err
		}
		logging.WarnContext(ctx, "unknown license requested")
		body := fmt.Sprintf("The license identifier “%s” was not found in the SPDX License List. Please reply with a valid license identifier.", spdxID)
		if err := p.client.CreateComment(ctx, repository, issue, body); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeRejected}, nil
	}

	key := dedup.Key(repository, compliance.License.Path)
	if acquired, err := p.guard.Acquire(ctx, key); err != nil {
		return Result{}, err
	} else if !acquired {
		logging.InfoContext(ctx, "license publication already in progress")
		return Result{Outcome: OutcomeSkipped}, nil
	}

	text, err := p.licenses.FetchText(ctx, spdxID)
	if err != nil {
		p.release(ctx, key)
		return Result{}, err
	}

	result, err := p.publish(ctx, repository, issue, key, file{
		branchPrefix: "license",
		path:         compliance.License.Path,
		message:      fmt.Sprintf("feat: ✨ add LICENSE file with %s license terms", spdxID),
		title:        LicenseTitle,
		content:      []byte(text),
	})
	if err != nil {
		return Result{}, err
	}

	body := fmt.Sprintf("A LICENSE file with %s license terms has been added to a new branch and a pull request is awaiting approval. I will close this issue automatically once the pull request is approved.", spdxID)
	if err := p.client.CreateComment(ctx, repository, issue, body); err != nil {
		return Result{}, err
	}
	return result, nil
}

// PublishCitation commits text as CITATION.cff on behalf of issue.
func (p *Publisher) PublishCitation(ctx context.Context, repository string, issue int, text string) (Result, error) {
	ctx = logging.WithFields(ctx, "repository", repository, "issue_number", issue)

	if pr, ok, err := p.ExistingPullRequest(ctx, repository, CitationTitle); err != nil {
		return Result{}, err
	} else if ok {
		return p.pointAt(ctx, repository, issue, pr, CitationPointer(pr))
	}

	key := dedup.Key(repository, compliance.Citation.Path)
	if acquired, err := p.guard.Acquire(ctx, key); err != nil {
		return Result{}, err
	} else if !acquired {
		logging.InfoContext(ctx, "citation publication already in progress")
		return Result{Outcome: OutcomeSkipped}, nil
	}

	result, err := p.publish(ctx, repository, issue, key, file{
		branchPrefix: "citation",
		path:         compliance.Citation.Path,
		message:      "feat: ✨ add CITATION.cff file",
		title:        CitationTitle,
		content:      []byte(text),
	})
	if err != nil {
		return Result{}, err
	}

	body := "A CITATION.cff file has been added to a new branch and a pull request is awaiting approval. I will close this issue automatically once the pull request is approved."
	if err := p.client.CreateComment(ctx, repository, issue, body); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (p *Publisher) release(ctx context.Context, key string) {
	if err := p.guard.Release(ctx, key); err != nil {
		logging.WarnContext(ctx, "failed to release dedup key", "key", key, "error", err)
	}
}

// CitationPointer is the comment that links an open citation pull request.
func CitationPointer(pr models.PullRequest) string {
	return fmt.Sprintf("A PR for the CITATION.cff file already exists here: %s", pr.HTMLURL)
}

func (p *Publisher) pointAt(ctx context.Context, repository string, issue int, pr models.PullRequest, body string) (Result, error) {
	logging.InfoContext(ctx, "pull request already open", "pull_number", pr.Number)
	if err := p.client.CreateComment(ctx, repository, issue, body); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeExisting, PullRequest: pr, Branch: pr.Head}, nil
}

type file struct {
	branchPrefix string
	path         string
	message      string
	title        string
	content      []byte
}

// publish branches off the default branch tip, commits f and opens the pull
// request. A partially created branch is left in place on failure and key is
// released so that the maintainer can retry.
func (p *Publisher) publish(ctx context.Context, repository string, issue int, key string, f file) (result Result, err error) {
	defer func() {
		if err != nil {
			p.release(ctx, key)
		}
	}()

	repo, err := p.client.GetRepository(ctx, repository)
	if err != nil {
		return Result{}, err
	}

	base, err := p.client.GetBranch(ctx, repository, repo.DefaultBranch)
	if err != nil {
		return Result{}, err
	}

	branch := fmt.Sprintf("%s-%d", f.branchPrefix, p.suffix())
	if err := p.client.CreateBranch(ctx, repository, branch, base.SHA); err != nil {
		return Result{}, err
	}

	if err := p.client.CreateFile(ctx, repository, branch, f.path, f.message, f.content); err != nil {
		return Result{}, err
	}

	pr, err := p.client.CreatePullRequest(ctx, repository, models.NewPullRequest{
		Title: f.title,
		Head:  branch,
		Base:  base.Name,
		Body:  fmt.Sprintf("Resolves #%d", issue),
	})
	if err != nil {
		return Result{}, err
	}

	logging.InfoContext(ctx, "opened pull request",
		"path", f.path,
		"branch", branch,
		"pull_number", pr.Number)
	return Result{Outcome: OutcomeCreated, Branch: branch, PullRequest: pr}, nil
}
