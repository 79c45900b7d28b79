// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/codefair/internal/config"
	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/pkg/models"
)

// ErrNotFound is returned when the API answers 404 for the requested resource.
var ErrNotFound = errors.New("github: not found")

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
}

// New wraps an already configured go-github client.
func New(client *github.Client) *Client {
	return &Client{client: client}
}

// NewClient creates a new GitHub API client authenticated with the configured
// personal access token. It tests the token before returning.
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	token := cfg.Token
	if token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	logging.Info("github configuration",
		"domain", cfg.Domain,
		"api_url", cfg.APIURL(),
		"token", logging.MaskSensitive(token))

	// Create the oauth2 client
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client, err := NewWithHTTPClient(tc, cfg)
	if err != nil {
		return nil, err
	}

	// Test the token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, _, err := client.client.Users.Get(ctx, "")
	if err != nil {
		logging.Error("failed to test github token", "error", err)
		return nil, fmt.Errorf("error testing github token: %w", err)
	}

	logging.Info("github authentication successful",
		"username", user.GetLogin())

	return client, nil
}

// NewWithHTTPClient builds a client on top of an authenticated HTTP client,
// pointing it at the enterprise API when the domain is not github.com.
func NewWithHTTPClient(httpClient *http.Client, cfg config.GitHubConfig) (*Client, error) {
	client := github.NewClient(httpClient)

	// If not using default GitHub.com, set custom API endpoint
	if cfg.Domain != "" && cfg.Domain != "github.com" {
		parsedURL, err := url.Parse(cfg.APIURL())
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}

		client.BaseURL = parsedURL

		// For GitHub Enterprise, set the upload URL to the same endpoint
		client.UploadURL = parsedURL
	}

	return &Client{client: client}, nil
}

// splitRepository parses "owner/repo".
func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// wrapError converts 404 responses to ErrNotFound and wraps everything else.
func wrapError(err error, format string, args ...any) error {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// GetLicense returns the SPDX identifier of the license GitHub detected in
// the repository. It returns ErrNotFound when no license file exists.
func (c *Client) GetLicense(ctx context.Context, repository string) (string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	license, _, err := c.client.Repositories.License(ctx, owner, repo)
	if err != nil {
		return "", wrapError(err, "failed to get license for %s", repository)
	}

	return license.GetLicense().GetSPDXID(), nil
}

// GetFileContent returns the decoded content of a file on the default branch.
func (c *Client) GetFileContent(ctx context.Context, repository, path string) (string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	file, _, _, err := c.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return "", wrapError(err, "failed to get %s in %s", path, repository)
	}
	if file == nil {
		return "", fmt.Errorf("%s in %s is a directory: %w", path, repository, ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s in %s: %w", path, repository, err)
	}
	return content, nil
}

// GetReadme returns the decoded content of the repository README.
func (c *Client) GetReadme(ctx context.Context, repository string) (string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return "", err
	}

	readme, _, err := c.client.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return "", wrapError(err, "failed to get readme for %s", repository)
	}

	content, err := readme.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode readme for %s: %w", repository, err)
	}
	return content, nil
}

// GetRepository retrieves repository metadata.
func (c *Client) GetRepository(ctx context.Context, repository string) (models.Repository, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return models.Repository{}, err
	}

	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		logging.Error("failed to get github repository", "repository", repository, "error", err)
		return models.Repository{}, wrapError(err, "failed to get repository %s", repository)
	}

	return models.Repository{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Homepage:      r.GetHomepage(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
		LicenseSPDXID: r.GetLicense().GetSPDXID(),
		Topics:        r.Topics,
	}, nil
}

// GetBranch returns the branch and the SHA of the commit at its tip.
func (c *Client) GetBranch(ctx context.Context, repository, branch string) (models.Branch, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return models.Branch{}, err
	}

	b, _, err := c.client.Repositories.GetBranch(ctx, owner, repo, branch, 1)
	if err != nil {
		logging.Error("failed to get branch", "repository", repository, "branch", branch, "error", err)
		return models.Branch{}, wrapError(err, "failed to get branch %s in %s", branch, repository)
	}

	return models.Branch{Name: b.GetName(), SHA: b.GetCommit().GetSHA()}, nil
}

// CreateBranch creates refs/heads/<branch> pointing at sha.
func (c *Client) CreateBranch(ctx context.Context, repository, branch, sha string) error {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return err
	}

	logging.Debug("creating branch", "repository", repository, "branch", branch, "sha", sha)

	ref := &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	}
	if _, _, err := c.client.Git.CreateRef(ctx, owner, repo, ref); err != nil {
		logging.Error("failed to create branch", "repository", repository, "branch", branch, "error", err)
		return wrapError(err, "failed to create branch %s in %s", branch, repository)
	}
	return nil
}

// CreateFile commits a new file to branch. The content is sent base64 encoded
// by the underlying client.
func (c *Client) CreateFile(ctx context.Context, repository, branch, path, message string, content []byte) error {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return err
	}

	logging.Debug("creating file", "repository", repository, "branch", branch, "path", path, "bytes", len(content))

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	}
	if _, _, err := c.client.Repositories.CreateFile(ctx, owner, repo, path, opts); err != nil {
		logging.Error("failed to create file", "repository", repository, "path", path, "error", err)
		return wrapError(err, "failed to create %s on %s in %s", path, branch, repository)
	}
	return nil
}

// ListIssues retrieves issues in the given state ("open", "closed" or "all")
// opened by creator. Pull requests are filtered out. An empty creator lists
// issues from every author.
func (c *Client) ListIssues(ctx context.Context, repository, state, creator string) ([]models.GitHubIssue, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListByRepoOptions{
		State:   state,
		Creator: creator,
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var allIssues []*github.Issue
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to fetch github issues", "repository", repository, "state", state, "error", err)
			return nil, wrapError(err, "failed to fetch GitHub issues for %s", repository)
		}

		allIssues = append(allIssues, issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	var result []models.GitHubIssue
	for _, issue := range allIssues {
		// Skip pull requests (they're also returned by the Issues API)
		if issue.PullRequestLinks != nil {
			continue
		}
		result = append(result, toIssue(issue))
	}

	return result, nil
}

func toIssue(issue *github.Issue) models.GitHubIssue {
	out := models.GitHubIssue{
		Number:      issue.GetNumber(),
		Title:       issue.GetTitle(),
		Description: issue.GetBody(),
		State:       issue.GetState(),
		Creator:     issue.GetUser().GetLogin(),
		CreatedAt:   issue.GetCreatedAt().Time,
	}
	if issue.ClosedAt != nil {
		closed := issue.ClosedAt.Time
		out.ClosedAt = &closed
	}
	return out
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, repository, title, body string) (models.GitHubIssue, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return models.GitHubIssue{}, err
	}

	issue, _, err := c.client.Issues.Create(ctx, owner, repo, &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		logging.Error("failed to create github issue", "repository", repository, "title", title, "error", err)
		return models.GitHubIssue{}, wrapError(err, "failed to create issue in %s", repository)
	}

	logging.Debug("created github issue", "repository", repository, "issue_number", issue.GetNumber())
	return toIssue(issue), nil
}

// CloseIssue sets the issue state to closed.
func (c *Client) CloseIssue(ctx context.Context, repository string, number int) error {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return err
	}

	_, _, err = c.client.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{
		State: github.Ptr("closed"),
	})
	if err != nil {
		logging.Error("failed to close github issue", "repository", repository, "issue_number", number, "error", err)
		return wrapError(err, "failed to close issue %s#%d", repository, number)
	}
	return nil
}

// ListComments retrieves every comment on an issue in creation order.
func (c *Client) ListComments(ctx context.Context, repository string, number int) ([]models.Comment, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var result []models.Comment
	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			logging.Error("failed to list issue comments", "repository", repository, "issue_number", number, "error", err)
			return nil, wrapError(err, "failed to list comments on %s#%d", repository, number)
		}

		for _, comment := range comments {
			result = append(result, models.Comment{
				ID:                comment.GetID(),
				Author:            comment.GetUser().GetLogin(),
				AuthorAssociation: comment.GetAuthorAssociation(),
				Body:              comment.GetBody(),
				CreatedAt:         comment.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// CreateComment posts a comment on an issue or pull request.
func (c *Client) CreateComment(ctx context.Context, repository string, number int, body string) error {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return err
	}

	_, _, err = c.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.Ptr(body),
	})
	if err != nil {
		logging.Error("failed to comment on issue", "repository", repository, "issue_number", number, "error", err)
		return wrapError(err, "failed to comment on %s#%d", repository, number)
	}
	return nil
}

// ListPullRequests retrieves pull requests in the given state.
func (c *Client) ListPullRequests(ctx context.Context, repository, state string) ([]models.PullRequest, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.PullRequestListOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var result []models.PullRequest
	for {
		pulls, resp, err := c.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to list pull requests", "repository", repository, "error", err)
			return nil, wrapError(err, "failed to list pull requests for %s", repository)
		}

		for _, pr := range pulls {
			result = append(result, toPullRequest(pr))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

func toPullRequest(pr *github.PullRequest) models.PullRequest {
	return models.PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		State:   pr.GetState(),
		Head:    pr.GetHead().GetRef(),
		Base:    pr.GetBase().GetRef(),
		HTMLURL: pr.GetHTMLURL(),
	}
}

// CreatePullRequest opens a pull request that maintainers are allowed to edit.
func (c *Client) CreatePullRequest(ctx context.Context, repository string, pull models.NewPullRequest) (models.PullRequest, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return models.PullRequest{}, err
	}

	pr, _, err := c.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title:               github.Ptr(pull.Title),
		Head:                github.Ptr(pull.Head),
		Base:                github.Ptr(pull.Base),
		Body:                github.Ptr(pull.Body),
		MaintainerCanModify: github.Ptr(true),
	})
	if err != nil {
		logging.Error("failed to create pull request", "repository", repository, "head", pull.Head, "error", err)
		return models.PullRequest{}, wrapError(err, "failed to create pull request in %s", repository)
	}

	return toPullRequest(pr), nil
}

// ListContributors retrieves the repository contributors.
func (c *Client) ListContributors(ctx context.Context, repository string) ([]models.Contributor, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var result []models.Contributor
	for {
		contributors, resp, err := c.client.Repositories.ListContributors(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to list contributors", "repository", repository, "error", err)
			return nil, wrapError(err, "failed to list contributors for %s", repository)
		}

		for _, contributor := range contributors {
			result = append(result, models.Contributor{
				Login:         contributor.GetLogin(),
				Type:          contributor.GetType(),
				Contributions: contributor.GetContributions(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// ListLanguages returns the repository languages, largest first.
func (c *Client) ListLanguages(ctx context.Context, repository string) ([]string, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	languages, _, err := c.client.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		logging.Error("failed to list languages", "repository", repository, "error", err)
		return nil, wrapError(err, "failed to list languages for %s", repository)
	}

	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if languages[names[i]] != languages[names[j]] {
			return languages[names[i]] > languages[names[j]]
		}
		return names[i] < names[j]
	})
	return names, nil
}

// ListReleases retrieves the repository releases, newest first.
func (c *Client) ListReleases(ctx context.Context, repository string) ([]models.Release, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: 100}

	var result []models.Release
	for {
		releases, resp, err := c.client.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to list releases", "repository", repository, "error", err)
			return nil, wrapError(err, "failed to list releases for %s", repository)
		}

		for _, release := range releases {
			r := models.Release{
				TagName:    release.GetTagName(),
				Name:       release.GetName(),
				Draft:      release.GetDraft(),
				Prerelease: release.GetPrerelease(),
			}
			if release.PublishedAt != nil {
				published := release.PublishedAt.Time
				r.PublishedAt = &published
			}
			result = append(result, r)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return result, nil
}

// GetUser retrieves a public user profile by login.
func (c *Client) GetUser(ctx context.Context, login string) (models.User, error) {
	user, _, err := c.client.Users.Get(ctx, login)
	if err != nil {
		logging.Error("failed to get user", "login", login, "error", err)
		return models.User{}, wrapError(err, "failed to get user %s", login)
	}

	return models.User{
		Login:   user.GetLogin(),
		Name:    user.GetName(),
		Company: user.GetCompany(),
		Email:   user.GetEmail(),
		Type:    user.GetType(),
	}, nil
}
