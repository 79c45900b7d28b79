// Package githubtest provides an in-memory GitHub used by tests of the
// packages that drive the REST client.
package githubtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danielolaszy/codefair/internal/github"
	"github.com/danielolaszy/codefair/pkg/models"
)

// File is a file committed to a branch.
type File struct {
	Branch  string
	Path    string
	Message string
	Content []byte
}

// Repo is the state of one fake repository.
type Repo struct {
	Metadata     models.Repository
	BranchSHA    map[string]string
	License      string
	Files        map[string]string
	Readme       string
	Issues       []models.GitHubIssue
	Comments     map[int][]models.Comment
	PullRequests []models.PullRequest
	Commits      []File
	Contributors []models.Contributor
	Languages    []string
	Releases     []models.Release
}

// Fake implements every method of github.Client against in-memory state.
// Fail maps a method name to the error it should return.
type Fake struct {
	mu sync.Mutex

	Repos map[string]*Repo
	Users map[string]models.User
	Fail  map[string]error

	// Calls records method names in invocation order.
	Calls []string

	nextNumber int
	nextID     int64
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		Repos:      map[string]*Repo{},
		Users:      map[string]models.User{},
		Fail:       map[string]error{},
		nextNumber: 1,
		nextID:     1000,
	}
}

// AddRepo registers a repository with a default branch "main".
func (f *Fake) AddRepo(fullName string) *Repo {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := &Repo{
		Metadata: models.Repository{
			FullName:      fullName,
			Name:          nameOf(fullName),
			HTMLURL:       "https://github.com/" + fullName,
			DefaultBranch: "main",
		},
		BranchSHA: map[string]string{"main": "sha-main"},
		Files:     map[string]string{},
		Comments:  map[int][]models.Comment{},
	}
	f.Repos[fullName] = r
	return r
}

func nameOf(fullName string) string {
	for i := len(fullName) - 1; i >= 0; i-- {
		if fullName[i] == '/' {
			return fullName[i+1:]
		}
	}
	return fullName
}

// SeedIssue inserts an issue directly and returns its number.
func (f *Fake) SeedIssue(repository, title, state, creator string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.Repos[repository]
	number := f.nextNumber
	f.nextNumber++
	r.Issues = append(r.Issues, models.GitHubIssue{
		Number:  number,
		Title:   title,
		State:   state,
		Creator: creator,
	})
	return number
}

// SeedComment inserts a comment directly.
func (f *Fake) SeedComment(repository string, number int, author, association, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	r := f.Repos[repository]
	r.Comments[number] = append(r.Comments[number], models.Comment{
		ID:                f.nextID,
		Author:            author,
		AuthorAssociation: association,
		Body:              body,
		CreatedAt:         time.Unix(f.nextID, 0).UTC(),
	})
}

// OpenIssues returns the open issues with the given title.
func (f *Fake) OpenIssues(repository, title string) []models.GitHubIssue {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.GitHubIssue
	for _, issue := range f.Repos[repository].Issues {
		if issue.Title == title && issue.IsOpen() {
			out = append(out, issue)
		}
	}
	return out
}

// CommentsOn returns the bodies of comments on an issue.
func (f *Fake) CommentsOn(repository string, number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.Repos[repository].Comments[number] {
		out = append(out, c.Body)
	}
	return out
}

// CallCount returns how often method was invoked.
func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *Fake) enter(method, repository string) (*Repo, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, method)
	if err := f.Fail[method]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if repository == "" {
		return nil, nil
	}
	r, ok := f.Repos[repository]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("repository %s: %w", repository, github.ErrNotFound)
	}
	return r, nil
}

func (f *Fake) GetLicense(ctx context.Context, repository string) (string, error) {
	r, err := f.enter("GetLicense", repository)
	if err != nil {
		return "", err
	}
	defer f.mu.Unlock()
	if r.License == "" {
		return "", github.ErrNotFound
	}
	return r.License, nil
}

func (f *Fake) GetFileContent(ctx context.Context, repository, path string) (string, error) {
	r, err := f.enter("GetFileContent", repository)
	if err != nil {
		return "", err
	}
	defer f.mu.Unlock()
	content, ok := r.Files[path]
	if !ok {
		return "", github.ErrNotFound
	}
	return content, nil
}

func (f *Fake) GetReadme(ctx context.Context, repository string) (string, error) {
	r, err := f.enter("GetReadme", repository)
	if err != nil {
		return "", err
	}
	defer f.mu.Unlock()
	if r.Readme == "" {
		return "", github.ErrNotFound
	}
	return r.Readme, nil
}

func (f *Fake) GetRepository(ctx context.Context, repository string) (models.Repository, error) {
	r, err := f.enter("GetRepository", repository)
	if err != nil {
		return models.Repository{}, err
	}
	defer f.mu.Unlock()
	meta := r.Metadata
	meta.LicenseSPDXID = r.License
	return meta, nil
}

func (f *Fake) GetBranch(ctx context.Context, repository, branch string) (models.Branch, error) {
	r, err := f.enter("GetBranch", repository)
	if err != nil {
		return models.Branch{}, err
	}
	defer f.mu.Unlock()
	sha, ok := r.BranchSHA[branch]
	if !ok {
		return models.Branch{}, github.ErrNotFound
	}
	return models.Branch{Name: branch, SHA: sha}, nil
}

func (f *Fake) CreateBranch(ctx context.Context, repository, branch, sha string) error {
	r, err := f.enter("CreateBranch", repository)
	if err != nil {
		return err
	}
	defer f.mu.Unlock()
	if _, exists := r.BranchSHA[branch]; exists {
		return errors.New("reference already exists")
	}
	r.BranchSHA[branch] = sha
	return nil
}

func (f *Fake) CreateFile(ctx context.Context, repository, branch, path, message string, content []byte) error {
	r, err := f.enter("CreateFile", repository)
	if err != nil {
		return err
	}
	defer f.mu.Unlock()
	if _, exists := r.BranchSHA[branch]; !exists {
		return github.ErrNotFound
	}
	r.Commits = append(r.Commits, File{Branch: branch, Path: path, Message: message, Content: content})
	return nil
}

func (f *Fake) ListIssues(ctx context.Context, repository, state, creator string) ([]models.GitHubIssue, error) {
	r, err := f.enter("ListIssues", repository)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	var out []models.GitHubIssue
	for _, issue := range r.Issues {
		if creator != "" && issue.Creator != creator {
			continue
		}
		if state != "all" && issue.State != state {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

func (f *Fake) CreateIssue(ctx context.Context, repository, title, body string) (models.GitHubIssue, error) {
	r, err := f.enter("CreateIssue", repository)
	if err != nil {
		return models.GitHubIssue{}, err
	}
	defer f.mu.Unlock()
	issue := models.GitHubIssue{
		Number:      f.nextNumber,
		Title:       title,
		Description: body,
		State:       "open",
		Creator:     botLogin,
	}
	f.nextNumber++
	r.Issues = append(r.Issues, issue)
	return issue, nil
}

// botLogin is the creator recorded for issues opened through the fake.
const botLogin = "codefair-app[bot]"

// BotLogin is the identity the fake attributes to issues and comments it
// creates.
const BotLogin = botLogin

func (f *Fake) CloseIssue(ctx context.Context, repository string, number int) error {
	r, err := f.enter("CloseIssue", repository)
	if err != nil {
		return err
	}
	defer f.mu.Unlock()
	for i := range r.Issues {
		if r.Issues[i].Number == number {
			r.Issues[i].State = "closed"
			return nil
		}
	}
	return github.ErrNotFound
}

func (f *Fake) ListComments(ctx context.Context, repository string, number int) ([]models.Comment, error) {
	r, err := f.enter("ListComments", repository)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	out := append([]models.Comment(nil), r.Comments[number]...)
	return out, nil
}

func (f *Fake) CreateComment(ctx context.Context, repository string, number int, body string) error {
	r, err := f.enter("CreateComment", repository)
	if err != nil {
		return err
	}
	defer f.mu.Unlock()
	f.nextID++
	r.Comments[number] = append(r.Comments[number], models.Comment{
		ID:                f.nextID,
		Author:            botLogin,
		AuthorAssociation: "NONE",
		Body:              body,
		CreatedAt:         time.Unix(f.nextID, 0).UTC(),
	})
	return nil
}

func (f *Fake) ListPullRequests(ctx context.Context, repository, state string) ([]models.PullRequest, error) {
	r, err := f.enter("ListPullRequests", repository)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	var out []models.PullRequest
	for _, pr := range r.PullRequests {
		if state == "all" || pr.State == state {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (f *Fake) CreatePullRequest(ctx context.Context, repository string, pull models.NewPullRequest) (models.PullRequest, error) {
	r, err := f.enter("CreatePullRequest", repository)
	if err != nil {
		return models.PullRequest{}, err
	}
	defer f.mu.Unlock()
	number := f.nextNumber
	f.nextNumber++
	pr := models.PullRequest{
		Number:  number,
		Title:   pull.Title,
		State:   "open",
		Head:    pull.Head,
		Base:    pull.Base,
		HTMLURL: fmt.Sprintf("https://github.com/%s/pull/%d", repository, number),
	}
	r.PullRequests = append(r.PullRequests, pr)
	return pr, nil
}

func (f *Fake) ListContributors(ctx context.Context, repository string) ([]models.Contributor, error) {
	r, err := f.enter("ListContributors", repository)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	return append([]models.Contributor(nil), r.Contributors...), nil
}

func (f *Fake) ListLanguages(ctx context.Context, repository string) ([]string, error) {
	r, err := f.enter("ListLanguages", repository)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	return append([]string(nil), r.Languages...), nil
}

func (f *Fake) ListReleases(ctx context.Context, repository string) ([]models.Release, error) {
	r, err := f.enter("ListReleases", repository)
	if err != nil {
		return nil, err
	}
	defer f.mu.Unlock()
	out := append([]models.Release(nil), r.Releases...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PublishedAt == nil || out[j].PublishedAt == nil {
			return out[j].PublishedAt == nil && out[i].PublishedAt != nil
		}
		return out[i].PublishedAt.After(*out[j].PublishedAt)
	})
	return out, nil
}

func (f *Fake) GetUser(ctx context.Context, login string) (models.User, error) {
	if _, err := f.enter("GetUser", ""); err != nil {
		return models.User{}, err
	}
	defer f.mu.Unlock()
	user, ok := f.Users[login]
	if !ok {
		return models.User{}, github.ErrNotFound
	}
	return user, nil
}
