package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/codefair/internal/config"
	"github.com/danielolaszy/codefair/pkg/models"
)

// setup returns a client pointed at a test server driven by mux.
func setup(t *testing.T) (*Client, *http.ServeMux) {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL
	client.UploadURL = baseURL

	return New(client), mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewWithHTTPClientEnterpriseURL(t *testing.T) {
	testCases := []struct {
		name           string
		domain         string
		expectedAPIURL string
	}{
		{
			name:           "Default GitHub.com",
			domain:         "github.com",
			expectedAPIURL: "https://api.github.com/",
		},
		{
			name:           "GitHub Enterprise",
			domain:         "github.example.com",
			expectedAPIURL: "https://github.example.com/api/v3/",
		},
		{
			name:           "Empty Domain (should default to github.com)",
			domain:         "",
			expectedAPIURL: "https://api.github.com/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewWithHTTPClient(http.DefaultClient, config.GitHubConfig{Domain: tc.domain})
			require.NoError(t, err)
			assert.Equal(t, tc.expectedAPIURL, client.client.BaseURL.String())
		})
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(config.GitHubConfig{})
	assert.Error(t, err)
}

func TestInvalidRepositoryFormat(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	_, err := client.GetLicense(ctx, "invalid-repo-format")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid repository format")

	_, err = client.ListIssues(ctx, "too/many/parts", "open", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid repository format")

	err = client.CloseIssue(ctx, "/repo", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid repository format")
}

func TestGetLicense(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/license", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(t, w, map[string]any{
			"name":    "LICENSE",
			"license": map[string]any{"key": "mit", "spdx_id": "MIT"},
		})
	})

	spdx, err := client.GetLicense(context.Background(), "octo/hello")
	require.NoError(t, err)
	assert.Equal(t, "MIT", spdx)
}

func TestGetLicenseNotFound(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/license", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	})

	_, err := client.GetLicense(context.Background(), "octo/hello")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/contents/CITATION.cff", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"message":"boom"}`)
	})

	_, err := client.GetFileContent(context.Background(), "octo/hello", "CITATION.cff")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetFileContent(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/contents/CITATION.cff", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"path":     "CITATION.cff",
			"content":  base64.StdEncoding.EncodeToString([]byte("cff-version: 1.2.0\n")),
		})
	})

	content, err := client.GetFileContent(context.Background(), "octo/hello", "CITATION.cff")
	require.NoError(t, err)
	assert.Equal(t, "cff-version: 1.2.0\n", content)
}

func TestListIssuesSkipsPullRequestsAndFilters(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("state"))
		assert.Equal(t, "codefair-app[bot]", r.URL.Query().Get("creator"))
		writeJSON(t, w, []map[string]any{
			{"number": 1, "title": "No license file found", "state": "open", "user": map[string]any{"login": "codefair-app[bot]"}},
			{"number": 2, "title": "feat: ✨ LICENSE file added", "state": "open", "pull_request": map[string]any{"url": "x"}},
			{"number": 3, "title": "No citation file found", "state": "closed", "closed_at": "2024-01-02T03:04:05Z"},
		})
	})

	issues, err := client.ListIssues(context.Background(), "octo/hello", "all", "codefair-app[bot]")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Number)
	assert.Equal(t, "codefair-app[bot]", issues[0].Creator)
	assert.True(t, issues[0].IsOpen())
	assert.Equal(t, 3, issues[1].Number)
	require.NotNil(t, issues[1].ClosedAt)
	assert.Equal(t, 2024, issues[1].ClosedAt.Year())
}

func TestCreateAndCloseIssue(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "No license file found", req["title"])
		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, map[string]any{"number": 9, "title": req["title"], "state": "open"})
	})
	mux.HandleFunc("/repos/octo/hello/issues/9", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "closed", req["state"])
		writeJSON(t, w, map[string]any{"number": 9, "state": "closed"})
	})

	issue, err := client.CreateIssue(context.Background(), "octo/hello", "No license file found", "body")
	require.NoError(t, err)
	assert.Equal(t, 9, issue.Number)

	require.NoError(t, client.CloseIssue(context.Background(), "octo/hello", 9))
}

func TestListComments(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/issues/4/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"id": 11, "body": "@codefair-app MIT", "author_association": "OWNER", "user": map[string]any{"login": "octocat"}},
		})
	})

	comments, err := client.ListComments(context.Background(), "octo/hello", 4)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, models.Comment{
		ID:                11,
		Author:            "octocat",
		AuthorAssociation: "OWNER",
		Body:              "@codefair-app MIT",
		CreatedAt:         comments[0].CreatedAt,
	}, comments[0])
}

func TestBranchFileAndPullRequest(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/branches/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"name": "main", "commit": map[string]any{"sha": "abc123"}})
	})
	mux.HandleFunc("/repos/octo/hello/git/refs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refs/heads/license-42", req["ref"])
		assert.Equal(t, "abc123", req["sha"])
		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, map[string]any{"ref": "refs/heads/license-42"})
	})
	mux.HandleFunc("/repos/octo/hello/contents/LICENSE", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "license-42", req["branch"])
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("MIT License")), req["content"])
		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, map[string]any{})
	})
	mux.HandleFunc("/repos/octo/hello/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["maintainer_can_modify"])
		assert.Equal(t, "Resolves #7", req["body"])
		w.WriteHeader(http.StatusCreated)
		writeJSON(t, w, map[string]any{
			"number":   8,
			"state":    "open",
			"html_url": "https://github.com/octo/hello/pull/8",
			"head":     map[string]any{"ref": "license-42"},
			"base":     map[string]any{"ref": "main"},
		})
	})

	ctx := context.Background()
	branch, err := client.GetBranch(ctx, "octo/hello", "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", branch.SHA)

	require.NoError(t, client.CreateBranch(ctx, "octo/hello", "license-42", branch.SHA))
	require.NoError(t, client.CreateFile(ctx, "octo/hello", "license-42", "LICENSE", "feat: ✨ add LICENSE file with MIT license terms", []byte("MIT License")))

	pr, err := client.CreatePullRequest(ctx, "octo/hello", models.NewPullRequest{
		Title: "feat: ✨ LICENSE file added",
		Head:  "license-42",
		Base:  "main",
		Body:  "Resolves #7",
	})
	require.NoError(t, err)
	assert.Equal(t, "license-42", pr.Head)
	assert.Equal(t, "https://github.com/octo/hello/pull/8", pr.HTMLURL)
}

func TestListLanguagesOrderedBySize(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/repos/octo/hello/languages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]int{"Shell": 10, "Go": 5000, "Makefile": 10})
	})

	languages, err := client.ListLanguages(context.Background(), "octo/hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Makefile", "Shell"}, languages)
}

func TestGetUser(t *testing.T) {
	client, mux := setup(t)
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"login": "octocat", "name": "Mona Lisa Octocat", "type": "User"})
	})

	user, err := client.GetUser(context.Background(), "octocat")
	require.NoError(t, err)
	assert.Equal(t, "Mona Lisa Octocat", user.Name)
	assert.False(t, user.IsBot())
}
