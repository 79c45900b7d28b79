package webhook_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/danielolaszy/codefair/internal/bot"
	"github.com/danielolaszy/codefair/internal/http/router"
	"github.com/danielolaszy/codefair/internal/http/webhook"
	"github.com/danielolaszy/codefair/internal/logging"
)

const (
	secret = "It's a Secret to Everybody"
	path   = "/api/github/webhooks"
)

type installationCall struct {
	id    int64
	repos []string
}

type fakeEvents struct {
	installations []installationCall
	pushes        []bot.Push
	comments      []bot.IssueComment
	err           error
	panics        bool
}

func (f *fakeEvents) HandleInstallation(ctx context.Context, id int64, repos []string) error {
	f.installations = append(f.installations, installationCall{id: id, repos: repos})
	return f.err
}

func (f *fakeEvents) HandlePush(ctx context.Context, id int64, push bot.Push) error {
	if f.panics {
		panic("boom")
	}
	f.pushes = append(f.pushes, push)
	return f.err
}

func (f *fakeEvents) HandleIssueComment(ctx context.Context, id int64, comment bot.IssueComment) error {
	f.comments = append(f.comments, comment)
	return f.err
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

var _ = Describe("GitHubWebhookHandler", func() {
	var (
		engine *gin.Engine
		events *fakeEvents
		logs   *bytes.Buffer
	)

	deliver := func(event, body, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-GitHub-Event", event)
		req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
		req.Header.Set("X-Hub-Signature-256", signature)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	send := func(event, body string) *httptest.ResponseRecorder {
		return deliver(event, body, sign([]byte(body)))
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		logs = &bytes.Buffer{}
		logging.Setup(logs, logging.LevelDebug, logging.FormatJSON)

		events = &fakeEvents{}
		engine = router.New(router.RouterConfig{WebhookPath: path}, webhook.NewGitHubWebhookHandler(secret, events))
	})

	It("serves the health check", func() {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"status":"ok"}`))
	})

	It("rejects a delivery with a bad signature", func() {
		body := `{"action":"created","installation":{"id":1}}`
		w := deliver("installation", body, sign([]byte("something else")))

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(events.installations).To(BeEmpty())
	})

	It("rejects an unsigned delivery", func() {
		w := deliver("installation", `{"action":"created"}`, "")

		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})

	It("reconciles repositories of a new installation", func() {
		w := send("installation", `{
			"action": "created",
			"installation": {"id": 77},
			"repositories": [{"full_name": "octo/hello"}, {"full_name": "octo/world"}]
		}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(events.installations).To(Equal([]installationCall{{id: 77, repos: []string{"octo/hello", "octo/world"}}}))
		Expect(logs.String()).To(ContainSubstring(`"delivery_id":"72d3162e-cc78-11e3-81ab-4c9367dc0958"`))
		Expect(logs.String()).To(ContainSubstring(`"event":"installation"`))
	})

	It("ignores other installation actions", func() {
		w := send("installation", `{"action":"deleted","installation":{"id":77}}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"status":"ignored"}`))
		Expect(events.installations).To(BeEmpty())
	})

	It("reconciles repositories added to an installation", func() {
		w := send("installation_repositories", `{
			"action": "added",
			"installation": {"id": 5},
			"repositories_added": [{"full_name": "octo/new"}],
			"repositories_removed": [{"full_name": "octo/old"}]
		}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(events.installations).To(Equal([]installationCall{{id: 5, repos: []string{"octo/new"}}}))
	})

	It("passes pushes with the files each commit added", func() {
		w := send("push", `{
			"ref": "refs/heads/main",
			"installation": {"id": 9},
			"repository": {"full_name": "octo/hello", "default_branch": "main"},
			"commits": [
				{"id": "a", "added": ["LICENSE"]},
				{"id": "b", "added": ["src/main.go", "CITATION.cff"]}
			]
		}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(events.pushes).To(Equal([]bot.Push{{
			Repository:    "octo/hello",
			Ref:           "refs/heads/main",
			DefaultBranch: "main",
			Added:         [][]string{{"LICENSE"}, {"src/main.go", "CITATION.cff"}},
		}}))
	})

	It("passes new issue comments", func() {
		w := send("issue_comment", `{
			"action": "created",
			"installation": {"id": 3},
			"repository": {"full_name": "octo/hello"},
			"issue": {"number": 12, "title": "No license file found"},
			"comment": {"body": "@codefair-app MIT", "author_association": "OWNER", "user": {"login": "octocat"}}
		}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(events.comments).To(Equal([]bot.IssueComment{{
			Repository:        "octo/hello",
			IssueNumber:       12,
			IssueTitle:        "No license file found",
			Author:            "octocat",
			AuthorAssociation: "OWNER",
			Body:              "@codefair-app MIT",
		}}))
	})

	It("flags comments on pull requests", func() {
		w := send("issue_comment", `{
			"action": "created",
			"installation": {"id": 3},
			"repository": {"full_name": "octo/hello"},
			"issue": {"number": 13, "title": "feat: ✨ LICENSE file added", "pull_request": {"url": "https://api.github.com/repos/octo/hello/pulls/13"}},
			"comment": {"body": "thanks", "author_association": "OWNER", "user": {"login": "octocat"}}
		}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(events.comments).To(HaveLen(1))
		Expect(events.comments[0].IsPullRequest).To(BeTrue())
	})

	It("ignores edited comments", func() {
		w := send("issue_comment", `{"action":"edited","issue":{"number":1},"comment":{"body":"x"}}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(events.comments).To(BeEmpty())
	})

	It("ignores events the app does not subscribe to", func() {
		w := send("star", `{"action":"created"}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchJSON(`{"status":"ignored"}`))
	})

	It("rejects malformed payloads", func() {
		w := send("push", `{"ref": 42`)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(events.pushes).To(BeEmpty())
	})

	It("answers 500 when processing fails", func() {
		events.err = errors.New("github unavailable")
		w := send("installation", `{"action":"created","installation":{"id":1},"repositories":[{"full_name":"octo/hello"}]}`)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(logs.String()).To(ContainSubstring("failed to process github event"))
	})

	It("recovers from a panicking handler", func() {
		events.panics = true
		w := send("push", `{"ref":"refs/heads/main","repository":{"full_name":"octo/hello","default_branch":"main"}}`)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(logs.String()).To(ContainSubstring("panic recovered"))
	})
})
