// Package webhook receives GitHub App webhook deliveries.
package webhook

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	gh "github.com/google/go-github/v68/github"

	"github.com/danielolaszy/codefair/internal/bot"
	"github.com/danielolaszy/codefair/internal/logging"
)

// EventHandler processes the events the app subscribes to.
type EventHandler interface {
	HandleInstallation(ctx context.Context, installationID int64, repositories []string) error
	HandlePush(ctx context.Context, installationID int64, push bot.Push) error
	HandleIssueComment(ctx context.Context, installationID int64, comment bot.IssueComment) error
}

// GitHubWebhookHandler verifies deliveries and routes them to an
// EventHandler.
type GitHubWebhookHandler struct {
	secret []byte
	events EventHandler
}

// NewGitHubWebhookHandler creates a handler that checks signatures with
// secret.
func NewGitHubWebhookHandler(secret string, events EventHandler) *GitHubWebhookHandler {
	return &GitHubWebhookHandler{
		secret: []byte(secret),
		events: events,
	}
}

// HandleEvent is the gin handler for the webhook route.
func (h *GitHubWebhookHandler) HandleEvent(c *gin.Context) {
	eventType := gh.WebHookType(c.Request)
	ctx := logging.WithFields(c.Request.Context(),
		"delivery_id", gh.DeliveryID(c.Request),
		"event", eventType)

	payload, err := gh.ValidatePayload(c.Request, h.secret)
	if err != nil {
		logging.WarnContext(ctx, "rejected webhook delivery", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	switch eventType {
	case "installation", "installation_repositories", "push", "issue_comment":
	default:
		logging.DebugContext(ctx, "ignoring unsubscribed event")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	event, err := gh.ParseWebHook(eventType, payload)
	if err != nil {
		logging.WarnContext(ctx, "invalid webhook payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	handled, err := h.dispatch(ctx, event)
	if err != nil {
		logging.ErrorContext(ctx, "failed to process github event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}
	if !handled {
		logging.DebugContext(ctx, "ignoring event action")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	logging.InfoContext(ctx, "github webhook processed")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// dispatch reports false for actions the app does not act on.
func (h *GitHubWebhookHandler) dispatch(ctx context.Context, event any) (bool, error) {
	switch e := event.(type) {
	case *gh.InstallationEvent:
		if e.GetAction() != "created" {
			return false, nil
		}
		return true, h.events.HandleInstallation(ctx, e.GetInstallation().GetID(), fullNames(e.Repositories))

	case *gh.InstallationRepositoriesEvent:
		if e.GetAction() != "added" {
			return false, nil
		}
		return true, h.events.HandleInstallation(ctx, e.GetInstallation().GetID(), fullNames(e.RepositoriesAdded))

	case *gh.PushEvent:
		push := bot.Push{
			Repository:    e.GetRepo().GetFullName(),
			Ref:           e.GetRef(),
			DefaultBranch: e.GetRepo().GetDefaultBranch(),
		}
		for _, commit := range e.Commits {
			push.Added = append(push.Added, commit.Added)
		}
		return true, h.events.HandlePush(ctx, e.GetInstallation().GetID(), push)

	case *gh.IssueCommentEvent:
		issue := e.GetIssue()
		if e.GetAction() != "created" || issue == nil {
			return false, nil
		}
		return true, h.events.HandleIssueComment(ctx, e.GetInstallation().GetID(), bot.IssueComment{
			Repository:        e.GetRepo().GetFullName(),
			IssueNumber:       issue.GetNumber(),
			IssueTitle:        issue.GetTitle(),
			IsPullRequest:     issue.IsPullRequest(),
			Author:            e.GetComment().GetUser().GetLogin(),
			AuthorAssociation: e.GetComment().GetAuthorAssociation(),
			Body:              e.GetComment().GetBody(),
		})
	}
	return false, nil
}

func fullNames(repos []*gh.Repository) []string {
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.GetFullName())
	}
	return names
}
