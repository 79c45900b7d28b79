// Package bot reacts to repository events: it keeps compliance issues in
// line with the files a repository has and carries out maintainer commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/codefair/internal/citation"
	"github.com/danielolaszy/codefair/internal/command"
	"github.com/danielolaszy/codefair/internal/compliance"
	"github.com/danielolaszy/codefair/internal/dedup"
	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/internal/publisher"
)

// Client is every GitHub operation the bot performs for a repository.
type Client interface {
	compliance.ContentReader
	compliance.IssueTracker
	publisher.Client
	citation.MetadataSource
	command.CommentClient
}

// ClientFactory returns a client acting for an installation.
type ClientFactory interface {
	Client(ctx context.Context, installationID int64) (Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, installationID int64) (Client, error)

// Client implements ClientFactory.
func (f ClientFactoryFunc) Client(ctx context.Context, installationID int64) (Client, error) {
	return f(ctx, installationID)
}

// Options configures a Bot.
type Options struct {
	// BotLogin is the account that opens compliance issues and posts
	// comments.
	BotLogin string
	// Mention is the token maintainers use to address the bot.
	Mention  string
	Licenses publisher.LicenseSource
	// Guard serialises issue and pull request creation. Nil disables it.
	Guard dedup.Guard
}

// Push is a push to a repository.
type Push struct {
	Repository    string
	Ref           string
	DefaultBranch string
	// Added lists the files added by each pushed commit.
	Added [][]string
}

// IssueComment is a new comment on an issue.
type IssueComment struct {
	Repository        string
	IssueNumber       int
	IssueTitle        string
	IsPullRequest     bool
	Author            string
	AuthorAssociation string
	Body              string
}

// Bot handles events for every installation.
type Bot struct {
	clients     ClientFactory
	licenses    publisher.LicenseSource
	guard       dedup.Guard
	botLogin    string
	interpreter *command.Interpreter
}

// New creates a bot.
func New(clients ClientFactory, opts Options) *Bot {
	guard := opts.Guard
	if guard == nil {
		guard = dedup.Nop{}
	}
	return &Bot{
		clients:     clients,
		licenses:    opts.Licenses,
		guard:       guard,
		botLogin:    opts.BotLogin,
		interpreter: command.NewInterpreter(opts.Mention),
	}
}

// HandleInstallation reconciles every repository the app was just given
// access to. A failing repository does not stop the others.
func (b *Bot) HandleInstallation(ctx context.Context, installationID int64, repositories []string) error {
	ctx = logging.WithFields(ctx, "installation_id", installationID)

	client, err := b.clients.Client(ctx, installationID)
	if err != nil {
		return err
	}

	logging.InfoContext(ctx, "reconciling installed repositories", "count", len(repositories))

	var errs []error
	for _, repository := range repositories {
		repoCtx := logging.WithFields(ctx, "repository", repository)
		if _, err := b.Reconcile(repoCtx, client, repository, nil); err != nil {
			logging.ErrorContext(repoCtx, "failed to reconcile repository", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandlePush reconciles a repository after a push to its default branch.
// Pushes to other refs are ignored.
func (b *Bot) HandlePush(ctx context.Context, installationID int64, push Push) error {
	ctx = logging.WithFields(ctx, "installation_id", installationID, "repository", push.Repository)

	if push.Ref != "refs/heads/"+push.DefaultBranch {
		logging.DebugContext(ctx, "ignoring push outside the default branch", "ref", push.Ref)
		return nil
	}

	client, err := b.clients.Client(ctx, installationID)
	if err != nil {
		return err
	}

	_, err = b.Reconcile(ctx, client, push.Repository, push.Added)
	return err
}

// HandleIssueComment executes a maintainer command posted on a compliance
// issue. Comments that are not commands are ignored.
func (b *Bot) HandleIssueComment(ctx context.Context, installationID int64, comment IssueComment) error {
	ctx = logging.WithFields(ctx,
		"installation_id", installationID,
		"repository", comment.Repository,
		"issue_number", comment.IssueNumber)

	if comment.IsPullRequest || strings.EqualFold(comment.Author, b.botLogin) {
		return nil
	}

	cmd, ok := b.interpreter.Parse(comment.IssueTitle, comment.AuthorAssociation, comment.Body)
	if !ok {
		logging.DebugContext(ctx, "comment is not a command",
			"author", comment.Author,
			"author_association", comment.AuthorAssociation)
		return nil
	}

	client, err := b.clients.Client(ctx, installationID)
	if err != nil {
		return err
	}

	dispatcher := command.NewDispatcher(
		b.interpreter,
		client,
		publisher.New(client, b.licenses, b.guard),
		citation.NewSynthesizer(client),
		b.botLogin,
	)
	return dispatcher.Execute(ctx, comment.Repository, comment.IssueNumber, cmd)
}

// Reconcile inspects repository and opens or closes its compliance issues.
// Files listed in added count as present even before the API reports them.
func (b *Bot) Reconcile(ctx context.Context, client Client, repository string, added [][]string) ([]compliance.Result, error) {
	ctx = logging.WithFields(ctx, "repository", repository)

	presence := compliance.NewInspector(client).Inspect(ctx, repository)
	presence = compliance.ApplyPush(presence, added)

	reconciler := compliance.NewReconciler(client, b.guard, b.botLogin, b.interpreter.Mention())
	results, err := reconciler.Reconcile(ctx, repository, presence)
	if err != nil {
		return results, fmt.Errorf("failed to reconcile %s: %w", repository, err)
	}

	for _, r := range results {
		if r.Outcome != compliance.OutcomeNone {
			logging.InfoContext(ctx, "compliance issue updated",
				"kind", r.Kind.ID,
				"outcome", r.Outcome,
				"issues", r.Issues)
		}
	}
	return results, nil
}
