package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielolaszy/codefair/internal/citation"
	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/internal/publisher"
	"github.com/danielolaszy/codefair/pkg/models"
)

// CommentClient is the part of the GitHub client the dispatcher needs.
type CommentClient interface {
	ListComments(ctx context.Context, repository string, number int) ([]models.Comment, error)
	CreateComment(ctx context.Context, repository string, number int, body string) error
}

// Publisher creates generated-file pull requests.
type Publisher interface {
	ExistingPullRequest(ctx context.Context, repository, title string) (models.PullRequest, bool, error)
	PublishLicense(ctx context.Context, repository string, issue int, spdxID string) (publisher.Result, error)
	PublishCitation(ctx context.Context, repository string, issue int, text string) (publisher.Result, error)
}

// Synthesizer builds a citation for a repository.
type Synthesizer interface {
	Synthesize(ctx context.Context, repository string) (citation.Record, error)
}

// Dispatcher executes parsed commands.
type Dispatcher struct {
	interpreter *Interpreter
	comments    CommentClient
	publisher   Publisher
	synthesizer Synthesizer
	botLogin    string
}

// NewDispatcher creates a dispatcher. botLogin identifies the comments that
// carry pending citations.
func NewDispatcher(interpreter *Interpreter, comments CommentClient, pub Publisher, synth Synthesizer, botLogin string) *Dispatcher {
	return &Dispatcher{
		interpreter: interpreter,
		comments:    comments,
		publisher:   pub,
		synthesizer: synth,
		botLogin:    botLogin,
	}
}

// Execute runs every directive of cmd against issue in order. The first
// failure stops the remaining directives.
func (d *Dispatcher) Execute(ctx context.Context, repository string, issue int, cmd Command) error {
	ctx = logging.WithFields(ctx, "repository", repository, "issue_number", issue, "kind", cmd.Kind.ID)

	for _, directive := range cmd.Directives {
		logging.InfoContext(ctx, "executing directive", "directive", directive)

		var err error
		switch directive {
		case DirectiveLicense:
			err = d.license(ctx, repository, issue, cmd.Argument)
		case DirectiveGenerate:
			err = d.generate(ctx, repository, issue)
		case DirectiveUpdate:
			err = d.update(ctx, repository, issue, cmd.Body)
		case DirectiveContinue:
			err = d.continueCitation(ctx, repository, issue)
		default:
			err = fmt.Errorf("unknown directive %q", directive)
		}
		if err != nil {
			return fmt.Errorf("%s directive on %s#%d: %w", directive, repository, issue, err)
		}
	}
	return nil
}

func (d *Dispatcher) license(ctx context.Context, repository string, issue int, spdxID string) error {
	if spdxID == "" {
		body := fmt.Sprintf("Please reply with the identifier of the license you would like from the SPDX License List (e.g., comment “%s MIT” for the MIT license).", d.interpreter.Mention())
		return d.comments.CreateComment(ctx, repository, issue, body)
	}

	result, err := d.publisher.PublishLicense(ctx, repository, issue, spdxID)
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "license request handled", "outcome", result.Outcome)
	return nil
}

func (d *Dispatcher) generate(ctx context.Context, repository string, issue int) error {
	if pr, ok, err := d.publisher.ExistingPullRequest(ctx, repository, publisher.CitationTitle); err != nil {
		return err
	} else if ok {
		return d.comments.CreateComment(ctx, repository, issue, publisher.CitationPointer(pr))
	}

	record, err := d.synthesizer.Synthesize(ctx, repository)
	if err != nil {
		return err
	}

	text, err := record.Render()
	if err != nil {
		return err
	}
	return d.comments.CreateComment(ctx, repository, issue, citation.PendingComment(text, d.interpreter.Mention()))
}

func (d *Dispatcher) update(ctx context.Context, repository string, issue int, body string) error {
	fragment, ok := citation.ExtractFragment(body, d.interpreter.UpdateDirective())
	if !ok {
		return d.comments.CreateComment(ctx, repository, issue,
			fmt.Sprintf("I could not find any citation changes in your comment. Please include the updated YAML in a ```yaml code block and reply with \"%s\".", d.interpreter.UpdateDirective()))
	}

	edit, err := citation.ParseFragments(fragment)
	if err != nil {
		var conflict *citation.ConflictError
		if errors.As(err, &conflict) {
			return d.reportConflict(ctx, repository, issue, conflict)
		}
		logging.WarnContext(ctx, "invalid citation update", "error", err)
		return d.comments.CreateComment(ctx, repository, issue,
			"I could not read the citation changes in your comment as YAML. Please check the formatting and try again.")
	}

	pending, err := d.pending(ctx, repository, issue)
	if errors.Is(err, citation.ErrNoPendingCitation) {
		return d.askForGeneration(ctx, repository, issue)
	}
	if err != nil {
		return err
	}

	base, err := citation.ParseMap(pending)
	if err != nil {
		return err
	}

	merged, err := edit.Apply(base)
	if err != nil {
		var conflict *citation.ConflictError
		if errors.As(err, &conflict) {
			return d.reportConflict(ctx, repository, issue, conflict)
		}
		return err
	}

	text, err := citation.RenderMap(merged)
	if err != nil {
		return err
	}
	return d.comments.CreateComment(ctx, repository, issue, citation.PendingComment(text, d.interpreter.Mention()))
}

func (d *Dispatcher) continueCitation(ctx context.Context, repository string, issue int) error {
	pending, err := d.pending(ctx, repository, issue)
	if errors.Is(err, citation.ErrNoPendingCitation) {
		return d.askForGeneration(ctx, repository, issue)
	}
	if err != nil {
		return err
	}

	result, err := d.publisher.PublishCitation(ctx, repository, issue, pending)
	if err != nil {
		return err
	}
	logging.InfoContext(ctx, "citation request handled", "outcome", result.Outcome)
	return nil
}

func (d *Dispatcher) pending(ctx context.Context, repository string, issue int) (string, error) {
	comments, err := d.comments.ListComments(ctx, repository, issue)
	if err != nil {
		return "", err
	}
	return citation.LatestPending(comments, d.botLogin)
}

func (d *Dispatcher) askForGeneration(ctx context.Context, repository string, issue int) error {
	logging.InfoContext(ctx, "no pending citation on issue")
	return d.comments.CreateComment(ctx, repository, issue,
		fmt.Sprintf("I could not find a citation to work from on this issue. Please reply with \"%s YES\" first so I can gather the repository information.", d.interpreter.Mention()))
}

func (d *Dispatcher) reportConflict(ctx context.Context, repository string, issue int, conflict *citation.ConflictError) error {
	logging.WarnContext(ctx, "citation update conflict", "key", conflict.Key)
	return d.comments.CreateComment(ctx, repository, issue,
		fmt.Sprintf("I could not apply your changes because “%s” is a list in one version and a single value in the other. Please use the same form for that key and reply with \"%s\" again.", conflict.Key, d.interpreter.UpdateDirective()))
}
