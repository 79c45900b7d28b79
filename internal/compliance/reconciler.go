package compliance

import (
	"context"
	"fmt"

	"github.com/danielolaszy/codefair/internal/dedup"
	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/pkg/models"
)

// IssueTracker is the part of the GitHub client the reconciler needs.
type IssueTracker interface {
	ListIssues(ctx context.Context, repository, state, creator string) ([]models.GitHubIssue, error)
	CreateIssue(ctx context.Context, repository, title, body string) (models.GitHubIssue, error)
	CloseIssue(ctx context.Context, repository string, number int) error
}

// Outcome is what reconciliation did for one kind.
type Outcome string

const (
	// OutcomeNone means nothing needed to change.
	OutcomeNone Outcome = "none"
	// OutcomeOpened means a new issue was created.
	OutcomeOpened Outcome = "opened"
	// OutcomeClosed means open issues were closed.
	OutcomeClosed Outcome = "closed"
	// OutcomeSuppressed means an issue was needed but an earlier one with the
	// same title exists, or another delivery holds the creation key.
	OutcomeSuppressed Outcome = "suppressed"
)

// Result reports the reconciliation of one kind.
type Result struct {
	Kind    Kind
	Outcome Outcome
	Issues  []int
}

// Reconciler opens and closes compliance issues.
type Reconciler struct {
	issues   IssueTracker
	guard    dedup.Guard
	botLogin string
	mention  string
}

// NewReconciler creates a reconciler. Issues are matched by botLogin and
// bodies mention the bot with mention. A nil guard disables the
// compare-and-create step.
func NewReconciler(issues IssueTracker, guard dedup.Guard, botLogin, mention string) *Reconciler {
	if guard == nil {
		guard = dedup.Nop{}
	}
	return &Reconciler{
		issues:   issues,
		guard:    guard,
		botLogin: botLogin,
		mention:  mention,
	}
}

// Reconcile brings the issues of every kind in line with presence.
func (r *Reconciler) Reconcile(ctx context.Context, repository string, presence Presence) ([]Result, error) {
	ctx = logging.WithFields(ctx, "repository", repository)

	var results []Result
	for _, kind := range Kinds() {
		result, err := r.reconcileKind(ctx, repository, kind, presence)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *Reconciler) reconcileKind(ctx context.Context, repository string, kind Kind, presence Presence) (Result, error) {
	ctx = logging.WithFields(ctx, "kind", kind.ID)

	if presence.Has(kind) {
		return r.closeAll(ctx, repository, kind)
	}

	if kind.Prerequisite != "" && !presence[kind.Prerequisite] {
		logging.DebugContext(ctx, "prerequisite missing, not tracking", "prerequisite", kind.Prerequisite)
		return Result{Kind: kind, Outcome: OutcomeNone}, nil
	}

	return r.ensureOpen(ctx, repository, kind)
}

// ensureOpen creates the issue for kind unless the bot opened one with the
// same title before, in any state.
func (r *Reconciler) ensureOpen(ctx context.Context, repository string, kind Kind) (Result, error) {
	all, err := r.issues.ListIssues(ctx, repository, "all", r.botLogin)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list issues for %s: %w", repository, err)
	}
	if existing := matching(all, kind.Title, false); len(existing) > 0 {
		logging.DebugContext(ctx, "issue already exists", "issues", existing)
		outcome := OutcomeSuppressed
		if len(matching(all, kind.Title, true)) > 0 {
			outcome = OutcomeNone
		}
		return Result{Kind: kind, Outcome: outcome, Issues: existing}, nil
	}

	key := dedup.Key(repository, kind.ID)
	acquired, err := r.guard.Acquire(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		logging.InfoContext(ctx, "another delivery is creating this issue")
		return Result{Kind: kind, Outcome: OutcomeSuppressed}, nil
	}

	open, err := r.issues.ListIssues(ctx, repository, "open", r.botLogin)
	if err != nil {
		r.release(ctx, key)
		return Result{}, fmt.Errorf("failed to list open issues for %s: %w", repository, err)
	}
	if existing := matching(open, kind.Title, true); len(existing) > 0 {
		return Result{Kind: kind, Outcome: OutcomeNone, Issues: existing}, nil
	}

	issue, err := r.issues.CreateIssue(ctx, repository, kind.Title, kind.Body(r.mention))
	if err != nil {
		r.release(ctx, key)
		return Result{}, fmt.Errorf("failed to open %s issue in %s: %w", kind.ID, repository, err)
	}

	logging.InfoContext(ctx, "opened compliance issue", "issue_number", issue.Number)
	return Result{Kind: kind, Outcome: OutcomeOpened, Issues: []int{issue.Number}}, nil
}

func (r *Reconciler) release(ctx context.Context, key string) {
	if err := r.guard.Release(ctx, key); err != nil {
		logging.WarnContext(ctx, "failed to release dedup key", "key", key, "error", err)
	}
}

// closeAll closes every open bot issue titled for kind.
func (r *Reconciler) closeAll(ctx context.Context, repository string, kind Kind) (Result, error) {
	open, err := r.issues.ListIssues(ctx, repository, "open", r.botLogin)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list open issues for %s: %w", repository, err)
	}

	numbers := matching(open, kind.Title, true)
	if len(numbers) == 0 {
		return Result{Kind: kind, Outcome: OutcomeNone}, nil
	}

	for _, number := range numbers {
		if err := r.issues.CloseIssue(ctx, repository, number); err != nil {
			return Result{}, fmt.Errorf("failed to close %s#%d: %w", repository, number, err)
		}
		logging.InfoContext(ctx, "closed compliance issue", "issue_number", number)
	}
	return Result{Kind: kind, Outcome: OutcomeClosed, Issues: numbers}, nil
}

func matching(issues []models.GitHubIssue, title string, openOnly bool) []int {
	var numbers []int
	for _, issue := range issues {
		if issue.Title != title {
			continue
		}
		if openOnly && !issue.IsOpen() {
			continue
		}
		numbers = append(numbers, issue.Number)
	}
	return numbers
}
