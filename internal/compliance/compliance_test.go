package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/codefair/internal/dedup"
	"github.com/danielolaszy/codefair/internal/github/githubtest"
)

const (
	repo    = "octo/hello"
	bot     = githubtest.BotLogin
	mention = "@codefair-app"
)

func newReconciler(fake *githubtest.Fake) *Reconciler {
	return NewReconciler(fake, dedup.NewMemoryGuard(time.Nanosecond), bot, mention)
}

func TestKindTable(t *testing.T) {
	k, ok := ByTitle("No license file found")
	require.True(t, ok)
	assert.Equal(t, "LICENSE", k.Path)

	k, ok = ByPath("CITATION.cff")
	require.True(t, ok)
	assert.Equal(t, "No citation file found", k.Title)
	assert.Equal(t, "YES", k.Affirmative)

	_, ok = ByTitle("No readme found")
	assert.False(t, ok)

	assert.Contains(t, License.Body("@codefair-test"), "“@codefair-test MIT”")
	assert.Contains(t, Citation.Body("@codefair-test"), `"@codefair-test YES"`)
	assert.NotContains(t, Citation.Body("@x"), "{{mention}}")
}

func TestInspector(t *testing.T) {
	fake := githubtest.New()
	r := fake.AddRepo(repo)
	inspector := NewInspector(fake)
	ctx := context.Background()

	assert.False(t, inspector.HasLicense(ctx, repo))
	assert.False(t, inspector.HasCitation(ctx, repo))

	r.License = "MIT"
	r.Files["CITATION.cff"] = "cff-version: 1.2.0\n"
	p := inspector.Inspect(ctx, repo)
	assert.True(t, p.Has(License))
	assert.True(t, p.Has(Citation))

	// Failures count as absence.
	fake.Fail["GetLicense"] = errors.New("502 bad gateway")
	assert.False(t, inspector.HasLicense(ctx, repo))
	assert.False(t, inspector.HasLicense(ctx, "octo/unknown"))
}

func TestApplyPush(t *testing.T) {
	p := Presence{License.ID: false, Citation.ID: false}

	out := ApplyPush(p, [][]string{{"README.md"}, {"src/main.go", "LICENSE"}})
	assert.True(t, out.Has(License))
	assert.False(t, out.Has(Citation))
	assert.False(t, p.Has(License), "input is not modified")

	out = ApplyPush(out, [][]string{{"docs/CITATION.cff"}})
	assert.False(t, out.Has(Citation), "only root-level paths count")

	out = ApplyPush(out, [][]string{{"CITATION.cff"}})
	assert.True(t, out.Has(Citation))
}

func TestReconcileEmptyRepositoryOpensOnlyLicenseIssue(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	rec := newReconciler(fake)

	results, err := rec.Reconcile(context.Background(), repo, Presence{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeOpened, results[0].Outcome)
	assert.Equal(t, OutcomeNone, results[1].Outcome)

	open := fake.OpenIssues(repo, License.Title)
	require.Len(t, open, 1)
	assert.Contains(t, open[0].Description, "FAIR-BioRS")
	assert.Empty(t, fake.OpenIssues(repo, Citation.Title))
}

func TestReconcileIsIdempotent(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	rec := newReconciler(fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := rec.Reconcile(ctx, repo, Presence{})
		require.NoError(t, err)
	}

	assert.Len(t, fake.OpenIssues(repo, License.Title), 1)
	assert.Equal(t, 1, fake.CallCount("CreateIssue"))
}

func TestReconcileLicenseAddedClosesAndOpensCitation(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	rec := newReconciler(fake)
	ctx := context.Background()

	_, err := rec.Reconcile(ctx, repo, Presence{})
	require.NoError(t, err)

	p := ApplyPush(Presence{}, [][]string{{"LICENSE"}})
	results, err := rec.Reconcile(ctx, repo, p)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClosed, results[0].Outcome)
	assert.Equal(t, OutcomeOpened, results[1].Outcome)

	assert.Empty(t, fake.OpenIssues(repo, License.Title))
	assert.Len(t, fake.OpenIssues(repo, Citation.Title), 1)
}

func TestReconcileClosesEveryOpenMatch(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	fake.SeedIssue(repo, Citation.Title, "open", bot)
	fake.SeedIssue(repo, Citation.Title, "open", bot)
	fake.SeedIssue(repo, Citation.Title, "open", "someone-else")
	fake.SeedIssue(repo, "No citation file found!", "open", bot)

	rec := newReconciler(fake)
	results, err := rec.Reconcile(context.Background(), repo, Presence{License.ID: true, Citation.ID: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeClosed, results[1].Outcome)
	assert.Len(t, results[1].Issues, 2)

	remaining := fake.OpenIssues(repo, Citation.Title)
	require.Len(t, remaining, 1)
	assert.Equal(t, "someone-else", remaining[0].Creator)
	assert.Len(t, fake.OpenIssues(repo, "No citation file found!"), 1)
}

func TestReconcileClosedIssueSuppressesRecreation(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	fake.SeedIssue(repo, License.Title, "closed", bot)

	rec := newReconciler(fake)
	results, err := rec.Reconcile(context.Background(), repo, Presence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, results[0].Outcome)
	assert.Equal(t, 0, fake.CallCount("CreateIssue"))
}

func TestReconcileGuardLostSkipsCreation(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	guard := dedup.NewMemoryGuard(time.Minute)
	ok, err := guard.Acquire(context.Background(), dedup.Key(repo, License.ID))
	require.NoError(t, err)
	require.True(t, ok)

	rec := NewReconciler(fake, guard, bot, mention)
	results, err := rec.Reconcile(context.Background(), repo, Presence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuppressed, results[0].Outcome)
	assert.Equal(t, 0, fake.CallCount("CreateIssue"))
}

func TestReconcileAbortsOnRemoteFault(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	fake.Fail["CreateIssue"] = errors.New("500 internal server error")

	rec := newReconciler(fake)
	_, err := rec.Reconcile(context.Background(), repo, Presence{})
	assert.Error(t, err)
	assert.Equal(t, 0, fake.CallCount("CloseIssue"))
}

func TestReconcileRetryAfterFault(t *testing.T) {
	fake := githubtest.New()
	fake.AddRepo(repo)
	fake.Fail["CreateIssue"] = errors.New("500 internal server error")

	rec := NewReconciler(fake, dedup.NewMemoryGuard(time.Hour), bot, mention)
	_, err := rec.Reconcile(context.Background(), repo, Presence{})
	require.Error(t, err)

	delete(fake.Fail, "CreateIssue")
	results, err := rec.Reconcile(context.Background(), repo, Presence{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOpened, results[0].Outcome)
	assert.Equal(t, 2, fake.CallCount("CreateIssue"))
}
