package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/codefair/internal/bot"
	"github.com/danielolaszy/codefair/internal/compliance"
	"github.com/danielolaszy/codefair/internal/config"
	"github.com/danielolaszy/codefair/internal/github"
	"github.com/danielolaszy/codefair/internal/logging"
	"github.com/danielolaszy/codefair/internal/spdx"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a repository for a LICENSE and a CITATION.cff file",
	Long: `Check a single repository with the token in GITHUB_TOKEN.

Without --apply the command only reports which files are present. With
--apply it also opens and closes compliance issues the way the app does,
attributed to the account that owns the token.

Example:
  codefair check -r owner/repo
  codefair check -r owner/repo --apply`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repository, err := cmd.Flags().GetString("repository")
		if err != nil {
			return err
		}
		if repository == "" {
			return fmt.Errorf("repository flag is required")
		}

		apply, err := cmd.Flags().GetBool("apply")
		if err != nil {
			return err
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if err := config.ValidateTokenConfig(cfg); err != nil {
			return err
		}
		setupLogging(cfg, false)

		client, err := github.NewClient(cfg.GitHub)
		if err != nil {
			return fmt.Errorf("failed to initialize github client: %w", err)
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if !apply {
			presence := compliance.NewInspector(client).Inspect(ctx, repository)
			printPresence(out, repository, presence)
			return nil
		}

		user, err := client.GetUser(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to identify token owner: %w", err)
		}

		catalog, err := spdx.Load(cfg.SPDX.CatalogPath)
		if err != nil {
			return err
		}

		logging.Info("reconciling repository",
			"repository", repository,
			"issue_author", user.Login)

		b := bot.New(nil, bot.Options{
			BotLogin: user.Login,
			Mention:  cfg.Bot.Mention,
			Licenses: catalog,
		})
		results, err := b.Reconcile(ctx, client, repository, nil)
		printResults(out, repository, results)
		return err
	},
}

func init() {
	checkCmd.Flags().StringP("repository", "r", "", "GitHub repository name (e.g., 'owner/repo')")
	checkCmd.Flags().Bool("apply", false, "Open and close compliance issues")
}

func printPresence(w io.Writer, repository string, presence compliance.Presence) {
	fmt.Fprintf(w, "%s\n", repository)
	for _, kind := range compliance.Kinds() {
		state := "missing"
		if presence.Has(kind) {
			state = "present"
		}
		fmt.Fprintf(w, "  %-14s %s\n", kind.Path, state)
	}
}

func printResults(w io.Writer, repository string, results []compliance.Result) {
	fmt.Fprintf(w, "%s\n", repository)
	for _, r := range results {
		fmt.Fprintf(w, "  %-14s %-10s %v\n", r.Kind.Path, r.Outcome, r.Issues)
	}
}
