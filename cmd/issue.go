package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/tracker"
)

var (
	issueTitle      string
	issueText       string
	issueCreatedBy  string
	issueAssignedTo string
	issueStatusText string
	issueFilters    []string
	issueSets       []string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues",
	Long:  "Create, list, update and delete issues directly against the configured store.",
}

var issueAddCmd = &cobra.Command{
	Use:   "add <project>",
	Short: "Add a new issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(cmd, args[0])
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long: `List the issues of a project. Each --filter key=value must match exactly,
e.g. --filter open=false --filter assigned_to=joe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd, args[0])
	},
}

var issueUpdateCmd = &cobra.Command{
	Use:   "update <issue-id>",
	Short: "Update an issue",
	Long: `Update fields of an issue, e.g. --set open=false --set status_text="In QA".
Empty values are ignored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd, args[0])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(cmd, args[0])
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (required)")
	issueAddCmd.Flags().StringVar(&issueText, "text", "", "Issue text (required)")
	issueAddCmd.Flags().StringVar(&issueCreatedBy, "by", "", "Creator (required)")
	issueAddCmd.Flags().StringVar(&issueAssignedTo, "assigned", "", "Assignee")
	issueAddCmd.Flags().StringVar(&issueStatusText, "status", "", "Status text")

	issueListCmd.Flags().StringArrayVar(&issueFilters, "filter", nil, "Filter as key=value (repeatable)")

	issueUpdateCmd.Flags().StringArrayVar(&issueSets, "set", nil, "Field to change as key=value (repeatable)")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueUpdateCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	rootCmd.AddCommand(issueCmd)
}

// parseAssignments splits key=value arguments.
func parseAssignments(flag string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --%s %q: want key=value", flag, pair)
		}
		out[key] = value
	}
	return out, nil
}

func issueAddRun(cmd *cobra.Command, project string) error {
	in := tracker.CreateInput{
		Title:      issueTitle,
		Text:       issueText,
		CreatedBy:  issueCreatedBy,
		AssignedTo: issueAssignedTo,
		StatusText: issueStatusText,
	}

	if dryRun {
		ui.DryRunMsg("Would add issue %q to %s", in.Title, project)
		return nil
	}

	t, err := getTracker()
	if err != nil {
		return err
	}
	issue, err := t.Create(cmd.Context(), project, in)
	if err != nil {
		return err
	}

	ui.Success("Created issue %s in %s", issue.ID, project)
	return ui.IssueTable([]*models.Issue{issue})
}

func issueListRun(cmd *cobra.Command, project string) error {
	filters, err := parseAssignments("filter", issueFilters)
	if err != nil {
		return err
	}
	query := url.Values{}
	for k, v := range filters {
		query.Set(k, v)
	}

	t, err := getTracker()
	if err != nil {
		return err
	}
	issues, err := t.List(cmd.Context(), project, query)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		ui.Info("No issues found in %s", project)
		return nil
	}
	return ui.IssueTable(issues)
}

func issueUpdateRun(cmd *cobra.Command, id string) error {
	sets, err := parseAssignments("set", issueSets)
	if err != nil {
		return err
	}
	body := make(map[string]any, len(sets)+1)
	for k, v := range sets {
		body[k] = v
	}
	body[string(models.FieldID)] = id

	if dryRun {
		ui.DryRunMsg("Would update issue %s: %s", id, strings.Join(issueSets, ", "))
		return nil
	}

	t, err := getTracker()
	if err != nil {
		return err
	}
	if _, err := t.Update(cmd.Context(), body); err != nil {
		return fmt.Errorf("%w: %s", err, id)
	}

	ui.Success("Updated issue %s", id)
	return nil
}

func issueDeleteRun(cmd *cobra.Command, id string) error {
	if dryRun {
		ui.DryRunMsg("Would delete issue %s", id)
		return nil
	}

	t, err := getTracker()
	if err != nil {
		return err
	}
	if err := t.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("%w: %s", err, id)
	}

	ui.Success("Deleted issue %s", id)
	return nil
}
