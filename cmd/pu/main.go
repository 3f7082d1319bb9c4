package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planup/internal/app"
	"planup/internal/config"
	"planup/internal/db"
	"planup/internal/domain"
	"planup/internal/engine"
	"planup/internal/migrate"
	"planup/internal/repo"
	"planup/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pu",
	Short: "PlanUp CLI",
	Long: `PlanUp tracks issues, epics, and sprints with workflow-enforced status moves.
Core concepts:
- Workspace: the directory holding .planup/planup.db and an optional planup.yml.
- Project: owns issues, epics, sprints, and the board workflow; issue keys look like WEB-42.
- Workflow: the board's statuses and allowed transitions; the first status is where new issues land and the last one means done.
- Links: typed relations between issues (blocks, duplicates, relates-to, parent-of); each pair is stored once and read from either side.
- Epics and sprints: groupings whose story points, velocity, and progress are recomputed from their member issues.
- Time ledger: per-issue work entries by category; totals roll up onto the issue.
- Activity log: append-only record of every change, view with 'pu activity tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id or key (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(epicCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(timeCmd())
	rootCmd.AddCommand(attachCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- project ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectInitCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectRecomputeCmd())
	return prj
}

func projectInitCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project and its default workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Key == "" {
				return fmt.Errorf("--key required")
			}
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.InitProject(ctx, opts)
				if err != nil {
					return err
				}
				workspace := viper.GetString("workspace")
				cfgPath := config.Path(workspace)
				if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
					if err := os.WriteFile(cfgPath, []byte(config.GenerateDefault(p.ID, p.Key)), 0o644); err != nil {
						return fmt.Errorf("write %s: %w", cfgPath, err)
					}
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Key, "key", "", "project key, used as the issue key prefix")
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Lead, "lead", "", "project lead")
	cmd.Flags().StringVar(&opts.OrgID, "org", "", "organization id")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Key", "Name", "Progress", "Issues", "Lead"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.Key, p.Name, fmt.Sprintf("%d%%", p.Progress), p.IssueCount, p.Lead})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, description, lead, color string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update project metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				if cmd.Flags().Changed("name") {
					if name == "" {
						return fmt.Errorf("name cannot be empty")
					}
					p.Name = name
				}
				if cmd.Flags().Changed("description") {
					p.Description = description
				}
				if cmd.Flags().Changed("lead") {
					p.Lead = lead
				}
				if cmd.Flags().Changed("color") {
					p.Color = color
				}
				if err := e.Repo.UpdateProjectMeta(ctx, nil, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&lead, "lead", "", "project lead")
	cmd.Flags().StringVar(&color, "color", "", "display color")
	return cmd
}

func projectRecomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild epic, sprint, and project rollups from the issue set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				epics, err := e.Repo.ListEpics(ctx, p.ID)
				if err != nil {
					return err
				}
				for _, ep := range epics {
					e.RecomputeEpic(ctx, ep.ID)
				}
				sprints, err := e.Repo.ListSprints(ctx, p.ID)
				if err != nil {
					return err
				}
				for _, s := range sprints {
					e.RecomputeSprint(ctx, s.ID)
				}
				e.RecomputeProject(ctx, p.ID)
				refreshed, err := e.Repo.GetProject(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(refreshed)
			})
		},
	}
	return cmd
}

// --- workflow ---

func workflowCmd() *cobra.Command {
	wf := &cobra.Command{
		Use:   "workflow",
		Short: "Manage board workflows",
		Long:  "Workflows define the board: an ordered status list plus the allowed transitions. A status with no outgoing transitions declared may move to any listed status.",
	}
	wf.AddCommand(workflowImportCmd())
	wf.AddCommand(workflowListCmd())
	wf.AddCommand(workflowShowCmd())
	wf.AddCommand(workflowSetDefaultCmd())
	return wf
}

func workflowImportCmd() *cobra.Command {
	var filePath, name string
	var makeDefault bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a workflow from a planup.yml-style file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				opts := engine.WorkflowCreateOptions{
					ProjectID:   p.ID,
					Name:        cfg.Workflow.Name,
					Statuses:    cfg.Workflow.Statuses,
					MakeDefault: makeDefault,
					ActorID:     viper.GetString("actor-id"),
				}
				if name != "" {
					opts.Name = name
				}
				for _, t := range cfg.Workflow.Transitions {
					opts.Transitions = append(opts.Transitions, domain.WorkflowTransition{FromStatus: t.From, ToStatus: t.To, Label: t.Label})
				}
				w, err := e.CreateWorkflow(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config with a workflow section")
	cmd.Flags().StringVar(&name, "name", "", "workflow name (overrides the file)")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "make this the project default")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func workflowListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List project workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				items, err := e.Repo.ListWorkflows(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Statuses", "Default"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, strings.Join(w.Statuses, " > "), w.IsDefault})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func workflowShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the project default workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				w, err := e.Repo.DefaultWorkflow(ctx, p.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

func workflowSetDefaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-default <workflow-id>",
		Short: "Set the project default workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := args[0]
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				if err := e.SetDefaultWorkflow(ctx, p.ID, workflowID); err != nil {
					return err
				}
				w, err := e.Repo.GetWorkflow(ctx, workflowID)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	return cmd
}

// --- issue ---

func issueCmd() *cobra.Command {
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Manage issues",
		Long:  "Issues are the work items. New issues land on the first board status; 'pu issue move' enforces the workflow's transitions and stamps completion when an issue reaches the last status.",
	}
	issue.AddCommand(issueCreateCmd())
	issue.AddCommand(issueListCmd())
	issue.AddCommand(issueShowCmd())
	issue.AddCommand(issueUpdateCmd())
	issue.AddCommand(issueMoveCmd())
	issue.AddCommand(issueDeleteCmd())
	issue.AddCommand(issueLinkCmd())
	issue.AddCommand(issueUnlinkCmd())
	issue.AddCommand(issueLinksCmd())
	return issue
}

func issueCreateCmd() *cobra.Command {
	var opts engine.IssueCreateOptions
	var epicRef string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				opts.ProjectID = p.ID
				if epicRef != "" {
					ep, err := e.EpicByRef(ctx, epicRef)
					if err != nil {
						return err
					}
					opts.EpicID = ep.ID
				}
				i, err := e.CreateIssue(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, medium, high, critical)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "issue type (story, bug, task, ...)")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&opts.ReporterID, "reporter-id", "", "reporter id")
	cmd.Flags().StringVar(&epicRef, "epic", "", "epic id or key")
	cmd.Flags().StringVar(&opts.SprintID, "sprint", "", "sprint id")
	cmd.Flags().Float64Var(&opts.EstimatedHours, "estimate", 0, "estimated hours")
	cmd.Flags().IntVar(&opts.StoryPoints, "points", 0, "story points")
	cmd.Flags().StringArrayVar(&opts.Labels, "label", []string{}, "label (repeatable)")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func issueListCmd() *cobra.Command {
	var f repo.IssueFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				f.ProjectID = p.ID
				items, err := e.Repo.ListIssues(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Key", "Title", "Status", "Assignee", "Points", "Logged"})
				for _, i := range items {
					assignee := ""
					if i.AssigneeID != nil {
						assignee = *i.AssigneeID
					}
					tw.AppendRow(table.Row{i.Key, i.Title, i.Status, assignee, i.StoryPoints, i.LoggedHours})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.EpicID, "epic", "", "epic id filter")
	cmd.Flags().StringVar(&f.SprintID, "sprint", "", "sprint id filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee-id", "", "assignee filter")
	cmd.Flags().StringVar(&f.Lifecycle, "lifecycle", "", "lifecycle filter (active, deactivated)")
	return cmd
}

func issueShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id|key>",
		Short: "Show an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueView(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(i)
			})
		},
	}
	return cmd
}

func issueUpdateCmd() *cobra.Command {
	var title, description, priority, itype, assignee, epic, sprint, due string
	var estimate float64
	var points int
	var labels []string
	cmd := &cobra.Command{
		Use:   "update <id|key>",
		Short: "Update an issue",
		Long:  "Only changed flags are applied. Passing an empty value to --assignee-id, --epic, --sprint, or --due clears the field.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.IssueUpdateOptions{ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("type") {
				opts.Type = &itype
			}
			if cmd.Flags().Changed("assignee-id") {
				opts.AssigneeID = &assignee
			}
			if cmd.Flags().Changed("epic") {
				opts.EpicID = &epic
			}
			if cmd.Flags().Changed("sprint") {
				opts.SprintID = &sprint
			}
			if cmd.Flags().Changed("estimate") {
				opts.EstimatedHours = &estimate
			}
			if cmd.Flags().Changed("points") {
				opts.StoryPoints = &points
			}
			if cmd.Flags().Changed("label") {
				opts.Labels = &labels
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				if opts.EpicID != nil && *opts.EpicID != "" {
					ep, err := e.EpicByRef(ctx, *opts.EpicID)
					if err != nil {
						return err
					}
					opts.EpicID = &ep.ID
				}
				updated, err := e.UpdateIssue(ctx, i.ID, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&itype, "type", "", "issue type")
	cmd.Flags().StringVar(&assignee, "assignee-id", "", "assignee id (empty clears)")
	cmd.Flags().StringVar(&epic, "epic", "", "epic id or key (empty clears)")
	cmd.Flags().StringVar(&sprint, "sprint", "", "sprint id (empty clears)")
	cmd.Flags().Float64Var(&estimate, "estimate", 0, "estimated hours")
	cmd.Flags().IntVar(&points, "points", 0, "story points")
	cmd.Flags().StringArrayVar(&labels, "label", []string{}, "labels (replaces the set)")
	cmd.Flags().StringVar(&due, "due", "", "due date (empty clears)")
	return cmd
}

func issueMoveCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "move <id|key>",
		Short: "Move an issue to another status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				moved, err := e.MoveIssue(ctx, i.ID, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(moved)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "target status")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func issueDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id|key>",
		Short: "Delete an issue",
		Long:  "An issue still referenced by an epic, a sprint, or a link is deactivated instead of removed so history stays resolvable.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				return e.DeleteIssue(ctx, i.ID, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func issueLinkCmd() *cobra.Command {
	var linkType string
	cmd := &cobra.Command{
		Use:   "link <source> <target>",
		Short: "Link two issues",
		Long:  "Link types: blocks, is-blocked-by, duplicates, is-duplicated-by, relates-to, parent-of, child-of. Each relation is stored once and visible from both issues.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				src, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				tgt, err := e.IssueByRef(ctx, args[1])
				if err != nil {
					return err
				}
				l, err := e.AddLink(ctx, src.ID, tgt.ID, linkType, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&linkType, "type", "relates-to", "link type")
	return cmd
}

func issueUnlinkCmd() *cobra.Command {
	var linkType string
	cmd := &cobra.Command{
		Use:   "unlink <source> <target>",
		Short: "Remove a link between two issues",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				src, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				tgt, err := e.IssueByRef(ctx, args[1])
				if err != nil {
					return err
				}
				return e.Unlink(ctx, src.ID, tgt.ID, linkType, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&linkType, "type", "relates-to", "link type")
	return cmd
}

func issueLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links <id|key>",
		Short: "List an issue's links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				links, err := e.LinksFor(ctx, i.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(links)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Type", "Target", "Link ID"})
				for _, l := range links {
					target, err := e.Repo.GetIssue(ctx, l.TargetIssueID)
					label := l.TargetIssueID
					if err == nil {
						label = target.Key
					}
					tw.AppendRow(table.Row{l.LinkType, label, l.ID})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// --- epic ---

func epicCmd() *cobra.Command {
	epic := &cobra.Command{
		Use:   "epic",
		Short: "Manage epics",
		Long:  "Epics group issues; their story point totals and completion come from member issues and are recomputed on every issue change.",
	}
	epic.AddCommand(epicCreateCmd())
	epic.AddCommand(epicListCmd())
	epic.AddCommand(epicShowCmd())
	return epic
}

func epicCreateCmd() *cobra.Command {
	var opts engine.EpicCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an epic",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				opts.ProjectID = p.ID
				ep, err := e.CreateEpic(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(ep)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&opts.Color, "color", "", "display color")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func epicListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List epics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				items, err := e.Repo.ListEpics(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Key", "Title", "Status", "Points", "Done"})
				for _, ep := range items {
					tw.AppendRow(table.Row{ep.Key, ep.Title, ep.Status, ep.StoryPoints, ep.CompletedStoryPoints})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func epicShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id|key>",
		Short: "Show an epic with its issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ep, err := e.EpicView(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ep)
			})
		},
	}
	return cmd
}

// --- sprint ---

func sprintCmd() *cobra.Command {
	sprint := &cobra.Command{
		Use:   "sprint",
		Short: "Manage sprints",
		Long:  "Sprints run planned -> active -> completed. Velocity is the story points of member issues completed inside the sprint window, computed when the sprint completes.",
	}
	sprint.AddCommand(sprintCreateCmd())
	sprint.AddCommand(sprintListCmd())
	sprint.AddCommand(sprintShowCmd())
	sprint.AddCommand(sprintUpdateCmd())
	sprint.AddCommand(sprintStartCmd())
	sprint.AddCommand(sprintCompleteCmd())
	return sprint
}

func sprintCreateCmd() *cobra.Command {
	var opts engine.SprintCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				opts.ProjectID = p.ID
				s, err := e.CreateSprint(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "sprint name")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "planned capacity in story points")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func sprintListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				items, err := e.Repo.ListSprints(ctx, p.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Status", "Start", "End", "Capacity", "Velocity"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Status, s.StartDate, s.EndDate, s.Capacity, s.Velocity})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func sprintShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a sprint with its issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.SprintView(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func sprintUpdateCmd() *cobra.Command {
	var name, goal, start, end string
	var capacity int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update sprint planning fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.SprintUpdateOptions{ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("goal") {
				opts.Goal = &goal
			}
			if cmd.Flags().Changed("start") {
				opts.StartDate = &start
			}
			if cmd.Flags().Changed("end") {
				opts.EndDate = &end
			}
			if cmd.Flags().Changed("capacity") {
				opts.Capacity = &capacity
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.UpdateSprint(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sprint name")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&start, "start", "", "start date")
	cmd.Flags().StringVar(&end, "end", "", "end date")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "planned capacity in story points")
	return cmd
}

func sprintStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a planned sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.StartSprint(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func sprintCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an active sprint and compute velocity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CompleteSprint(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

// --- subtask ---

func subtaskCmd() *cobra.Command {
	st := &cobra.Command{Use: "subtask", Short: "Manage subtasks"}
	st.AddCommand(subtaskAddCmd())
	st.AddCommand(subtaskListCmd())
	st.AddCommand(subtaskDoneCmd())
	st.AddCommand(subtaskDeleteCmd())
	return st
}

func subtaskAddCmd() *cobra.Command {
	var title, assignee string
	cmd := &cobra.Command{
		Use:   "add <issue>",
		Short: "Add a subtask to an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				st, err := e.CreateSubTask(ctx, engine.SubTaskCreateOptions{
					ParentIssueID: i.ID,
					Title:         title,
					AssigneeID:    assignee,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "subtask title")
	cmd.Flags().StringVar(&assignee, "assignee-id", "", "assignee id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func subtaskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <issue>",
		Short: "List an issue's subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := e.Repo.ListSubTasks(ctx, i.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func subtaskDoneCmd() *cobra.Command {
	var undone bool
	cmd := &cobra.Command{
		Use:   "done <subtask-id>",
		Short: "Mark a subtask done (or not done with --undo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			completed := !undone
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.UpdateSubTask(ctx, args[0], engine.SubTaskUpdateOptions{
					Completed: &completed,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().BoolVar(&undone, "undo", false, "mark not done")
	return cmd
}

func subtaskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <subtask-id>",
		Short: "Delete a subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteSubTask(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- comment ---

func commentCmd() *cobra.Command {
	c := &cobra.Command{Use: "comment", Short: "Manage comments"}
	c.AddCommand(commentAddCmd())
	c.AddCommand(commentListCmd())
	c.AddCommand(commentEditCmd())
	c.AddCommand(commentDeleteCmd())
	return c
}

func commentAddCmd() *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "add <issue>",
		Short: "Comment on an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				c, err := e.AddComment(ctx, i.ID, viper.GetString("actor-id"), content)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVarP(&content, "message", "m", "", "comment text")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func commentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <issue>",
		Short: "List an issue's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := e.Repo.ListComments(ctx, i.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func commentEditCmd() *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "edit <comment-id>",
		Short: "Edit a comment in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateComment(ctx, args[0], viper.GetString("actor-id"), content)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVarP(&content, "message", "m", "", "new comment text")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func commentDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteComment(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

// --- time ---

func timeCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "time",
		Short: "Track time on issues",
		Long:  "Time entries append to a per-issue ledger and roll up onto the issue's logged hours. Categories come from the timetracking section of planup.yml.",
	}
	t.AddCommand(timeLogCmd())
	t.AddCommand(timeListCmd())
	return t
}

func timeLogCmd() *cobra.Command {
	var opts engine.TimeLogOptions
	cmd := &cobra.Command{
		Use:   "log <issue>",
		Short: "Log hours on an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.AuthorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				opts.IssueID = i.ID
				t, err := e.LogTime(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().Float64Var(&opts.Hours, "hours", 0, "hours worked (must be positive)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "time category")
	cmd.Flags().StringVar(&opts.Description, "description", "", "what was done")
	cmd.Flags().StringVar(&opts.Date, "date", "", "work date (defaults to now)")
	_ = cmd.MarkFlagRequired("hours")
	return cmd
}

func timeListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <issue>",
		Short: "List an issue's time entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := e.Repo.ListTimeLogs(ctx, i.ID)
				if err != nil {
					return err
				}
				total, err := e.TotalLoggedHours(ctx, i.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"total_hours": total, "items": items})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Hours", "Category", "Author", "Description"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.Date, t.Hours, t.Category, t.AuthorID, t.Description})
				}
				tw.AppendFooter(table.Row{"Total", total, "", "", ""})
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// --- attachments ---

func attachCmd() *cobra.Command {
	a := &cobra.Command{Use: "attach", Short: "Manage attachments"}
	a.AddCommand(attachAddCmd())
	a.AddCommand(attachListCmd())
	a.AddCommand(attachDeleteCmd())
	return a
}

func attachAddCmd() *cobra.Command {
	var opts engine.AttachmentOptions
	cmd := &cobra.Command{
		Use:   "add <issue>",
		Short: "Record an attachment on an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				opts.IssueID = i.ID
				a, err := e.AddAttachment(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "file name")
	cmd.Flags().StringVar(&opts.Size, "size", "", "human-readable size")
	cmd.Flags().StringVar(&opts.FileURL, "url", "", "file URL")
	cmd.Flags().StringVar(&opts.FileType, "type", "", "file type")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func attachListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <issue>",
		Short: "List an issue's attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				i, err := e.IssueByRef(ctx, args[0])
				if err != nil {
					return err
				}
				items, err := e.Repo.ListAttachments(ctx, i.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func attachDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <attachment-id>",
		Short: "Delete an attachment record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAttachment(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- activity ---

func activityCmd() *cobra.Command {
	a := &cobra.Command{Use: "activity", Short: "Activity log"}
	a.AddCommand(activityTailCmd())
	return a
}

func activityTailCmd() *cobra.Command {
	var n int
	var sinceID int64
	var issueRef string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), func(ctx context.Context, e engine.Engine, p domain.Project) error {
				f := repo.ActivityFilter{ProjectID: p.ID, SinceID: sinceID, Limit: n}
				if issueRef != "" {
					i, err := e.IssueByRef(ctx, issueRef)
					if err != nil {
						return err
					}
					f.IssueID = i.ID
				}
				items, err := e.Repo.ListActivities(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Time", "Type", "Actor", "Payload"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Timestamp, a.Type, a.ActorID, a.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of records")
	cmd.Flags().Int64Var(&sinceID, "since-id", 0, "only records after this id")
	cmd.Flags().StringVar(&issueRef, "issue", "", "issue id or key filter")
	return cmd
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP server"}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyDeleteCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var name, actor string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the raw key prints once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				raw := uuid.NewString()
				k := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actor,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, nil, k); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{
					"id":       k.ID,
					"actor_id": k.ActorID,
					"name":     k.Name,
					"key":      raw,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Actor", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.Name, k.ActorID, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "planup.yml pins the workspace's project key, board workflow, time categories, and webhooks. 'pu project init' writes a default one.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			if _, err := app.ResolveProject(cmd.Context(), e, cfg, viper.GetString("project"), viper.GetString("actor-id")); err != nil {
				return err
			}
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("PLANUP_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyHeader,
			}
			if authCfg.JWTSecret == "" && !allowLegacyHeader {
				return fmt.Errorf("PLANUP_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor-header)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving PlanUp API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacyHeader, "allow-legacy-actor-header", false, "accept unauthenticated X-Actor-Id (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withProject(ctx context.Context, fn func(context.Context, engine.Engine, domain.Project) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		p, err := app.ResolveProject(ctx, e, e.Config, viper.GetString("project"), viper.GetString("actor-id"))
		if err != nil {
			return err
		}
		return fn(ctx, e, p)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
