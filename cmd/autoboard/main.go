package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"autoboard/internal/app"
	"autoboard/internal/config"
	"autoboard/internal/daemon"
	"autoboard/internal/db"
	"autoboard/internal/domain"
	"autoboard/internal/engine"
	"autoboard/internal/heuristics"
	"autoboard/internal/migrate"
	"autoboard/internal/repo"
	"autoboard/internal/server"
	wsexec "autoboard/internal/workspace"
)

var rootCmd = &cobra.Command{
	Use:   "autoboard",
	Short: "Autoboard CLI",
	Long: `Autoboard turns raw requirements into an autonomously scheduled task board.
Core concepts:
- Workspace: your .autoboard directory with the database; thresholds and commands live in autoboard.yml.
- Project: owns all tasks, requirements requests, and settings.
- Requirements: paste requirements text, get an analyzed feature list and an ordered set of generated tasks.
- Tasks: work items flowing todo -> inprogress -> inreview -> done (cancelled is an exit); complex ones get broken into subtasks.
- Agent: the scheduler that picks the next task each tick, guided by layers and sequences; every decision lands in the activity log.
- Review: automation that runs the task's tests and merges its branch when they pass.`,
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
	viper.SetEnvPrefix("AUTOBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(requirementsCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(daemonCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectUseCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}

func projectCreateCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
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
			if cfg == nil {
				cfg = config.Default(id)
			}
			e := newEngine(conn, cfg)
			p, err := e.InitProject(cmd.Context(), id, name)
			if err != nil {
				return err
			}
			return printJSONOrTable(p)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (random UUID if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete a project and everything under it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteProject(ctx, e.Config.Project.ID)
			})
		},
	}
}

func projectUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set current project in autoboard.yml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := strings.TrimSpace(args[0])
			if projectID == "" {
				return fmt.Errorf("project id is required")
			}
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default(projectID)
			}
			cfg.Project.ID = projectID
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(config.Path(workspace), data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Set project.id=%s in %s\n", projectID, config.Path(workspace))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is autoboard.yml: breakdown thresholds, stage timeouts, daemon intervals, and per-stack test commands. Per-project on/off switches live in the database, see 'autoboard agent' and 'autoboard review'.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default autoboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(projectID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "", "project id to seed")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
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
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show project status",
		Long:  "The scoreboard for your project: task counts per status, automation switches, and the latest requirements request.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projectID := e.Config.Project.ID
				p, err := e.Repo.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				counts, err := e.Repo.CountTasksByStatus(ctx, projectID)
				if err != nil {
					return err
				}
				agentSettings, err := e.Repo.GetAgentSettings(ctx, projectID)
				if err != nil {
					return err
				}
				reviewSettings, err := e.Repo.GetReviewSettings(ctx, projectID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"project_id":       p.ID,
					"name":             p.Name,
					"task_counts":      counts,
					"agent_enabled":    agentSettings.Enabled,
					"review_enabled":   reviewSettings.Enabled,
					"interval_seconds": agentSettings.IntervalSeconds,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Project: %s (%s)\n", p.ID, p.Name)
				fmt.Printf("Agent: enabled=%v interval=%ds\n", agentSettings.Enabled, agentSettings.IntervalSeconds)
				fmt.Printf("Review: enabled=%v auto_merge=%v run_tests=%v\n", reviewSettings.Enabled, reviewSettings.AutoMergeEnabled, reviewSettings.RunTestsEnabled)
				fmt.Println("Tasks:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
}

func requirementsCmd() *cobra.Command {
	req := &cobra.Command{
		Use:   "requirements",
		Short: "Analyze requirements into tasks",
		Long:  "Submit raw requirements text; the analyzer extracts features and generates an ordered task set. Poll with 'requirements status' or watch the task list grow.",
	}
	req.AddCommand(requirementsSubmitCmd())
	req.AddCommand(requirementsStatusCmd())
	req.AddCommand(requirementsDeleteCmd())
	return req
}

func requirementsSubmitCmd() *cobra.Command {
	var text, file, prdFile string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit requirements and run analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := text
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				raw = string(data)
			}
			prd := ""
			if prdFile != "" {
				data, err := os.ReadFile(prdFile)
				if err != nil {
					return err
				}
				prd = string(data)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, err := e.SubmitRequirements(ctx, e.Config.Project.ID, raw, prd)
				if err != nil {
					return err
				}
				req, err = e.RunAnalysis(ctx, req.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(req)
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "requirements text")
	cmd.Flags().StringVar(&file, "file", "", "read requirements from file")
	cmd.Flags().StringVar(&prdFile, "prd-file", "", "attach PRD document from file")
	return cmd
}

func requirementsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show latest requirements request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				req, generated, err := e.RequirementsStatus(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"request": req, "tasks_generated": generated})
				}
				fmt.Printf("Request: %s\nStatus: %s\nTasks generated: %d\n", req.ID, req.GenerationStatus, generated)
				if req.ErrorMessage != nil {
					fmt.Printf("Error: %s\n", *req.ErrorMessage)
				}
				return nil
			})
		},
	}
}

func requirementsDeleteCmd() *cobra.Command {
	var deleteTasks bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete requirements requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteRequirements(ctx, e.Config.Project.ID, deleteTasks)
			})
		},
	}
	cmd.Flags().BoolVar(&deleteTasks, "delete-tasks", false, "also delete generated tasks")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks flow todo -> inprogress -> inreview -> done (cancelled is an exit). Breakdown replaces a complex task with ordered subtasks; fullstack tasks can be split by layer.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskComplexityCmd())
	task.AddCommand(taskBreakdownCmd())
	task.AddCommand(taskSplitCmd())
	task.AddCommand(taskTreeCmd())
	task.AddCommand(taskTimedOutCmd())
	task.AddCommand(taskWorkspaceCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.ProjectID == "" {
					opts.ProjectID = e.Config.Project.ID
				}
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Type, "type", "", "task type (architecture, mock, implementation, integration)")
	cmd.Flags().StringVar(&opts.Layer, "layer", "", "layer (data, backend, frontend, fullstack, devops, testing)")
	cmd.Flags().IntVar(&opts.ComplexityScore, "complexity", 0, "complexity score 1-10")
	cmd.Flags().StringVar(&opts.ParentTaskID, "parent", "", "parent task id")
	cmd.Flags().StringVar(&opts.TestingCriteria, "testing-criteria", "", "testing criteria")
	cmd.Flags().BoolVar(&opts.PreventBreakdown, "prevent-breakdown", false, "never break this task down")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.ProjectID == "" {
					f.ProjectID = e.Config.Project.ID
				}
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Type", "Layer", "Seq", "Cx"})
				for _, t := range tasks {
					layer := ""
					if t.Layer != nil {
						layer = *t.Layer
					}
					seq := ""
					if t.Sequence != nil {
						seq = fmt.Sprint(*t.Sequence)
					}
					cx := ""
					if t.ComplexityScore != nil {
						cx = fmt.Sprint(*t.ComplexityScore)
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Type, layer, seq, cx})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Source, "source", "", "source filter (manual, ai_generated)")
	cmd.Flags().StringVar(&f.Parent, "parent", "", "parent task id")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "max rows")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "set-status <id>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SetTaskStatus(ctx, id, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func taskComplexityCmd() *cobra.Command {
	var score int
	cmd := &cobra.Command{
		Use:   "set-complexity <id>",
		Short: "Set complexity score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.SetComplexity(ctx, id, score); err != nil {
					return err
				}
				t, err := e.Repo.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().IntVar(&score, "score", 0, "complexity 1-10")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}

func taskBreakdownCmd() *cobra.Command {
	var subtasksJSON string
	cmd := &cobra.Command{
		Use:   "breakdown <id>",
		Short: "Replace a task with subtasks",
		Long:  "Provide subtasks as JSON, or omit --subtasks-json to let the sizer propose them from the task description.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var drafts []domain.TaskDraft
				if subtasksJSON != "" {
					if err := json.Unmarshal([]byte(subtasksJSON), &drafts); err != nil {
						return fmt.Errorf("invalid subtasks JSON: %w", err)
					}
				} else {
					t, err := e.Repo.GetTask(ctx, id)
					if err != nil {
						return err
					}
					_, proposed, err := e.Sizer.Score(ctx, t, e.Config.Breakdown.MaxSubtasks)
					if err != nil {
						return err
					}
					drafts = proposed
				}
				subtasks, err := e.BreakdownTask(ctx, id, drafts)
				if err != nil {
					return err
				}
				return printJSONOrTable(subtasks)
			})
		},
	}
	cmd.Flags().StringVar(&subtasksJSON, "subtasks-json", "", "subtask drafts as JSON array")
	return cmd
}

func taskSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <id>",
		Short: "Split a fullstack task into layer subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				subtasks, err := e.SplitFullstack(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(subtasks)
			})
		},
	}
}

func taskTreeCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show task tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{ProjectID: e.Config.Project.ID, Status: status})
				if err != nil {
					return err
				}
				nodes := map[string][]domain.Task{}
				var roots []domain.Task
				for _, t := range tasks {
					if t.ParentTaskID != nil {
						nodes[*t.ParentTaskID] = append(nodes[*t.ParentTaskID], t)
					} else {
						roots = append(roots, t)
					}
				}
				if viper.GetBool("json") {
					type Node struct {
						Task     domain.Task `json:"task"`
						Children []Node      `json:"children,omitempty"`
					}
					var build func(t domain.Task) Node
					build = func(t domain.Task) Node {
						var childNodes []Node
						for _, c := range nodes[t.ID] {
							childNodes = append(childNodes, build(c))
						}
						return Node{Task: t, Children: childNodes}
					}
					var treeNodes []Node
					for _, r := range roots {
						treeNodes = append(treeNodes, build(r))
					}
					return printJSON(treeNodes)
				}
				for _, r := range roots {
					printTaskTree(r, nodes, "", true)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func taskTimedOutCmd() *cobra.Command {
	var thresholdMinutes int
	cmd := &cobra.Command{
		Use:   "timed-out",
		Short: "List tasks stalled past the stage timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				threshold := e.Config.StageTimeout()
				if thresholdMinutes > 0 {
					threshold = time.Duration(thresholdMinutes) * time.Minute
				}
				stalled, err := e.FindTimedOut(ctx, e.Config.Project.ID, threshold)
				if err != nil {
					return err
				}
				return printJSONOrTable(stalled)
			})
		},
	}
	cmd.Flags().IntVar(&thresholdMinutes, "threshold-minutes", 0, "override stage timeout")
	return cmd
}

func taskWorkspaceCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workspace", Short: "Manage task workspaces"}
	ws.AddCommand(taskWorkspaceAddCmd())
	return ws
}

func taskWorkspaceAddCmd() *cobra.Command {
	var branch, path, target string
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Register a working copy for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
					return err
				}
				ws := domain.Workspace{
					ID:           uuid.NewString(),
					TaskID:       taskID,
					Branch:       branch,
					Path:         path,
					TargetBranch: target,
					CreatedAt:    e.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertWorkspace(ctx, ws); err != nil {
					return err
				}
				return printJSONOrTable(ws)
			})
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "feature branch")
	cmd.Flags().StringVar(&path, "path", "", "working copy path")
	cmd.Flags().StringVar(&target, "target", "main", "merge target branch")
	_ = cmd.MarkFlagRequired("branch")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func agentCmd() *cobra.Command {
	agent := &cobra.Command{
		Use:   "agent",
		Short: "Autonomous scheduler",
		Long:  "The agent ticks periodically, picks the next eligible task, breaks down complex ones, and records every decision in the activity log.",
	}
	agent.AddCommand(agentShowCmd())
	agent.AddCommand(agentUpdateCmd())
	agent.AddCommand(agentTriggerCmd())
	agent.AddCommand(agentLogsCmd())
	return agent
}

func agentShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show agent settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				settings, err := e.Repo.GetAgentSettings(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(settings)
			})
		},
	}
}

func agentUpdateCmd() *cobra.Command {
	var enable, disable bool
	var interval, maxDepth int
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update agent settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return fmt.Errorf("--enable and --disable are mutually exclusive")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				settings, err := e.Repo.GetAgentSettings(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if enable {
					settings.Enabled = true
				}
				if disable {
					settings.Enabled = false
				}
				if cmd.Flags().Changed("interval") {
					settings.IntervalSeconds = interval
				}
				if cmd.Flags().Changed("max-depth") {
					settings.MaxBreakdownDepth = maxDepth
				}
				updated, err := e.Repo.UpsertAgentSettings(ctx, settings, e.Now().UTC().Format(time.RFC3339))
				if err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "enable automation")
	cmd.Flags().BoolVar(&disable, "disable", false, "disable automation")
	cmd.Flags().IntVar(&interval, "interval", 60, "tick interval seconds")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 1, "max breakdown depth")
	return cmd
}

func agentTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Run one scheduling pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				result, err := e.Trigger(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
}

func agentLogsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show agent activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				logs, err := e.Repo.ListAgentActivity(ctx, e.Config.Project.ID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(logs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Action", "Task", "Reasoning"})
				for _, entry := range logs {
					taskID := ""
					if entry.TaskID != nil {
						taskID = *entry.TaskID
					}
					reasoning := ""
					if entry.Reasoning != nil {
						reasoning = *entry.Reasoning
					}
					tw.AppendRow(table.Row{entry.CreatedAt, entry.Action, taskID, reasoning})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func reviewCmd() *cobra.Command {
	review := &cobra.Command{
		Use:   "review",
		Short: "Review automation",
		Long:  "Review automation runs the task's tests in its workspace and merges the branch when they pass. Conflicts and failures leave the task in review for a human.",
	}
	review.AddCommand(reviewShowCmd())
	review.AddCommand(reviewUpdateCmd())
	review.AddCommand(reviewProcessCmd())
	review.AddCommand(reviewLogsCmd())
	return review
}

func reviewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show review settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				settings, err := e.Repo.GetReviewSettings(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(settings)
			})
		},
	}
}

func reviewUpdateCmd() *cobra.Command {
	var enable, disable bool
	var autoMerge, runTests bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update review settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return fmt.Errorf("--enable and --disable are mutually exclusive")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				settings, err := e.Repo.GetReviewSettings(ctx, e.Config.Project.ID)
				if err != nil {
					return err
				}
				if enable {
					settings.Enabled = true
				}
				if disable {
					settings.Enabled = false
				}
				if cmd.Flags().Changed("auto-merge") {
					settings.AutoMergeEnabled = autoMerge
				}
				if cmd.Flags().Changed("run-tests") {
					settings.RunTestsEnabled = runTests
				}
				updated, err := e.Repo.UpsertReviewSettings(ctx, settings, e.Now().UTC().Format(time.RFC3339))
				if err != nil {
					return err
				}
				return printJSONOrTable(updated)
			})
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "enable review automation")
	cmd.Flags().BoolVar(&disable, "disable", false, "disable review automation")
	cmd.Flags().BoolVar(&autoMerge, "auto-merge", true, "merge on passing tests")
	cmd.Flags().BoolVar(&runTests, "run-tests", true, "run tests before merge")
	return cmd
}

func reviewProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <task-id>",
		Short: "Run the review pipeline for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				logs, err := e.ProcessReview(ctx, taskID)
				if err != nil {
					return err
				}
				return printJSONOrTable(logs)
			})
		},
	}
}

func reviewLogsCmd() *cobra.Command {
	var taskID string
	var n int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show review automation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var logs []domain.ReviewAutomationLog
				var err error
				if taskID != "" {
					logs, err = e.Repo.ListReviewLogs(ctx, taskID, n)
				} else {
					logs, err = e.Repo.ListProjectReviewLogs(ctx, e.Config.Project.ID, n)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(logs)
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "filter by task id")
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Autoboard API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background automation loops",
		Long:  "Starts one scheduler loop per enabled project plus the review and timeout sweeps. Stops cleanly on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
				d := &daemon.Daemon{
					Engine:        e,
					Logger:        log.Default(),
					PollInterval:  time.Duration(e.Config.Daemon.PollSeconds) * time.Second,
					SweepInterval: time.Duration(e.Config.Daemon.ReviewSweepSeconds) * time.Second,
					StageTimeout:  e.Config.StageTimeout(),
				}
				log.Printf("autoboard daemon running (poll=%s sweep=%s)", d.PollInterval, d.SweepInterval)
				return d.Run(ctx)
			})
		},
	}
}

// --- helpers ---

func newEngine(conn *sql.DB, cfg *config.Config) engine.Engine {
	e := engine.New(conn, cfg)
	e.Extractor = heuristics.Extractor{}
	e.Generator = heuristics.Generator{}
	e.Decider = heuristics.Decider{}
	e.Sizer = heuristics.Sizer{}
	testCommands := map[string]string{}
	if cfg != nil {
		testCommands = cfg.Review.TestCommands
	}
	e.Tests = wsexec.TestRunner{TestCommands: testCommands}
	e.Merger = wsexec.GitMerger{}
	return e
}

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
	_, cfg, err := app.ResolveProjectAndConfig(ctx, workspace, viper.GetString("project"), engine.New(conn, nil))
	if err != nil {
		return err
	}
	return fn(ctx, newEngine(conn, cfg))
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

func printTaskTree(t domain.Task, children map[string][]domain.Task, prefix string, last bool) {
	connector := "├── "
	newPrefix := prefix + "│   "
	if last {
		connector = "└── "
		newPrefix = prefix + "    "
	}
	fmt.Printf("%s%s%s [%s]\n", prefix, connector, t.Title, t.Status)
	for i, c := range children[t.ID] {
		printTaskTree(c, children, newPrefix, i == len(children[t.ID])-1)
	}
}
