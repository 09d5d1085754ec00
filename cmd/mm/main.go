package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"momentum/internal/actions"
	"momentum/internal/calendar"
	"momentum/internal/config"
	"momentum/internal/db"
	"momentum/internal/domain"
	"momentum/internal/events"
	"momentum/internal/migrate"
	"momentum/internal/repo"
	"momentum/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "mm",
	Short: "Momentum CLI",
	Long: `Momentum keeps tasks and goals in a local workspace and lets an AI
assistant propose changes that you approve before they run.
- Workspace: your .momentum directory holding the database; momentum.yml
  next to it configures the server, calendar provider, and webhooks.
- Tasks: work items with category, priority, due date, and an optional
  calendar event link. Goals track longer-term progress (0-100).
- Proposals: assistant-suggested actions. Nothing executes until you
  approve it - singly, or a whole conversation as one batch so that
  "pending" references resolve against earlier creations.
- Event log: diary of every mutation, view with 'mm log tail'.`,
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
	viper.SetEnvPrefix("MOMENTUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("owner-id", "local-user", "owner identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("owner-id", rootCmd.PersistentFlags().Lookup("owner-id"))
}

func registerCommands() {
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(assistantCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskDeleteAllCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var title, category, description, priority, status, dueDate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := map[string]any{"title": title, "category": category}
			if description != "" {
				data["description"] = description
			}
			if priority != "" {
				data["priority"] = priority
			}
			if status != "" {
				data["status"] = status
			}
			if dueDate != "" {
				data["due_date"] = dueDate
			}
			return runAction(cmd.Context(), actions.Action{Type: actions.TypeCreateTask, Data: data})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&status, "status", "", "status (todo, in_progress, completed)")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func taskListCmd() *cobra.Command {
	var status, category string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				tasks, err := x.Repo.ListTasks(ctx, repo.TaskFilters{
					OwnerID:  viper.GetString("owner-id"),
					Status:   status,
					Category: category,
					Limit:    limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Priority", "Status", "Due"})
				for _, t := range tasks {
					due := ""
					if t.DueDate != nil {
						due = *t.DueDate
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Category, t.Priority, t.Status, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				t, err := x.Repo.GetTask(ctx, viper.GetString("owner-id"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, category, description, priority, status, dueDate string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := map[string]any{}
			setIfChanged(cmd, updates, "title", title)
			setIfChanged(cmd, updates, "category", category)
			setIfChanged(cmd, updates, "description", description)
			setIfChanged(cmd, updates, "priority", priority)
			setIfChanged(cmd, updates, "status", status)
			setIfChanged(cmd, updates, "due-date", dueDate)
			if d, ok := updates["due-date"]; ok {
				delete(updates, "due-date")
				updates["due_date"] = d
			}
			if len(updates) == 0 {
				return fmt.Errorf("no updates provided")
			}
			return runAction(cmd.Context(), actions.Action{
				Type: actions.TypeUpdateTask,
				Data: map[string]any{"taskId": args[0], "updates": updates},
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&status, "status", "", "status (todo, in_progress, completed)")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "due date (YYYY-MM-DD)")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Complete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), actions.Action{
				Type: actions.TypeUpdateTask,
				Data: map[string]any{"taskId": args[0], "updates": map[string]any{"status": "completed"}},
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), actions.Action{
				Type: actions.TypeDeleteTask,
				Data: map[string]any{"taskId": args[0]},
			})
		},
	}
	return cmd
}

func taskDeleteAllCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete all tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all tasks without --yes")
			}
			return runAction(cmd.Context(), actions.Action{Type: actions.TypeDeleteAllTasks})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func goalCmd() *cobra.Command {
	goal := &cobra.Command{
		Use:   "goal",
		Short: "Manage goals",
	}
	goal.AddCommand(goalCreateCmd())
	goal.AddCommand(goalListCmd())
	goal.AddCommand(goalUpdateCmd())
	goal.AddCommand(goalDeleteCmd())
	return goal
}

func goalCreateCmd() *cobra.Command {
	var title, category, description, targetDate string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := map[string]any{"title": title, "category": category}
			if description != "" {
				data["description"] = description
			}
			if targetDate != "" {
				data["target_date"] = targetDate
			}
			return runAction(cmd.Context(), actions.Action{Type: actions.TypeCreateGoal, Data: data})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "target date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func goalListCmd() *cobra.Command {
	var status, category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				goals, err := x.Repo.ListGoals(ctx, repo.GoalFilters{
					OwnerID:  viper.GetString("owner-id"),
					Status:   status,
					Category: category,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(goals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Progress", "Status", "Target"})
				for _, g := range goals {
					target := ""
					if g.TargetDate != nil {
						target = *g.TargetDate
					}
					tw.AppendRow(table.Row{g.ID, g.Title, g.Category, fmt.Sprintf("%d%%", g.Progress), g.Status, target})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	return cmd
}

func goalUpdateCmd() *cobra.Command {
	var title, category, description, status, targetDate string
	var progress int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := map[string]any{}
			setIfChanged(cmd, updates, "title", title)
			setIfChanged(cmd, updates, "category", category)
			setIfChanged(cmd, updates, "description", description)
			setIfChanged(cmd, updates, "status", status)
			setIfChanged(cmd, updates, "target-date", targetDate)
			if d, ok := updates["target-date"]; ok {
				delete(updates, "target-date")
				updates["target_date"] = d
			}
			if cmd.Flags().Changed("progress") {
				updates["progress"] = progress
			}
			if len(updates) == 0 {
				return fmt.Errorf("no updates provided")
			}
			return runAction(cmd.Context(), actions.Action{
				Type: actions.TypeUpdateGoal,
				Data: map[string]any{"goalId": args[0], "updates": updates},
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (active, completed, abandoned)")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "target date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress 0-100")
	return cmd
}

func goalDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), actions.Action{
				Type: actions.TypeDeleteGoal,
				Data: map[string]any{"goalId": args[0]},
			})
		},
	}
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workspace status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				ownerID := viper.GetString("owner-id")
				taskCounts, err := x.Repo.CountTasksByStatus(ctx, ownerID)
				if err != nil {
					return err
				}
				goalCounts, err := x.Repo.CountGoalsByStatus(ctx, ownerID)
				if err != nil {
					return err
				}
				avg, err := x.Repo.AverageGoalProgress(ctx, ownerID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"task_counts":       taskCounts,
					"goal_counts":       goalCounts,
					"avg_goal_progress": avg,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Println("Tasks:")
				for status, c := range taskCounts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Println("Goals:")
				for status, c := range goalCounts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Printf("Average goal progress: %.0f%%\n", avg)
				return nil
			})
		},
	}
	return cmd
}

func calendarCmd() *cobra.Command {
	cal := &cobra.Command{
		Use:   "calendar",
		Short: "Calendar account and sync",
	}
	cal.AddCommand(calendarConnectCmd())
	cal.AddCommand(calendarShowCmd())
	cal.AddCommand(calendarDisconnectCmd())
	cal.AddCommand(calendarSyncCmd())
	cal.AddCommand(calendarSyncAllCmd())
	return cal
}

func calendarConnectCmd() *cobra.Command {
	var provider, token, calendarID string
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect a calendar account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				account := domain.CalendarAccount{
					OwnerID:     viper.GetString("owner-id"),
					Provider:    provider,
					AccessToken: token,
					CalendarID:  calendarID,
					ConnectedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := x.Repo.UpsertCalendarAccount(ctx, account); err != nil {
					return err
				}
				return printJSONOrTable(account)
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "momentum-calendar", "provider name")
	cmd.Flags().StringVar(&token, "token", "", "access token")
	cmd.Flags().StringVar(&calendarID, "calendar-id", "", "target calendar id")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func calendarShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show connected calendar account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				account, err := x.Repo.GetCalendarAccount(ctx, viper.GetString("owner-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(account)
			})
		},
	}
	return cmd
}

func calendarDisconnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect calendar account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				return x.Repo.DeleteCalendarAccount(ctx, viper.GetString("owner-id"))
			})
		},
	}
	return cmd
}

func calendarSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <task-id>",
		Short: "Sync one task to the calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), actions.Action{
				Type: actions.TypeSyncCalendarEvent,
				Data: map[string]any{"taskId": args[0]},
			})
		},
	}
	return cmd
}

func calendarSyncAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync all dated, unsynced tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd.Context(), actions.Action{Type: actions.TypeSyncBulkCalendar})
		},
	}
	return cmd
}

func assistantCmd() *cobra.Command {
	assistant := &cobra.Command{
		Use:   "assistant",
		Short: "Assistant proposals and batch execution",
	}
	assistant.AddCommand(assistantValidateCmd())
	assistant.AddCommand(assistantRunCmd())
	assistant.AddCommand(assistantProposeCmd())
	assistant.AddCommand(assistantProposalsCmd())
	assistant.AddCommand(assistantApproveCmd())
	assistant.AddCommand(assistantDeclineCmd())
	assistant.AddCommand(assistantApproveAllCmd())
	return assistant
}

func assistantValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate action descriptors from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readActions(file)
			if err != nil {
				return err
			}
			out := make([]actions.Validation, 0, len(batch))
			for _, a := range batch {
				out = append(out, actions.Validate(a))
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "JSON file with an action array, - for stdin")
	return cmd
}

func assistantRunCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute an action batch from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readActions(file)
			if err != nil {
				return err
			}
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				br, err := x.ExecuteBatch(ctx, viper.GetString("owner-id"), batch)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(br)
				}
				fmt.Println(actions.Format(br))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "JSON file with an action array, - for stdin")
	return cmd
}

func assistantProposeCmd() *cobra.Command {
	var file, conversation string
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Store actions as proposals awaiting approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readActions(file)
			if err != nil {
				return err
			}
			if conversation == "" {
				conversation = uuid.NewString()
			}
			return withProposals(cmd.Context(), func(ctx context.Context, p actions.Proposals) error {
				props, err := p.Submit(ctx, viper.GetString("owner-id"), conversation, batch)
				if err != nil {
					return err
				}
				return printJSONOrTable(props)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "JSON file with an action array, - for stdin")
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id (generated if empty)")
	return cmd
}

func assistantProposalsCmd() *cobra.Command {
	var conversation, status string
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProposals(cmd.Context(), func(ctx context.Context, p actions.Proposals) error {
				props, err := p.Repo.ListProposals(ctx, viper.GetString("owner-id"), conversation, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(props)
			})
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "conversation id filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func assistantApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <proposal-id>",
		Short: "Approve and execute one proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProposals(cmd.Context(), func(ctx context.Context, p actions.Proposals) error {
				_, res, err := p.Approve(ctx, viper.GetString("owner-id"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func assistantDeclineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decline <proposal-id>",
		Short: "Decline a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProposals(cmd.Context(), func(ctx context.Context, p actions.Proposals) error {
				prop, err := p.Decline(ctx, viper.GetString("owner-id"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(prop)
			})
		},
	}
	return cmd
}

func assistantApproveAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve-all <conversation-id>",
		Short: "Approve all open proposals in a conversation as one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProposals(cmd.Context(), func(ctx context.Context, p actions.Proposals) error {
				br, err := p.ApproveConversation(ctx, viper.GetString("owner-id"), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(br)
				}
				fmt.Println(actions.Format(br))
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var after int64
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				evts, err := x.Repo.ListEvents(ctx, viper.GetString("owner-id"), after, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(evts)
			})
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "only events with id greater than this")
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				raw := uuid.NewString() + uuid.NewString()
				key := domain.APIKey{
					ID:        uuid.NewString(),
					OwnerID:   viper.GetString("owner-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := x.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// The raw key is shown once and never stored.
				return printJSONOrTable(map[string]string{"id": key.ID, "key": raw})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				keys, err := x.Repo.ListAPIKeys(ctx, viper.GetString("owner-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
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
			return withExec(cmd.Context(), func(ctx context.Context, x actions.Executor) error {
				return x.Repo.DeleteAPIKey(ctx, viper.GetString("owner-id"), args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
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
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			jwtSecret := os.Getenv("MOMENTUM_JWT_SECRET")
			if jwtSecret == "" {
				jwtSecret = cfg.Auth.JWTSecret
			}
			if jwtSecret == "" {
				return fmt.Errorf("MOMENTUM_JWT_SECRET is required for bearer auth")
			}
			x := newExecutor(conn, cfg)
			handler, err := server.New(server.Config{
				Exec:      x,
				Proposals: actions.Proposals{Repo: x.Repo, Exec: x},
				BasePath:  cfg.Server.BasePath,
				Auth: server.AuthConfig{
					JWTSecret:              jwtSecret,
					AllowLegacyOwnerHeader: cfg.Auth.AllowLegacyOwnerHeader,
				},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Momentum API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func newExecutor(conn *sql.DB, cfg *config.Config) actions.Executor {
	timeout := time.Duration(cfg.Calendar.TimeoutSeconds) * time.Second
	return actions.Executor{
		DB:       conn,
		Repo:     repo.Repo{DB: conn},
		Events:   events.Writer{DB: conn},
		Calendar: calendar.NewClient(cfg.Calendar.BaseURL, timeout),
		Config:   cfg,
	}
}

func withExec(ctx context.Context, fn func(context.Context, actions.Executor) error) error {
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
	return fn(ctx, newExecutor(conn, cfg))
}

func withProposals(ctx context.Context, fn func(context.Context, actions.Proposals) error) error {
	return withExec(ctx, func(ctx context.Context, x actions.Executor) error {
		return fn(ctx, actions.Proposals{Repo: x.Repo, Exec: x})
	})
}

func runAction(ctx context.Context, a actions.Action) error {
	return withExec(ctx, func(ctx context.Context, x actions.Executor) error {
		res, err := x.ExecuteAction(ctx, viper.GetString("owner-id"), a)
		if err != nil {
			return err
		}
		if viper.GetBool("json") {
			return printJSON(res)
		}
		br := actions.BatchResult{Results: []actions.Result{res}, Summary: actions.Summary{Total: 1}}
		if res.Success {
			br.Summary.Succeeded = 1
		} else {
			br.Summary.Failed = 1
		}
		fmt.Println(actions.Format(br))
		return nil
	})
}

func readActions(file string) ([]actions.Action, error) {
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, err
	}
	var batch []actions.Action
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("invalid action JSON: %w", err)
	}
	return batch, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func setIfChanged(cmd *cobra.Command, updates map[string]any, flag, value string) {
	if cmd.Flags().Changed(flag) {
		updates[flag] = value
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
