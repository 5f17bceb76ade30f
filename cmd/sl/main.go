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

	"studioline/internal/app"
	"studioline/internal/db"
	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/engine/identity"
	"studioline/internal/repo"
	"studioline/internal/server"
	"studioline/internal/token"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Studioline CLI",
	Long: `Studioline runs the identity and work-assignment core of a content
production agency. Three kinds of accounts (staff, customers, coworkers)
share one login; customers raise service requests, staff get assigned and
work tasks, and the requesting customer signs off on finished work.`,
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
	viper.SetEnvPrefix("STUDIOLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-admin", "actor identifier recorded in the event log")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(customerCmd())
	rootCmd.AddCommand(coworkerCmd())
	rootCmd.AddCommand(serviceCmd())
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- staff ---

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "staff", Short: "Manage staff accounts"}
	cmd.AddCommand(staffCreateCmd())
	cmd.AddCommand(staffListCmd())
	cmd.AddCommand(staffShowCmd())
	cmd.AddCommand(staffUpdateCmd())
	return cmd
}

func staffCreateCmd() *cobra.Command {
	var opts identity.CreateStaffOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				st, err := a.Identity.CreateStaff(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.PhoneNumber, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password")
	cmd.Flags().StringVar(&opts.Role, "role", "editor", "role (admin, manager, editor, designer, video-shooter)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func staffListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.Repo.ListStaff(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Phone", "Role"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, s.PhoneNumber, s.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func staffShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				st, err := a.Engine.Repo.GetStaff(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	return cmd
}

func staffUpdateCmd() *cobra.Command {
	var name, password, role string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update staff member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				var opts identity.ProfileUpdateOptions
				var rolePtr *string
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("password") {
					opts.Password = &password
				}
				if cmd.Flags().Changed("role") {
					rolePtr = &role
				}
				st, err := a.Identity.UpdateStaffProfile(ctx, args[0], opts, rolePtr)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringVar(&role, "role", "", "role")
	return cmd
}

// --- customers ---

func customerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "customer", Short: "Manage customer accounts"}
	cmd.AddCommand(customerCreateCmd())
	cmd.AddCommand(customerListCmd())
	cmd.AddCommand(customerShowCmd())
	cmd.AddCommand(customerUpdateCmd())
	return cmd
}

func customerCreateCmd() *cobra.Command {
	var name, phone, password, company string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				p, err := a.Identity.Register(ctx, identity.RegisterOptions{
					Kind:        domain.KindCustomer,
					Name:        name,
					PhoneNumber: phone,
					Password:    password,
					Company:     company,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&company, "company", "", "company name")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func customerListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.Repo.ListCustomers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Phone", "Company", "VIP", "Active"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.PhoneNumber, c.Company, c.IsVIP, c.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func customerShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				c, err := a.Engine.Repo.GetCustomer(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func customerUpdateCmd() *cobra.Command {
	var name, password string
	var vip, active bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				var opts identity.ProfileUpdateOptions
				var standing identity.CustomerStandingOptions
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("password") {
					opts.Password = &password
				}
				if cmd.Flags().Changed("vip") {
					standing.IsVIP = &vip
				}
				if cmd.Flags().Changed("active") {
					standing.IsActive = &active
				}
				c, err := a.Identity.UpdateCustomerProfile(ctx, args[0], opts, standing)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().BoolVar(&vip, "vip", false, "VIP standing")
	cmd.Flags().BoolVar(&active, "active", true, "account active")
	return cmd
}

// --- coworkers ---

func coworkerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "coworker", Short: "Manage coworker accounts"}
	cmd.AddCommand(coworkerCreateCmd())
	cmd.AddCommand(coworkerListCmd())
	cmd.AddCommand(coworkerShowCmd())
	cmd.AddCommand(coworkerUpdateCmd())
	cmd.AddCommand(coworkerReviewCmd())
	return cmd
}

func coworkerCreateCmd() *cobra.Command {
	var name, phone, password, skills string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a coworker (starts unapproved)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				p, err := a.Identity.Register(ctx, identity.RegisterOptions{
					Kind:        domain.KindCoworker,
					Name:        name,
					PhoneNumber: phone,
					Password:    password,
					Skills:      skills,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&skills, "skills", "", "skills summary")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func coworkerListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List coworkers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.Repo.ListCoworkers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Phone", "Approved", "Active"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.PhoneNumber, c.IsApproved, c.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func coworkerShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show coworker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				c, err := a.Engine.Repo.GetCoworker(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	return cmd
}

func coworkerUpdateCmd() *cobra.Command {
	var name, password, skills string
	var active bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update coworker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				var opts identity.ProfileUpdateOptions
				var skillsPtr *string
				var activePtr *bool
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("password") {
					opts.Password = &password
				}
				if cmd.Flags().Changed("skills") {
					skillsPtr = &skills
				}
				if cmd.Flags().Changed("active") {
					activePtr = &active
				}
				c, err := a.Identity.UpdateCoworkerProfile(ctx, args[0], opts, skillsPtr, activePtr)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringVar(&skills, "skills", "", "skills summary")
	cmd.Flags().BoolVar(&active, "active", true, "account active")
	return cmd
}

func coworkerReviewCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve or decline a coworker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				c, err := a.Engine.ReviewCoworker(ctx, engine.CoworkerApprovalOptions{
					ID:      args[0],
					Action:  action,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "approve", "approve or decline")
	return cmd
}

// --- services ---

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "service", Short: "Manage the service catalog"}
	cmd.AddCommand(serviceCreateCmd())
	cmd.AddCommand(serviceListCmd())
	return cmd
}

func serviceCreateCmd() *cobra.Command {
	var opts engine.ServiceCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a catalog service",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				s, err := a.Engine.CreateService(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "service name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().Int64Var(&opts.BasePrice, "base-price", 0, "base price")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func serviceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog services",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.Repo.ListServices(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

// --- service requests ---

func requestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "request", Short: "Manage service requests"}
	cmd.AddCommand(requestCreateCmd())
	cmd.AddCommand(requestListCmd())
	cmd.AddCommand(requestShowCmd())
	cmd.AddCommand(requestStatusCmd())
	cmd.AddCommand(requestUpdateCmd())
	return cmd
}

func requestCreateCmd() *cobra.Command {
	var opts engine.ServiceRequestCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Raise a service request",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				sr, err := a.Engine.CreateServiceRequest(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(sr)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.ServiceID, "service", "", "catalog service id")
	cmd.Flags().StringVar(&opts.RequestedBy, "customer", "", "requesting customer id")
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 0, "quantity (default 1)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, medium, high, urgent)")
	cmd.Flags().StringVar(&opts.ScheduledDate, "scheduled", "", "scheduled date (RFC3339)")
	cmd.Flags().StringVar(&opts.Requirements, "requirements", "", "requirements")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func requestListCmd() *cobra.Command {
	var f repo.RequestFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.Repo.ListServiceRequests(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Customer"})
				for _, sr := range items {
					tw.AppendRow(table.Row{sr.ID, sr.Title, sr.Status, sr.Priority, sr.RequestedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.RequestedBy, "customer", "", "requesting customer filter")
	return cmd
}

func requestShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show service request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				sr, err := a.Engine.Repo.GetServiceRequest(ctx, args[0])
				if err != nil {
					return err
				}
				sr.AssignedTo, err = a.Engine.Repo.ListAssignees(ctx, sr.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(sr)
			})
		},
	}
	return cmd
}

func requestStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show request status and task counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				sr, err := a.Engine.Repo.GetServiceRequest(ctx, args[0])
				if err != nil {
					return err
				}
				counts, err := a.Engine.Repo.CountTasksByStatus(ctx, sr.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"service_request_id": sr.ID,
						"status":             sr.Status,
						"task_counts":        counts,
					})
				}
				fmt.Printf("Request: %s (%s)\n", sr.ID, sr.Status)
				fmt.Println("Tasks:")
				for status, c := range counts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				return nil
			})
		},
	}
	return cmd
}

func requestUpdateCmd() *cobra.Command {
	var title, status, priority, scheduled, requirements string
	var quantity int
	var assign []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a service request (including assignment)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ServiceRequestUpdateOptions{
				ID:      args[0],
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("scheduled") {
				opts.ScheduledDate = &scheduled
			}
			if cmd.Flags().Changed("requirements") {
				opts.Requirements = &requirements
			}
			if cmd.Flags().Changed("quantity") {
				opts.Quantity = &quantity
			}
			if cmd.Flags().Changed("assign") {
				opts.AssignedTo = &assign
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				sr, err := a.Engine.UpdateServiceRequest(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(sr)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "scheduled date (empty clears)")
	cmd.Flags().StringVar(&requirements, "requirements", "", "requirements")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "quantity")
	cmd.Flags().StringArrayVar(&assign, "assign", []string{}, "staff id to assign (repeatable; full set replaces)")
	return cmd
}

// --- tasks ---

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskUpdateCmd())
	cmd.AddCommand(taskReviewCmd())
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignee", "Request"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, t.AssigneeID, t.ServiceRequestID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ServiceRequestID, "request", "", "service request filter")
	cmd.Flags().StringVar(&f.AssigneeID, "assignee", "", "assignee filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				t, err := a.Engine.Repo.GetTask(ctx, args[0])
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
	var status, notes, deliverables, videoURL string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:      args[0],
				Status:  status,
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			if cmd.Flags().Changed("deliverables") {
				opts.Deliverables = &deliverables
			}
			if cmd.Flags().Changed("video-url") {
				opts.VideoURL = &videoURL
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				t, err := a.Engine.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status (todo, in-progress, review, accepted, cancelled)")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&deliverables, "deliverables", "", "deliverables")
	cmd.Flags().StringVar(&videoURL, "video-url", "", "video URL (empty clears)")
	return cmd
}

func taskReviewCmd() *cobra.Command {
	var action, reason, customerID string
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve or reject an accepted task as the owning customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if customerID == "" {
				return fmt.Errorf("--customer required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				c, err := a.Engine.Repo.GetCustomer(ctx, customerID)
				if err != nil {
					return err
				}
				t, err := a.Engine.ReviewTask(ctx, engine.TaskReviewOptions{
					ID:     args[0],
					Action: action,
					Reason: reason,
					Reviewer: token.Claims{
						PrincipalID: c.ID,
						Kind:        domain.KindCustomer,
						Name:        c.Name,
						PhoneNumber: c.PhoneNumber,
					},
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "approve", "approve or reject")
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	cmd.Flags().StringVar(&customerID, "customer", "", "owning customer id")
	return cmd
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var name, staffID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key bound to a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if staffID == "" {
				return fmt.Errorf("--staff required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if _, err := a.Engine.Repo.GetStaff(ctx, staffID); err != nil {
					return err
				}
				plain := newAPIKeySecret()
				key := domain.APIKey{
					ID:        newID(),
					StaffID:   staffID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(plain),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Engine.Repo.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{
					"id":       key.ID,
					"staff_id": key.StaffID,
					"name":     key.Name,
					"key":      plain,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	cmd.Flags().StringVar(&staffID, "staff", "", "staff id")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var staffID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				items, err := a.Engine.Repo.ListAPIKeys(ctx, staffID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&staffID, "staff", "", "staff filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				return a.Engine.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- config / log / serve ---

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Workspace config"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				if viper.GetBool("json") {
					return printJSON(a.Config)
				}
				out, err := a.Config.ToYAML()
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			})
		},
	})
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Context) error {
				events, err := a.Engine.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("STUDIOLINE_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("STUDIOLINE_JWT_SECRET is required for bearer auth")
			}
			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), secret)
			if err != nil {
				return err
			}
			defer a.Close()
			handler, err := server.New(server.Config{
				Engine:   a.Engine,
				Identity: a.Identity,
				Tokens:   a.Tokens,
				BasePath: basePath,
			})
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
			fmt.Printf("Serving Studioline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
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

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"), os.Getenv("STUDIOLINE_JWT_SECRET"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
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

func newID() string {
	return uuid.NewString()
}

func newAPIKeySecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
