package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/lectern/internal/export"
	"github.com/JaimeStill/lectern/internal/records"
)

var workflowHeaders = []string{"Workflow", "Status", "Translate", "Speech", "Language", "Updated"}

func newWorkflowsCommand(ctx *commandContext) *cobra.Command {
	workflowsCmd := &cobra.Command{
		Use:   "workflows",
		Short: "Inspect workflow records",
	}

	workflowsCmd.AddCommand(newWorkflowsListCommand(ctx))
	workflowsCmd.AddCommand(newWorkflowsGetCommand(ctx))
	workflowsCmd.AddCommand(newWorkflowsExportCommand(ctx))

	return workflowsCmd
}

type listFlags struct {
	limit    int
	cursor   string
	sortBy   string
	status   string
	category string
}

func (f *listFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sortBy, "sort-by", "", "Order by createdAt or updatedAt")
	cmd.Flags().StringVar(&f.status, "status", "", "Only workflows in this status")
	cmd.Flags().StringVar(&f.category, "category", "", "Only workflows in this category (active, completed, failed)")
}

func (f *listFlags) query() records.ListQuery {
	return records.ListQuery{
		Limit:    f.limit,
		Cursor:   f.cursor,
		SortBy:   records.SortKey(f.sortBy),
		Status:   records.Status(strings.ToUpper(f.status)),
		Category: records.Category(strings.ToLower(f.category)),
	}
}

func newWorkflowsListCommand(ctx *commandContext) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.user()
			if err != nil {
				return err
			}
			store, err := ctx.records()
			if err != nil {
				return err
			}

			page, err := store.List(cmd.Context(), userID, flags.query())
			if err != nil {
				return err
			}

			if len(page.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No workflows")
				return nil
			}

			rows := make([][]string, 0, len(page.Items))
			for _, rec := range page.Items {
				rows = append(rows, []string{
					rec.WorkflowID,
					string(rec.Status),
					strconv.FormatBool(rec.Parameters.Translate),
					strconv.FormatBool(rec.Parameters.Speech),
					rec.Parameters.TargetLanguage,
					rec.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			writeRows(cmd.OutOrStdout(), workflowHeaders, rows, nil)

			if page.NextCursor != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "next cursor: %s\n", page.NextCursor)
			}
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().IntVar(&flags.limit, "limit", 20, "Maximum number of workflows")
	cmd.Flags().StringVar(&flags.cursor, "cursor", "", "Cursor from a previous page")

	return cmd
}

func newWorkflowsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Show a workflow record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.user()
			if err != nil {
				return err
			}
			store, err := ctx.records()
			if err != nil {
				return err
			}

			rec, err := store.Get(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, rec)
		},
	}
}

func newWorkflowsExportCommand(ctx *commandContext) *cobra.Command {
	var flags listFlags
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's workflows to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := ctx.user()
			if err != nil {
				return err
			}
			store, err := ctx.records()
			if err != nil {
				return err
			}

			svc := export.New(store, ctx.infra.Logger)
			data, err := svc.WorkflowsXLSX(cmd.Context(), userID, flags.query())
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", output)
			return nil
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "workflows.xlsx", "Output file")

	return cmd
}
