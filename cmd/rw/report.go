package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/db"
	"github.com/roadwatch/roadwatch/internal/models"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect citizen reports",
	}

	cmd.AddCommand(newReportListCmd())
	return cmd
}

func newReportListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportList(cmd, configPath, status, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (Pending, In Progress, Resolved, Rejected)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	return cmd
}

func runReportList(cmd *cobra.Command, configPath, status string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	q := gormDB.Model(&models.Report{}).Order("created_at DESC").Limit(limit)
	if status != "" {
		if !models.ValidStatus(status) {
			return fmt.Errorf("unknown status %q", status)
		}
		q = q.Where("status = ?", status)
	}

	var reports []models.Report
	if err := q.Find(&reports).Error; err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REF\tTYPE\tDIVISION\tSTATUS\tNOTIFIED\tCREATED")
	for _, r := range reports {
		ref := r.ID
		if len(ref) > 8 {
			ref = ref[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			ref, r.Type, r.DivisionName, r.Status, r.DivisionNotified,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
