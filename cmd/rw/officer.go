package main

import (
	"fmt"

	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/db"
	"github.com/roadwatch/roadwatch/internal/division"
	"github.com/spf13/cobra"
)

func newOfficerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "officer",
		Short: "Manage division officer assignments",
	}

	cmd.AddCommand(newOfficerAssignCmd())
	cmd.AddCommand(newOfficerRelieveCmd())
	return cmd
}

func newOfficerAssignCmd() *cobra.Command {
	var (
		configPath string
		name       string
		phone      string
		altPhone   string
		email      string
		post       string
	)

	cmd := &cobra.Command{
		Use:   "assign <division-code>",
		Short: "Assign a new active officer, relieving the incumbent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}

			officer, err := division.AssignOfficer(gormDB, args[0], division.OfficerInput{
				Name:     name,
				Phone:    phone,
				AltPhone: altPhone,
				Email:    email,
				Post:     post,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s (%s) to division %s\n",
				officer.Name, officer.Phone, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&name, "name", "", "officer name (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "officer phone (required)")
	cmd.Flags().StringVar(&altPhone, "alt-phone", "", "alternate phone")
	cmd.Flags().StringVar(&email, "email", "", "officer email")
	cmd.Flags().StringVar(&post, "post", "", "officer post, e.g. PI")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("phone")
	return cmd
}

func newOfficerRelieveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "relieve <division-code>",
		Short: "Relieve the division's active officer without a replacement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			gormDB, err := db.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}

			if err := division.RelieveOfficer(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Relieved active officer of division %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}
