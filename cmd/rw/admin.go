package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/roadwatch/roadwatch/internal/admin"
	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/db"
	"github.com/roadwatch/roadwatch/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	cmd.AddCommand(newAdminCreateCmd())
	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		phone      string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		Long:  "Creates an admin that can sign in with a phone OTP. The password prompt is optional; leave it empty to allow OTP sign-in only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(cmd, configPath, name, phone, role)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&name, "name", "", "admin display name (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "admin phone in E.164 form (required)")
	cmd.Flags().StringVar(&role, "role", "viewer", "role: admin or viewer")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("phone")
	return cmd
}

func runAdminCreate(cmd *cobra.Command, configPath, name, phone, role string) error {
	if role != "admin" && role != "viewer" {
		return fmt.Errorf("role must be admin or viewer")
	}
	if !strings.HasPrefix(phone, "+") {
		return fmt.Errorf("phone must be in E.164 form, e.g. +919700000001")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	out := cmd.OutOrStdout()
	hash := ""
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(out, "Password (empty for OTP-only): ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if len(raw) > 0 {
			hash, err = admin.HashPassword(string(raw))
			if err != nil {
				return err
			}
		}
	}

	account := models.AdminUser{
		Name:         name,
		Phone:        phone,
		Role:         role,
		PasswordHash: hash,
	}
	if err := gormDB.Create(&account).Error; err != nil {
		return fmt.Errorf("create admin %s: %w", phone, err)
	}

	fmt.Fprintf(out, "Created %s admin %s (%s)\n", role, name, phone)
	return nil
}
