package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/agencysite/pkg/auth"
	"github.com/psantana5/agencysite/pkg/content"
	"github.com/psantana5/agencysite/pkg/models"
)

var seedOverwrite bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Copy the content bundle into the database",
	Long: `Writes every entry and page of the content bundle to the database so it can be
edited from the admin API. Existing entries and settings are kept unless
--overwrite is given.`,
	RunE: runSeed,
}

var (
	userEmail    string
	userPassword string
	userName     string
	userRole     string
)

var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create an admin user",
	RunE:  runUseradd,
}

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(useraddCmd)

	seedCmd.Flags().BoolVar(&seedOverwrite, "overwrite", false, "replace entries and settings that already exist")

	useraddCmd.Flags().StringVar(&userEmail, "email", "", "email address (required)")
	useraddCmd.Flags().StringVar(&userPassword, "password", "", "password, at least 8 characters (required)")
	useraddCmd.Flags().StringVar(&userName, "name", "", "full name")
	useraddCmd.Flags().StringVar(&userRole, "role", string(models.RoleEditor), "role: admin, editor or viewer")
	useraddCmd.MarkFlagRequired("email")
	useraddCmd.MarkFlagRequired("password")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	bundle, err := loadBundle(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()
	res, err := content.Seed(ctx, st, bundle, seedOverwrite)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d entries and %d settings (%d skipped)\n", res.Entries, res.Settings, res.Skipped)
	return nil
}

func runUseradd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	user, err := auth.NewUser(models.UserRequest{
		Email:    userEmail,
		Password: userPassword,
		FullName: userName,
		Role:     models.Role(userRole),
	})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.CreateUser(cmd.Context(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
