package main

import (
	"errors"
	"fmt"

	"github.com/paintress/paintress-sync/internal/client/config"
	"github.com/paintress/paintress-sync/internal/utils"
	"github.com/spf13/cobra"
)

var errConfigExists = errors.New("config already exists, use --force to overwrite")

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the Paintress config file",
		// subcommands create the file instead of reading it
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	configCmd.AddCommand(newConfigInitCmd())
	return configCmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			force, _ := cmd.Flags().GetBool("force")

			cfg := config.Default()
			cfg.Path = path
			cfg.Root, _ = cmd.Flags().GetString("root")
			cfg.ServerURL, _ = cmd.Flags().GetString("server")
			cfg.Token, _ = cmd.Flags().GetString("token")
			cfg.EncryptionKey, _ = cmd.Flags().GetString("encryption-key")
			cfg.SyncType, _ = cmd.Flags().GetString("sync-type")
			cfg.ExcludeGlobs, _ = cmd.Flags().GetStringSlice("exclude")

			if err := cfg.Validate(); err != nil {
				return err
			}
			if utils.FileExists(cfg.Path) && !force {
				return fmt.Errorf("%s: %w", cfg.Path, errConfigExists)
			}

			if err := cfg.Save(cfg.Path); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, green.Render("Config written to"), cfg.Path)
			fmt.Fprintln(out, gray.Render("  root  "), cfg.Root)
			fmt.Fprintln(out, gray.Render("  server"), cfg.ServerURL)
			if cfg.Token != "" {
				fmt.Fprintln(out, gray.Render("  token "), utils.MaskSecret(cfg.Token))
			}
			return nil
		},
	}
	cmd.Flags().String("token", "", "Access token for the server")
	cmd.Flags().String("encryption-key", "", "Password for end-to-end encryption")
	cmd.Flags().String("sync-type", config.SyncTypeAuto, "auto or manual")
	cmd.Flags().StringSlice("exclude", nil, "Glob to exclude, repeatable")
	cmd.Flags().Bool("force", false, "Overwrite an existing config")
	return cmd
}
