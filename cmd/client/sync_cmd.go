package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/paintress/paintress-sync/internal/client"
	"github.com/paintress/paintress-sync/internal/client/config"
	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if !cfg.Enabled {
				return config.ErrDisabled
			}
			cmd.SilenceUsage = true

			c, err := client.New(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Lock(); err != nil {
				return err
			}

			report, err := c.SyncOnce(cmd.Context())
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

func printReport(w io.Writer, r *syncer.Report) {
	if !r.Changed() {
		fmt.Fprintln(w, gray.Render("Already in sync"))
		return
	}

	kinds := make([]string, 0, len(r.Applied))
	for kind, n := range r.Applied {
		kinds = append(kinds, fmt.Sprintf("%s %d", kind, n))
	}
	sort.Strings(kinds)
	if len(kinds) > 0 {
		fmt.Fprintln(w, green.Render("Synced:"), strings.Join(kinds, ", "), lightGray.Render("("+r.Took.Round(time.Millisecond).String()+")"))
	}

	for _, path := range r.UnresolvedConflicts {
		fmt.Fprintln(w, yellow.Render("Conflict:"), path)
	}

	failed := make([]string, 0, len(r.Failed))
	for path := range r.Failed {
		failed = append(failed, path)
	}
	sort.Strings(failed)
	for _, path := range failed {
		fmt.Fprintln(w, red.Render("Failed:"), path, lightGray.Render(r.Failed[path].Error()))
	}
}
