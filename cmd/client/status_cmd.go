package main

import (
	"fmt"
	"io"
	"time"

	"github.com/paintress/paintress-sync/internal/client"
	"github.com/paintress/paintress-sync/internal/client/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the server connection and pending changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			c, err := client.New(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}

			printStatus(cmd.OutOrStdout(), cfg, st)
			return nil
		},
	}
}

func printStatus(w io.Writer, cfg *config.Config, st *client.Status) {
	label := func(s string) string { return lightGray.Render(fmt.Sprintf("%-12s", s)) }

	fmt.Fprintln(w, label("Folder"), cfg.Root)
	if !cfg.Enabled {
		fmt.Fprintln(w, label("Sync"), yellow.Render("disabled"))
	} else {
		fmt.Fprintln(w, label("Sync"), cfg.SyncType, gray.Render("every "+cfg.SyncInterval.String()))
	}

	if st.Connected() {
		fmt.Fprintln(w, label("Server"), st.ServerURL, green.Render("connected"), gray.Render(st.Workspace+" "+st.ServerVersion))
	} else {
		fmt.Fprintln(w, label("Server"), st.ServerURL, red.Render("unreachable"), gray.Render(st.PingError.Error()))
	}

	if st.LastSyncedAt == 0 {
		fmt.Fprintln(w, label("Last sync"), gray.Render("never"))
	} else {
		fmt.Fprintln(w, label("Last sync"), time.UnixMilli(st.LastSyncedAt).Format(time.RFC3339))
	}

	if st.Connected() {
		if len(st.Pending) == 0 {
			fmt.Fprintln(w, label("Pending"), gray.Render("nothing"))
		} else {
			fmt.Fprintln(w, label("Pending"), len(st.Pending))
			for _, a := range st.Pending {
				fmt.Fprintf(w, "  %s %s\n", cyan.Render(fmt.Sprintf("%-8s", a.Kind)), a.Path())
			}
		}
	}

	if len(st.Conflicts) > 0 {
		fmt.Fprintln(w, label("Conflicts"), len(st.Conflicts))
		for _, c := range st.Conflicts {
			fmt.Fprintf(w, "  %s %s\n", yellow.Render(c.Path), gray.Render(time.UnixMilli(c.DetectedAt).Format(time.RFC3339)))
		}
	}
}
