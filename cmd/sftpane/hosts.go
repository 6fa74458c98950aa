package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/quocson95/sftpane/pkg/storage"
)

func newHostsCmd(opts *options) *cobra.Command {
	hostsCmd := &cobra.Command{
		Use:   "hosts",
		Short: "List remembered hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHostStore(opts)
			if err != nil {
				return err
			}
			profiles := store.List()
			if len(profiles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hosts remembered yet.")
				return nil
			}

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				Headers("HOST", "PORT", "USER", "LAST DIRECTORY", "LAST USED")
			for _, p := range profiles {
				t.Row(p.Host, strconv.Itoa(p.Port), p.Username, p.LastRemoteDir, humanize.Time(time.Unix(p.LastUsed, 0)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}

	hostsCmd.AddCommand(&cobra.Command{
		Use:   "forget <host>",
		Short: "Forget a remembered host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHostStore(opts)
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s.\n", args[0])
			return nil
		},
	})
	return hostsCmd
}

func openHostStore(opts *options) (*storage.HostStore, error) {
	dir, err := dataDir(opts)
	if err != nil {
		return nil, err
	}
	return storage.NewHostStore(dir)
}
