package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/quocson95/sftpane/pkg/storage"
)

// settingFields maps the names accepted by "settings set" to a setter on
// a copy of the stored settings.
var settingFields = map[string]func(s *storage.Settings, value string) error{
	"port": func(s *storage.Settings, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port %q", value)
		}
		s.DefaultPort = n
		return nil
	},
	"username": func(s *storage.Settings, value string) error {
		s.DefaultUsername = value
		return nil
	},
	"concurrency": func(s *storage.Settings, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid concurrency %q", value)
		}
		s.Concurrency = n
		return nil
	},
	"chunk-size": func(s *storage.Settings, value string) error {
		n, err := humanize.ParseBytes(value)
		if err != nil {
			return fmt.Errorf("invalid chunk size %q: %w", value, err)
		}
		if n > 1<<40 {
			return fmt.Errorf("chunk size %q is too large", value)
		}
		s.ChunkSize = int(n)
		return nil
	},
	"show-hidden": boolSetting(func(s *storage.Settings, v bool) { s.ShowHidden = v }),
	"known-hosts": func(s *storage.Settings, value string) error {
		s.KnownHostsPath = value
		return nil
	},
	"agent":       boolSetting(func(s *storage.Settings, v bool) { s.UseAgent = v }),
	"watch-local": boolSetting(func(s *storage.Settings, v bool) { s.WatchLocal = v }),
}

func boolSetting(set func(s *storage.Settings, v bool)) func(*storage.Settings, string) error {
	return func(s *storage.Settings, value string) error {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		set(s, v)
		return nil
	}
}

func settingNames() []string {
	names := make([]string, 0, len(settingFields))
	for name := range settingFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newSettingsCmd(opts *options) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the stored settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettingsStore(opts)
			if err != nil {
				return err
			}
			s := store.Get()
			knownHosts := s.KnownHostsPath
			if knownHosts == "" {
				knownHosts = "~/.ssh/known_hosts"
			}
			username := s.DefaultUsername
			if username == "" {
				username = "(local user)"
			}

			t := table.New().
				Border(lipgloss.RoundedBorder()).
				Headers("SETTING", "VALUE").
				Row("port", strconv.Itoa(s.DefaultPort)).
				Row("username", username).
				Row("concurrency", strconv.Itoa(s.Concurrency)).
				Row("chunk-size", humanize.IBytes(uint64(s.ChunkSize))).
				Row("show-hidden", strconv.FormatBool(s.ShowHidden)).
				Row("known-hosts", knownHosts).
				Row("agent", strconv.FormatBool(s.UseAgent)).
				Row("watch-local", strconv.FormatBool(s.WatchLocal))
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			fmt.Fprintf(cmd.OutOrStdout(), "Stored in %s\n", store.GetDataDir())
			return nil
		},
	}

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Change one setting (" + strings.Join(settingNames(), ", ") + ")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, ok := settingFields[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q, expected one of %s", args[0], strings.Join(settingNames(), ", "))
			}
			store, err := openSettingsStore(opts)
			if err != nil {
				return err
			}
			s := store.Get()
			if err := set(&s, args[1]); err != nil {
				return err
			}
			if err := store.Update(s); err != nil {
				return fmt.Errorf("failed to save settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s.\n", args[0], args[1])
			return nil
		},
	})

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSettingsStore(opts)
			if err != nil {
				return err
			}
			if err := store.Reset(); err != nil {
				return fmt.Errorf("failed to reset settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings restored to defaults.")
			return nil
		},
	})
	return settingsCmd
}

func openSettingsStore(opts *options) (*storage.SettingsStore, error) {
	dir, err := dataDir(opts)
	if err != nil {
		return nil, err
	}
	return storage.NewSettingsStore(dir)
}
