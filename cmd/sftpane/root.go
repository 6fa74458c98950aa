package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/quocson95/sftpane/pkg/app"
	"github.com/quocson95/sftpane/pkg/sftp"
	"github.com/quocson95/sftpane/pkg/ssh"
	"github.com/quocson95/sftpane/pkg/storage"
	"github.com/quocson95/sftpane/pkg/transfer"
	"github.com/quocson95/sftpane/pkg/tui"
	"github.com/quocson95/sftpane/pkg/vfs"
)

// Version is overridden at build time.
var Version = "v0.1.0-dev"

type options struct {
	user        string
	port        int
	identity    string
	configDir   string
	concurrency int
	debug       bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "sftpane [flags] [user@]host[:port]",
		Short: "Dual-pane terminal file manager for SFTP",
		Long: `sftpane ` + Version + `
Shows the local filesystem and a remote one side by side and copies files
and directories between them over SFTP.

Credentials are never stored: keys come from the SSH agent, -i or the
default ~/.ssh identities, and passwords are asked for when needed.`,
		Version:      Version,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.user, "user", "u", "", "remote user name")
	flags.IntVarP(&opts.port, "port", "p", 0, "remote SSH port")
	flags.StringVarP(&opts.identity, "identity", "i", "", "private key file")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "simultaneous file transfers, remembered for later sessions")
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "settings and log directory (default ~/.sftpane)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "verbose logging to debug.log")

	rootCmd.AddCommand(newHostsCmd(opts))
	rootCmd.AddCommand(newSettingsCmd(opts))
	return rootCmd
}

func dataDir(opts *options) (string, error) {
	if opts.configDir != "" {
		return opts.configDir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".sftpane"), nil
}

// setupLogging sends log and slog output to debug.log; the terminal
// belongs to the UI.
func setupLogging(dir string, debug bool) (*os.File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	logFile, err := os.OpenFile(
		filepath.Join(dir, "debug.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0600,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.SetOutput(logFile)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return logFile, nil
}

func run(destination string, opts *options) error {
	dir, err := dataDir(opts)
	if err != nil {
		return err
	}
	logFile, err := setupLogging(dir, opts.debug)
	if err != nil {
		return err
	}
	defer logFile.Close()

	settingsStore, err := storage.NewSettingsStore(dir)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	hostStore, err := storage.NewHostStore(dir)
	if err != nil {
		return fmt.Errorf("failed to load hosts: %w", err)
	}
	if opts.concurrency > 0 {
		if err := settingsStore.SetConcurrency(opts.concurrency); err != nil {
			return fmt.Errorf("invalid --concurrency: %w", err)
		}
	}
	settings := settingsStore.Get()

	dest, err := ssh.ParseDestination(destination)
	if err != nil {
		return err
	}
	profile, known := hostStore.Get(dest.Host)

	cfg := &ssh.SSHConfig{
		Host:           dest.Host,
		Port:           firstPositive(opts.port, dest.Port, profile.Port, settings.DefaultPort, ssh.DefaultPort),
		Username:       firstNonEmpty(opts.user, dest.User, profile.Username, settings.DefaultUsername, localUser()),
		PrivateKey:     opts.identity,
		KnownHostsPath: firstNonEmpty(settings.KnownHostsPath, ssh.DefaultKnownHostsPath()),
		UseAgent:       settings.UseAgent,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.Info("connecting", "destination", cfg.ConnectionID())
	sshClient := ssh.NewClient(cfg, &tui.Prompter{})
	if err := sshClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.ConnectionID(), err)
	}
	defer sshClient.Close()

	remote, err := sftp.NewClient(sshClient.GetRawClient())
	if err != nil {
		return err
	}
	defer remote.Close()

	if err := hostStore.Remember(storage.HostProfile{Host: cfg.Host, Port: cfg.Port, Username: cfg.Username}); err != nil {
		log.Printf("[WARN] Failed to remember host %s: %v", cfg.Host, err)
	}

	localDir, err := os.Getwd()
	if err != nil {
		localDir, _ = os.UserHomeDir()
	}
	var remoteDirs []string
	if known && profile.LastRemoteDir != "" {
		remoteDirs = append(remoteDirs, profile.LastRemoteDir)
	}
	if wd, err := remote.Getwd(); err == nil {
		remoteDirs = append(remoteDirs, wd)
	}
	remoteDirs = append(remoteDirs, "/")

	appOpts := app.Options{
		Local:      vfs.NewLocal(),
		Remote:     remote,
		LocalDir:   localDir,
		RemoteDirs: remoteDirs,
		ShowHidden: settings.ShowHidden,
		Transfer: transfer.Options{
			Concurrency: settings.Concurrency,
			ChunkSize:   settings.ChunkSize,
		},
		Alive: func() bool {
			return sshClient.IsConnected() && remote.Alive()
		},
		HiddenToggled: func(show bool) {
			if err := settingsStore.SetShowHidden(show); err != nil {
				log.Printf("[WARN] Failed to save hidden-file setting: %v", err)
			}
		},
	}
	if settings.WatchLocal {
		watcher, err := vfs.NewWatcher(vfs.DefaultDebounce)
		if err != nil {
			log.Printf("[WARN] Local auto-refresh disabled: %v", err)
		} else {
			appOpts.Watcher = watcher
		}
	}

	ctrl := app.New(appOpts)
	defer ctrl.Close()

	p := tea.NewProgram(tui.NewModel(ctrl, cfg.ConnectionID()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("Error running program", "error", err)
		return fmt.Errorf("failed to run program: %w", err)
	}

	if err := ctrl.Err(); err != nil {
		if cause := sshClient.Err(); cause != nil {
			log.Printf("[ERROR] SSH transport closed: %v", cause)
		}
		return err
	}
	if err := hostStore.SetLastRemoteDir(cfg.Host, ctrl.Location(app.RemoteSide)); err != nil {
		log.Printf("[WARN] Failed to save last remote directory: %v", err)
	}
	slog.Info("session closed", "destination", cfg.ConnectionID())
	return nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func localUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
