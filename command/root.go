// Package command implements the forum-sync command line.
package command

import (
	"fmt"
	"io"
	"os"

	"forum-sync/config"
	"forum-sync/models"
	"forum-sync/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitRunFailed   = 1
	ExitConfigError = 2
)

var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configFile string
	logLevel   string
}

// NewRootCmd builds the command tree. Without a subcommand it performs one
// sync, like "forum-sync sync".
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "forum-sync",
		Short: "Sync a Discord forum channel into a JSON snapshot",
		Long: `forum-sync reads the threads of a Discord forum channel over the REST API,
resolves each thread's opening post and replies, and writes them as a sorted
JSON snapshot for the feed renderer.

Configuration comes from the environment, a .env file and config.yaml.
DISCORD_TOKEN and FORUM_CHANNEL_ID are required.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a config file (default ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	for _, newCmd := range allCommands {
		root.AddCommand(newCmd(opts))
	}
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:], os.Stderr)
}

func execute(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	if config.IsConfigurationError(err) {
		return ExitConfigError
	}
	return ExitRunFailed
}

// load reads the configuration and builds the logger.
func (o *options) load() (*models.PipelineConfig, zerolog.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	log, err := utils.NewLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
