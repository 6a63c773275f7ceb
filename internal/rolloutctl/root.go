// Package rolloutctl implements the rolloutctl command line: fleet rollouts,
// status, verification, probing, desired-state publishing and history.
package rolloutctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelswap/internal/common/logutil"
	"modelswap/internal/config"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	Replicas   []string
	AdminToken string
	LogLevel   string
	Output     string
}

// env bundles what a command needs once flags, file and environment are merged.
type env struct {
	cfg config.Rollout
	log zerolog.Logger
	out io.Writer
	// json selects machine-readable output.
	json bool
}

// Run executes rolloutctl with args. It returns an error instead of exiting,
// enabling reuse from tests.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := buildRootCmd(&Options{Output: "text"}, stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// resolve merges defaults < file < environment < flags, then looks up the
// admin token in the keyring if none was given.
func (o *Options) resolve(cmd *cobra.Command, stdout, stderr io.Writer) (*env, error) {
	var cfg config.Rollout
	if o.ConfigPath != "" {
		c, err := config.LoadRollout(o.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := config.ApplyRolloutEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("replicas") {
		cfg.Replicas = o.Replicas
	}
	if flags.Changed("admin-token") {
		cfg.AdminToken = o.AdminToken
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	cfg.Defaults()
	if cfg.AdminToken == "" {
		tok, err := fnLoadToken()
		if err == nil {
			cfg.AdminToken = tok
		}
	}
	switch strings.ToLower(o.Output) {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown output %q (want text|json)", o.Output)
	}
	return &env{
		cfg:  cfg,
		log:  logutil.New(stderr, cfg.LogLevel, "console"),
		out:  stdout,
		json: strings.EqualFold(o.Output, "json"),
	}, nil
}

func buildRootCmd(opts *Options, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "rolloutctl",
		Short:         "Roll artifacts out across modelswap replicas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", os.Getenv("ROLLOUT_CONFIG"), "Path to a .yaml/.json/.toml rollout config")
	pf.StringSliceVar(&opts.Replicas, "replicas", nil, "Replica base URLs (comma-separated)")
	pf.StringVar(&opts.AdminToken, "admin-token", "", "Admin bearer token (defaults to ROLLOUT_ADMIN_TOKEN or the keyring)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVarP(&opts.Output, "output", "o", opts.Output, "Output format: text|json")

	envFor := func(cmd *cobra.Command) (*env, error) { return opts.resolve(cmd, stdout, stderr) }

	root.AddCommand(
		newRolloutCmd(envFor),
		newStatusCmd(envFor),
		newVerifyCmd(envFor),
		newProbeCmd(envFor),
		newPublishCmd(envFor),
		newHistoryCmd(envFor),
		newLoginCmd(stdout),
		newLogoutCmd(stdout),
	)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(stdout) }})
	root.AddCommand(completionCmd)

	return root
}
