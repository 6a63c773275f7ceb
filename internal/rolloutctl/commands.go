package rolloutctl

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"modelswap/internal/desired"
	"modelswap/internal/history"
	"modelswap/internal/rollout"
	"modelswap/pkg/types"
)

type envFunc func(cmd *cobra.Command) (*env, error)

// errRolloutFailed makes the process exit non-zero after the outcome has
// been printed.
var errRolloutFailed = errors.New("rollout failed")

func newRolloutCmd(envFor envFunc) *cobra.Command {
	var (
		timeout time.Duration
		publish bool
	)
	cmd := &cobra.Command{
		Use:     "rollout <artifact>",
		Short:   "Update every replica to an artifact and wait until all serve it",
		Example: "  rolloutctl rollout qwen2.5-7b-q4.gguf --replicas http://r1:8080,http://r2:8080",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor(cmd)
			if err != nil {
				return err
			}
			if err := e.cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			artifact := strings.TrimSpace(args[0])

			if publish {
				if err := publishDesired(cmd, e, artifact); err != nil {
					return err
				}
			}

			var rec rollout.Recorder
			if e.cfg.HistoryDB != "" {
				db, err := fnOpenHistory(e.cfg.HistoryDB)
				if err != nil {
					return err
				}
				defer db.Close()
				rec = &history.Repo{DB: db}
			}
			o := newOrchestrator(e, rec).Rollout(ctx, artifact, timeout)
			if err := printOutcome(e, o); err != nil {
				return err
			}
			if !o.Success {
				return fmt.Errorf("%w: %s", errRolloutFailed, o.Reason)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall rollout timeout (defaults to the configured timeout)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Also write the artifact to the desired-state store first")
	return cmd
}

func newStatusCmd(envFor envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every replica's status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor(cmd)
			if err != nil {
				return err
			}
			if err := e.cfg.Validate(); err != nil {
				return err
			}
			reports := newOrchestrator(e, nil).StatusAll(cmd.Context())
			return printReports(e, reports)
		},
	}
}

func newVerifyCmd(envFor envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Check that every replica serves an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor(cmd)
			if err != nil {
				return err
			}
			if err := e.cfg.Validate(); err != nil {
				return err
			}
			ok, reports := newOrchestrator(e, nil).Verify(cmd.Context(), args[0])
			if err := printReports(e, reports); err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("not every replica serves %s", args[0])
			}
			return nil
		},
	}
}

func newProbeCmd(envFor envFunc) *cobra.Command {
	var maxTokens int
	cmd := &cobra.Command{
		Use:   "probe <input>",
		Short: "Send one generate request to every replica and show which version answered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor(cmd)
			if err != nil {
				return err
			}
			if err := e.cfg.Validate(); err != nil {
				return err
			}
			res := newOrchestrator(e, nil).ProbeAll(cmd.Context(), types.GenerateRequest{Input: args[0], MaxTokens: maxTokens})
			if e.json {
				return writeJSON(e.out, res)
			}
			tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REPLICA\tVERSION\tARTIFACT\tOUTPUT")
			for _, r := range res {
				if r.Error != "" {
					fmt.Fprintf(tw, "%s\t-\t-\terror: %s\n", r.Replica, r.Error)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Replica, r.Version, r.ArtifactID, oneLine(r.Output, 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 16, "Tokens to generate per replica")
	return cmd
}

func newPublishCmd(envFor envFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <artifact>",
		Short: "Write the desired artifact to the shared desired-state store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor(cmd)
			if err != nil {
				return err
			}
			return publishDesired(cmd, e, strings.TrimSpace(args[0]))
		},
	}
}

func publishDesired(cmd *cobra.Command, e *env, artifact string) error {
	if artifact == "" {
		return errors.New("artifact id is empty")
	}
	c := e.cfg.Desired
	store, err := fnOpenStore(cmd.Context(), c)
	if errors.Is(err, desired.ErrDisabled) {
		return errors.New("no desired-state backend configured (desired.backend)")
	}
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Publish(cmd.Context(), artifact); err != nil {
		return fmt.Errorf("publish desired state: %w", err)
	}
	e.log.Info().Str("artifact", artifact).Str("backend", c.Backend).Msg("desired state published")
	return nil
}

func newHistoryCmd(envFor envFunc) *cobra.Command {
	var (
		limit int
		id    string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded rollouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := envFor(cmd)
			if err != nil {
				return err
			}
			if e.cfg.HistoryDB == "" {
				return errors.New("no history database configured (history_db)")
			}
			db, err := fnOpenHistory(e.cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer db.Close()
			return printHistory(cmd, e, db, id, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "Number of rollouts to show")
	cmd.Flags().StringVar(&id, "id", "", "Show one rollout in full")
	return cmd
}

func printHistory(cmd *cobra.Command, e *env, db *sql.DB, id string, limit int) error {
	repo := &history.Repo{DB: db}
	if id != "" {
		o, err := repo.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printOutcome(e, o)
	}
	list, err := repo.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if e.json {
		return writeJSON(e.out, list)
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARTIFACT\tRESULT\tSTARTED\tTOOK")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.ArtifactID, o.Reason,
			o.StartedAt.Local().Format(time.RFC3339), o.Duration().Round(time.Millisecond))
	}
	return tw.Flush()
}

func newLoginCmd(stdout io.Writer) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the admin token in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(stdout, "Admin token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("empty token")
			}
			if err := keyring.Set(keyringService, keyringUser, token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			fmt.Fprintln(stdout, "token stored")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token to store (prompted when omitted)")
	return cmd
}

func newLogoutCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the admin token from the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := keyring.Delete(keyringService, keyringUser)
			if err != nil && !errors.Is(err, keyring.ErrNotFound) {
				return err
			}
			fmt.Fprintln(stdout, "token removed")
			return nil
		},
	}
}
