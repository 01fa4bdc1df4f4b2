package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/christian-lee/practicetime/internal/config"
	"github.com/christian-lee/practicetime/internal/session"
	"github.com/christian-lee/practicetime/internal/store"
)

// openStore loads the config, falling back to defaults when the file is
// missing, and opens the store it names.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config not found, using defaults", "path", cfgPath)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded practice sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.RecentSessions(limit)
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			if len(records) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no practice sessions recorded")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tDURATION\tTOTAL\tIDLE\tSTOP")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					r.StoppedAt.Sub(r.StartedAt).Round(time.Second),
					session.FormatClock(r.Total),
					session.FormatClock(r.Idle),
					r.Reason,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of sessions to list")
	return cmd
}

func newGrantCmd() *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Allow microphone recording",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if revoke {
				if err := st.Revoke(); err != nil {
					return fmt.Errorf("revoke consent: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "microphone permission revoked")
				return err
			}
			if err := st.Grant(); err != nil {
				return fmt.Errorf("grant consent: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "microphone permission granted")
			return err
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "withdraw a previous grant")
	return cmd
}
