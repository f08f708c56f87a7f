package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raczniakservices/HVAC/internal/dashboard"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// openSession builds a session over the API and loads the current list.
func openSession(ctx context.Context, flags *globalFlags, confirm dashboard.Confirmer, view dashboard.View, opts dashboard.Options) (*dashboard.Session, error) {
	log, err := flags.logger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	s := dashboard.NewSession(flags.client(), view, confirm, opts, log)
	if err := s.Refresh(ctx, true); err != nil {
		return nil, err
	}
	return s, nil
}

// openLead opens a session that is sure to hold lead id, even one older than
// the newest page.
func openLead(ctx context.Context, flags *globalFlags, confirm dashboard.Confirmer, view dashboard.View, id int64) (*dashboard.Session, error) {
	s, err := openSession(ctx, flags, confirm, view, dashboard.Options{Limit: repository.MaxListLimit})
	if err != nil {
		return nil, err
	}
	if err := s.Track(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var showSimulator bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the lead list and keep it refreshed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := flags.client().Config(ctx)
			if err != nil {
				return fmt.Errorf("load dashboard config: %w", err)
			}
			opts := dashboard.OptionsFromConfig(cfg)
			if showSimulator {
				opts.HideSimulator = false
			}

			log, err := flags.logger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			view := newTableView(cmd.OutOrStdout(), true)
			s := dashboard.NewSession(flags.client(), view, nil, opts, log)
			pauseWhileStopped(ctx, s, log)

			if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSimulator, "show-simulator", false, "Include simulator rows")
	return cmd
}

func listCmd(flags *globalFlags) *cobra.Command {
	var (
		limit         int
		showSimulator bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the newest leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			view := newTableView(cmd.OutOrStdout(), false)
			_, err := openSession(cmd.Context(), flags, nil, view, dashboard.Options{
				Limit:         limit,
				HideSimulator: !showSimulator,
			})
			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", repository.DefaultListLimit, "Rows to fetch (max 200)")
	cmd.Flags().BoolVar(&showSimulator, "show-simulator", false, "Include simulator rows")
	return cmd
}

// optionalArg turns "-" or an empty string into a clear.
func optionalArg(v string) *string {
	if v == "" || v == "-" {
		return nil
	}
	return &v
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid lead id %q", raw)
	}
	return id, nil
}

type mutation func(ctx context.Context, s *dashboard.Session, id int64, value *string) error

func mutationCmd(flags *globalFlags, use, short string, apply mutation) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var value *string
			if len(args) == 2 {
				value = optionalArg(args[1])
			}

			view := newLineView(cmd.OutOrStdout(), id)
			s, err := openLead(cmd.Context(), flags, nil, view, id)
			if err != nil {
				return err
			}
			if err := apply(cmd.Context(), s, id, value); err != nil {
				return err
			}
			view.printFinal(cmd.OutOrStdout(), s.Snapshot())
			return nil
		},
	}
}

func ownerCmd(flags *globalFlags) *cobra.Command {
	return mutationCmd(flags, "owner <id> [name|-]", "Assign or clear a lead's owner",
		func(ctx context.Context, s *dashboard.Session, id int64, v *string) error {
			return s.SetOwner(ctx, id, v)
		})
}

func nextStepCmd(flags *globalFlags) *cobra.Command {
	return mutationCmd(flags, "next-step <id> [step|-]", "Set or clear a lead's next step",
		func(ctx context.Context, s *dashboard.Session, id int64, v *string) error {
			return s.SetNextStep(ctx, id, v)
		})
}

func resultCmd(flags *globalFlags) *cobra.Command {
	return mutationCmd(flags, "result <id> [outcome|-]", "Set or clear a lead's outcome",
		func(ctx context.Context, s *dashboard.Session, id int64, v *string) error {
			return s.SetResult(ctx, id, v)
		})
}

func deleteCmd(flags *globalFlags) *cobra.Command {
	var confirmUnresolved bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			confirm := newPromptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout(), confirmUnresolved)
			s, err := openLead(cmd.Context(), flags, confirm, nil, id)
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), id); err != nil {
				if errors.Is(err, dashboard.ErrDeclined) {
					fmt.Fprintln(cmd.OutOrStdout(), "Kept.")
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted lead %d.\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirmUnresolved, "confirm-unresolved", false, "Delete without asking even when the lead has no result")
	return cmd
}

func clearCmd(flags *globalFlags) *cobra.Command {
	var confirmUnresolved bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm := newPromptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout(), confirmUnresolved)
			s, err := openSession(cmd.Context(), flags, confirm, nil, dashboard.Options{})
			if err != nil {
				return err
			}
			removed, err := s.ClearAll(cmd.Context())
			if errors.Is(err, dashboard.ErrDeclined) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d leads.\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirmUnresolved, "confirm-unresolved", false, "Delete unresolved leads without asking")
	return cmd
}

func summaryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print lead counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			summary, err := flags.client().Summary(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary.Summary)
			return nil
		},
	}
}
