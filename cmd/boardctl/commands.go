package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/pscheid92/databoard/internal/domain"
	"github.com/pscheid92/databoard/internal/logstore"
	"github.com/pscheid92/databoard/internal/platform/correlation"
)

type openFunc func(ctx context.Context) (*logstore.Store, func(), error)

func newRootCmd(open openFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "boardctl",
		Short:        "Inspect and repair the stored board log",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(dumpCmd(open))
	rootCmd.AddCommand(verifyCmd(open))
	rootCmd.AddCommand(resetCmd(open))
	rootCmd.AddCommand(statsCmd(open))

	return rootCmd
}

// withStore opens the store for the duration of fn.
func withStore(cmd *cobra.Command, open openFunc, fn func(ctx context.Context, s *logstore.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = correlation.Ensure(ctx)

	s, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(ctx, s)
}

func dumpCmd(open openFunc) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the stored log as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, open, func(ctx context.Context, s *logstore.Store) error {
				if raw {
					return dumpRaw(ctx, cmd, s)
				}
				log, err := s.Load(ctx)
				if errors.Is(err, domain.ErrCorruptLog) {
					return fmt.Errorf("%w (use 'boardctl dump --raw' to see the stored bytes)", err)
				}
				if err != nil {
					return err
				}
				data, err := logstore.Encode(log)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the stored document as is, without parsing it")
	return cmd
}

// dumpRaw prints the stored bytes unchanged so a corrupt log can be inspected.
func dumpRaw(ctx context.Context, cmd *cobra.Command, s *logstore.Store) error {
	data, err := s.Raw(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "no log stored yet (%s backend)\n", s.Backend())
		return nil
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func verifyCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the stored log can be loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, open, func(ctx context.Context, s *logstore.Store) error {
				log, err := s.Load(ctx)
				if errors.Is(err, domain.ErrCorruptLog) {
					return fmt.Errorf("%s backend: %w (run 'boardctl reset --yes' to start over)", s.Backend(), err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %d entries (%s backend)\n", len(log), s.Backend())
				return nil
			})
		},
	}
}

func resetCmd(open openFunc) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the stored log with an empty one",
		Long: `Replace the stored log with an empty one. All entries are lost. This also
repairs a log that no longer parses.

Run it while the server is stopped. Writes are serialized with a running
server, but connected clients are not told about the reset and keep showing
the old entries until they reconnect.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to reset without --yes")
			}
			return withStore(cmd, open, func(ctx context.Context, s *logstore.Store) error {
				if _, err := s.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "log reset (%s backend)\n", s.Backend())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm that all entries should be deleted")
	return cmd
}

// categoryOrder fixes the stats output order.
var categoryOrder = []domain.Category{
	domain.CategoryTest,
	domain.CategoryRepetitive,
	domain.CategoryMinimal,
	domain.CategoryExpressive,
	domain.CategoryNeutral,
}

type stats struct {
	entries      int
	connections  int
	categories   map[domain.Category]int
	nonNumeric   int
	avgSentiment float64
}

func computeStats(log domain.Log) stats {
	st := stats{entries: len(log), categories: make(map[domain.Category]int)}
	conns := make(map[string]struct{})
	var sentimentSum float64

	for _, e := range log {
		st.categories[e.Analysis.Category]++
		conns[e.ID] = struct{}{}
		sentimentSum += e.Analysis.Sentiment
		for _, n := range []domain.Number{e.Params.Density, e.Params.Repetition, e.Params.Distortion} {
			if !n.Valid() {
				st.nonNumeric++
			}
		}
	}

	st.connections = len(conns)
	if st.entries > 0 {
		st.avgSentiment = math.Round(sentimentSum/float64(st.entries)*1000) / 1000
	}
	return st
}

func statsCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the stored log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, open, func(ctx context.Context, s *logstore.Store) error {
				log, err := s.Load(ctx)
				if err != nil {
					return err
				}

				st := computeStats(log)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "entries:            %d\n", st.entries)
				fmt.Fprintf(out, "connections:        %d\n", st.connections)
				fmt.Fprintf(out, "non-numeric params: %d\n", st.nonNumeric)
				fmt.Fprintf(out, "avg sentiment:      %.3f\n", st.avgSentiment)
				for _, c := range categoryOrder {
					fmt.Fprintf(out, "  %-11s %d\n", c, st.categories[c])
				}
				return nil
			})
		},
	}
}
