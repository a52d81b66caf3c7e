// Package main provides attendctl, the operator CLI for inspecting the
// attendance store.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smartattend/internal/attendance"
	"smartattend/internal/config"
	"smartattend/internal/registry"
	"smartattend/internal/report"
	"smartattend/internal/roster"
	"smartattend/internal/store"
)

func main() {
	if err := rootCmd(config.Load(), store.Open).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type opener func(ctx context.Context, opts store.Options) (*store.Backend, error)

type app struct {
	cfg  config.App
	open opener
}

// withStore opens the configured backend for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(be *store.Backend) error) error {
	be, err := a.open(ctx, store.Options{
		Backend:     a.cfg.StoreBackend,
		DatabaseURL: a.cfg.DatabaseURL,
		RedisAddr:   a.cfg.RedisAddr,
		RedisPrefix: a.cfg.RedisPrefix,
	})
	if err != nil {
		return err
	}
	defer be.Close()
	return fn(be)
}

func rootCmd(cfg config.App, open opener) *cobra.Command {
	a := &app{cfg: cfg, open: open}

	cmd := &cobra.Command{
		Use:           "attendctl",
		Short:         "Inspect attendance sessions and absences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.cfg.StoreBackend, "store", cfg.StoreBackend, "Store backend (memory, redis, postgres)")
	cmd.PersistentFlags().StringVar(&a.cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string")
	cmd.PersistentFlags().StringVar(&a.cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address")

	cmd.AddCommand(
		a.summaryCmd(),
		a.lastSessionCmd(),
		a.absencesCmd(),
		rosterCmd(),
		classLabelCmd(),
	)
	return cmd
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the most recently confirmed session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(be *store.Backend) error {
				s, ok := attendance.NewSummaryCache(be).Last(cmd.Context())
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "no session confirmed yet")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d absent at %s\n", s.ClassID, s.AbsentCount, s.Time)
				return nil
			})
		},
	}
}

func (a *app) lastSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last-session <class>",
		Short: "List the absentees of the last confirmed session of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classID := args[0]
			return a.withStore(cmd.Context(), func(be *store.Backend) error {
				ctx := cmd.Context()
				reg := registry.New(be, registry.WithRetention(a.cfg.Retention))
				ts, ok := reg.LastSessionTimestamp(ctx, classID)
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintf(out, "%s: no session in the last %s\n", classID, a.cfg.Retention)
					return nil
				}
				names := roster.Names(roster.RosterFor(classID))
				absent := reg.AbsenteesAt(ctx, classID, ts)
				fmt.Fprintf(out, "%s: session at %s, %d absent\n", classID, time.UnixMilli(ts).UTC().Format(time.RFC3339), len(absent))
				for _, id := range absent {
					fmt.Fprintf(out, "  %s\t%s\n", id, names[id])
				}
				return nil
			})
		},
	}
}

func (a *app) absencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "absences",
		Short: "Work with the absence log",
	}
	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export every retained absence to a spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(be *store.Backend) error {
				entries := registry.New(be).AllAbsences(cmd.Context())
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				if err := report.WriteAbsenceWorkbook(f, entries); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d absences to %s\n", len(entries), outPath)
				return nil
			})
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "absences.xlsx", "Output file")
	cmd.AddCommand(export)
	return cmd
}

func rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster <class>",
		Short: "Print the student roster of a class",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, s := range roster.RosterFor(args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, s.Name)
			}
		},
	}
}

func classLabelCmd() *cobra.Command {
	var level, section, number string
	cmd := &cobra.Command{
		Use:   "class-label",
		Short: "Build a class identifier from catalog values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			label, err := roster.ClassLabel(level, section, number)
			if err != nil {
				return fmt.Errorf("%w (levels: %s; sections: %s)", err,
					strings.Join(roster.Levels, ", "), strings.Join(roster.Sections, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Level")
	cmd.Flags().StringVar(&section, "section", "", "Section (ignored for the first level)")
	cmd.Flags().StringVar(&number, "number", "", "Class number")
	return cmd
}
