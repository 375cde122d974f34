package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-assign"
	"github.com/goliatone/go-assign/internal/watch"
	"github.com/goliatone/go-assign/pkg/activity"
)

type rootOptions struct {
	configPath  string
	definitions string
	consumers   string
	actor       string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	var a *app

	root := &cobra.Command{
		Use:           "assign",
		Short:         "Inspect candidate definitions and manage assignment preferences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if opts.actor != "" {
				cmd.SetContext(activity.WithActor(cmd.Context(), opts.actor))
			}
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
	}
	root.SetContext(context.Background())

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "assign.yaml", "Config file")
	flags.StringVarP(&opts.definitions, "definitions", "d", "", "Definitions directory (overrides config)")
	flags.StringVar(&opts.consumers, "consumers", "", "Consumers file (overrides config)")
	flags.StringVar(&opts.actor, "actor", "", "Actor recorded on activity events")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	get := func() *app { return a }
	root.AddCommand(
		newListCmd(get),
		newCheckCmd(get),
		newConsumersCmd(get),
		newFilterCmd(get),
		newResolveCmd(get),
		newPreferCmd(get),
		newPreferAllCmd(get),
		newPinCmd(get),
		newOverrideCmd(get),
		newPolicyCmd(get),
		newChanceCmd(get),
		newResetCmd(get),
		newWatchCmd(get),
	)
	return root
}

func newListCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded candidate definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := get().service
			svc.EnsureFresh(cmd.Context())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTITY\tSOURCE\tTAGS")
			for _, candidate := range svc.GetAll() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", candidate.Identity, candidate.SourceFile, strings.Join(candidate.Tags, ","))
			}
			return w.Flush()
		},
	}
}

func newCheckCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load definitions and print the rejected files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := get().service
			svc.EnsureFresh(cmd.Context())
			diagnostics := svc.Store().Diagnostics()
			for _, diag := range diagnostics {
				fmt.Fprintln(cmd.OutOrStdout(), diag.Error())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d loaded, %d rejected\n", len(svc.GetAll()), len(diagnostics))
			return nil
		},
	}
}

func newConsumersCmd(get func() *app) *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "consumers",
		Short: "List consumers with their preference and compatible count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := get().service
			consumers, err := svc.MatchConsumers(cmd.Context(), where)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IDENTITY\tLABEL\tPREFERENCE\tCOMPATIBLE\tOVERRIDE")
			for _, consumer := range consumers {
				entry, err := svc.Preference(cmd.Context(), consumer.Identity)
				if err != nil {
					return err
				}
				result := svc.Filter(cmd.Context(), consumer)
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", consumer.Identity, consumer.Name(), entry, len(result.Candidates), consumer.IgnoreOverride)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "Selector expression, e.g. 'compatible_count > 1'")
	return cmd
}

func newFilterCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "filter <consumer>",
		Short: "Show the compatible candidates for a consumer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			consumer, err := a.consumer(args[0])
			if err != nil {
				return err
			}
			result := a.service.Filter(cmd.Context(), consumer)
			for _, candidate := range result.Candidates {
				fmt.Fprintln(cmd.OutOrStdout(), candidate.Identity)
			}
			if result.Explanation != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", result.Explanation)
			}
			return nil
		},
	}
}

func newResolveCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <consumer>...",
		Short: "Resolve assignments for one or more consumers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			for _, identity := range args {
				consumer, err := a.consumer(identity)
				if err != nil {
					return err
				}
				outcome := a.service.Resolve(cmd.Context(), consumer)
				if outcome.Assigned() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tassign\t%s\t%s\n", identity, outcome.Candidate.Identity, outcome.Reason)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tdefer\t-\t%s\n", identity, outcome.Reason)
			}
			return nil
		},
	}
}

func newPreferCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prefer <consumer> <entry>",
		Short: "Set a consumer preference (Vanilla, RandomSaved, PercentSave[:p], Global or a|b|c)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := assign.ParsePreference(args[1])
			if err != nil {
				return err
			}
			return get().service.SetPreference(cmd.Context(), args[0], entry)
		},
	}
}

func newPreferAllCmd(get func() *app) *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "prefer-all <entry>",
		Short: "Apply a preference to every consumer with compatible candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := assign.ParsePreference(args[0])
			if err != nil {
				return err
			}
			n, err := get().service.ApplyToAll(cmd.Context(), entry, where)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d consumers\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "Selector expression limiting the consumers")
	return cmd
}

func newPinCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <consumer> <candidate>",
		Short: "Toggle a candidate in a consumer's pinned set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := get().service.TogglePinned(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), entry)
			return nil
		},
	}
}

func newOverrideCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "override <consumer> on|off",
		Short: "Ignore or restore a consumer's fixed assignment and required tags",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ignore, err := parseSwitch(args[1])
			if err != nil {
				return err
			}
			return get().service.SetIgnoreOverride(cmd.Context(), args[0], ignore)
		},
	}
}

func newPolicyCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "policy <entry>",
		Short: "Set the default policy (Vanilla, RandomSaved or PercentSave[:p])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := assign.ParsePreference(args[0])
			if err != nil {
				return err
			}
			return get().service.SetDefaultPolicy(cmd.Context(), entry)
		},
	}
}

func newChanceCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chance <p>",
		Short: "Set the probability used by PercentSave entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("parse chance: %w", err)
			}
			return get().service.SetPercentChance(cmd.Context(), p)
		},
	}
}

func newResetCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear every preference and override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := get().service
			settings, err := svc.Settings(cmd.Context())
			if err != nil {
				return err
			}
			if !settings.CanReset() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to reset")
				return nil
			}
			return svc.ClearAllPreferences(cmd.Context())
		},
	}
}

func newWatchCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload definitions whenever the directory changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.service.EnsureFresh(ctx)
			w := &watch.Watcher{
				Dir:        a.cfg.DefinitionsDir,
				Extensions: assign.DefaultExtensions,
				Logger:     a.logger.Named("watch"),
				// Removing an older file leaves the newest mtime unchanged, so
				// every event forces a reparse.
				OnChange: func(ctx context.Context) {
					a.service.Invalidate()
					if a.service.EnsureFresh(ctx) {
						fmt.Fprintf(cmd.OutOrStdout(), "reloaded %d definitions\n", len(a.service.GetAll()))
					}
				},
			}
			return w.Run(ctx)
		},
	}
}
