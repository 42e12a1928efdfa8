package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/negwm/negwm/internal/config"
	"github.com/negwm/negwm/internal/control"
	"github.com/negwm/negwm/internal/control/client"
	"github.com/negwm/negwm/internal/ui"
)

type options struct {
	socket  string
	timeout time.Duration
	noColor bool
}

var verbUsage = map[control.Verb]struct{ args, short string }{
	control.VerbToggle:       {"<tag>", "show the tag's windows, or hide them when visible"},
	control.VerbShow:         {"<tag>", "show the tag's windows"},
	control.VerbHideCurrent:  {"", "hide the focused scratchpad window"},
	control.VerbNext:         {"[tag]", "rotate to the next window of a tag"},
	control.VerbSubtag:       {"<tag> <subtag>", "show or spawn the windows of a subtag"},
	control.VerbDialog:       {"", "show the transient windows"},
	control.VerbGeomSave:     {"", "persist the geometry of the focused scratchpad window"},
	control.VerbGeomDump:     {"", "persist the geometry of every visible scratchpad window"},
	control.VerbGeomRestore:  {"", "reapply the configured geometry"},
	control.VerbGeomAutosave: {"", "toggle saving geometry on hide"},
	control.VerbAddProp:      {"<tag> <selector>", "add a selector to a tag"},
	control.VerbDelProp:      {"<tag> <selector>", "remove a selector from a tag"},
	control.VerbReload:       {"", "reload this module from the config file"},
	control.VerbList:         {"", "show tags and their windows"},
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "negctl",
		Short:         "Control the negwm daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.noColor {
				ui.SetEnabled(false)
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.socket, "socket", "", "path to the negwm control socket")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Second, "control request timeout")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newModuleCmd(opts, config.ModuleScratchpad, "Manage scratchpad tags"),
		newModuleCmd(opts, config.ModuleCircle, "Cycle through tagged windows"),
		newReloadCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newCheckCmd(),
	)
	return root
}

func (o *options) client() (*client.Client, error) {
	cli, err := client.New(o.socket)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return cli, nil
}

func (o *options) context(parent context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(parent, o.timeout)
	}
	return context.WithCancel(parent)
}

func newModuleCmd(opts *options, module, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   module + " <verb>",
		Short: short,
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return fmt.Errorf("unknown verb %q for %s", args[0], module)
		},
	}
	for _, spec := range control.ModuleVerbs(module) {
		cmd.AddCommand(newVerbCmd(opts, module, spec))
	}
	return cmd
}

func newVerbCmd(opts *options, module string, spec control.VerbSpec) *cobra.Command {
	usage := verbUsage[spec.Verb]
	use := spec.Verb.String()
	if usage.args != "" {
		use += " " + usage.args
	}
	return &cobra.Command{
		Use:   use,
		Short: usage.short,
		Args:  cobra.RangeArgs(spec.Min, spec.Max),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()
			switch spec.Verb {
			case control.VerbList:
				info, err := cli.List(ctx, module)
				if err != nil {
					return err
				}
				ui.RenderModule(out, info)
				return nil
			case control.VerbGeomAutosave:
				var state struct {
					Autosave bool `json:"autosave"`
				}
				if err := cli.Send(ctx, module, spec.Verb.String(), args, &state); err != nil {
					return err
				}
				label := ui.Yellow("off")
				if state.Autosave {
					label = ui.Green("on")
				}
				fmt.Fprintf(out, "geometry autosave %s\n", label)
				return nil
			}
			return cli.Send(ctx, module, spec.Verb.String(), args, nil)
		},
	}
}

func newReloadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reload [module]",
		Short: "Reload the configuration of every module, or of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd.Context())
			defer cancel()
			module := ""
			if len(args) == 1 {
				module = args[0]
			}
			if err := cli.Reload(ctx, module); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s config reloaded\n", ui.Green("✓"))
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show running modules, verb counters and recent jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := opts.context(cmd.Context())
			defer cancel()
			report, err := cli.Status(ctx)
			if err != nil {
				return err
			}
			ui.RenderStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	var refresh time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Redraw the daemon state until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cli, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			dash := ui.NewDashboard(cli, cmd.OutOrStdout())
			dash.Refresh = refresh
			if err := dash.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 500*time.Millisecond, "redraw interval")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				return fmt.Errorf("check requires --config <path>")
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s configuration OK (%d scratchpad, %d circle tags)\n",
				ui.Green("✓"), len(cfg.Scratchpad), len(cfg.Circle))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "path to configuration file")
	return cmd
}
