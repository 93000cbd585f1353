// Package main is the entrypoint for the parkadmin operator CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MacJediWizard/parkadmin/internal/backend"
	"github.com/MacJediWizard/parkadmin/internal/config"
	"github.com/MacJediWizard/parkadmin/internal/httpclient"
	"github.com/MacJediWizard/parkadmin/internal/subscription"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	output     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "parkadmin",
		Short: "Manage parking tenant subscriptions and plans",
		Long: `parkadmin talks to the parking backend's admin API to manage the plan
catalog and tenant subscriptions.

Run 'parkadmin config set-backend <url>' to get started.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("invalid output format %q: use table or json", opts.output)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.parkadmin/config.yml)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log backend activity to stderr")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(opts),
		newPlansCmd(opts),
		newSubscriptionsCmd(opts),
		newHistoryCmd(opts),
		newDashboardCmd(opts),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parkadmin %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func (o *globalOptions) path() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.DefaultConfigPath()
}

func (o *globalOptions) loadConfig() (*config.CLIConfig, string, error) {
	path, err := o.path()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

func (o *globalOptions) logger(w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).Level(level).With().Timestamp().Logger()
}

// engine builds the subscription service against the configured backend and
// loads the catalog and the registry.
func (o *globalOptions) engine(cmd *cobra.Command) (*subscription.Service, error) {
	cfg, _, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsConfigured() {
		return nil, errors.New("backend is not configured; run 'parkadmin config set-backend <url> --token <token>'")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	bc := cfg.Backend()
	httpClient, err := httpclient.ForBackend(bc, "parkadmin-cli/"+Version)
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(backend.Options{
		BaseURL:    bc.URL,
		HTTPClient: httpClient,
		Token:      bc.Token,
		OAuth:      bc.OAuth,
	})
	if err != nil {
		return nil, err
	}

	// The CLI exits right after a command, so replica reconciliation is
	// never awaited.
	svc := subscription.NewService(client, subscription.ServiceConfig{
		Coordinator: subscription.CoordinatorConfig{
			ReconcileDelay: time.Hour,
			UnassignScope:  subscription.GuardGlobal,
		},
	}, o.logger(cmd.ErrOrStderr()))

	if err := svc.Load(cmd.Context()); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}
