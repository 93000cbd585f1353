package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigSetBackendCmd(opts),
	)

	return cmd
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file: %s\n\n", path)

			if !cfg.IsConfigured() {
				fmt.Fprintln(out, "Backend is not configured. Run 'parkadmin config set-backend <url>' to set up.")
				return nil
			}

			fmt.Fprintf(out, "Backend URL: %s\n", cfg.BackendURL)
			if cfg.APIToken != "" {
				fmt.Fprintf(out, "API token:   %s\n", maskSecret(cfg.APIToken))
			}
			if cfg.OAuth.Enabled() {
				fmt.Fprintf(out, "OAuth:       %s (client %s)\n", cfg.OAuth.TokenURL, cfg.OAuth.ClientID)
			}
			fmt.Fprintf(out, "Timeout:     %s\n", cfg.Backend().Timeout)
			if cfg.PageSize > 0 {
				fmt.Fprintf(out, "Page size:   %d\n", cfg.PageSize)
			}
			return nil
		},
	}
}

func newConfigSetBackendCmd(opts *globalOptions) *cobra.Command {
	var (
		token        string
		tokenURL     string
		clientID     string
		clientSecret string
		scopes       []string
		timeout      time.Duration
		pageSize     int
	)

	cmd := &cobra.Command{
		Use:   "set-backend <url>",
		Short: "Set the backend URL and credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid backend URL: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return fmt.Errorf("backend URL must use http or https scheme")
			}

			cfg, path, err := opts.loadConfig()
			if err != nil {
				return err
			}

			cfg.BackendURL = strings.TrimSuffix(args[0], "/")
			flags := cmd.Flags()
			if flags.Changed("token") {
				cfg.APIToken = token
			}
			if flags.Changed("oauth-token-url") {
				cfg.OAuth.TokenURL = tokenURL
			}
			if flags.Changed("client-id") {
				cfg.OAuth.ClientID = clientID
			}
			if flags.Changed("client-secret") {
				cfg.OAuth.ClientSecret = clientSecret
			}
			if flags.Changed("scopes") {
				cfg.OAuth.Scopes = scopes
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout.String()
			}
			if flags.Changed("page-size") {
				cfg.PageSize = pageSize
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backend URL set to: %s\n", cfg.BackendURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "static bearer token")
	cmd.Flags().StringVar(&tokenURL, "oauth-token-url", "", "OAuth2 token endpoint for client credentials")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "OAuth2 scopes")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "backend request timeout")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "default page size for list commands")

	return cmd
}

// maskSecret returns a masked version of a credential for display.
func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
