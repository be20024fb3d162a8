package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"attendance.service/internal/api/handler"
	"attendance.service/internal/api/middleware"
	"attendance.service/internal/core/model"
	"github.com/spf13/cobra"
)

// NewEmergencyCommand creates the emergency command.
func NewEmergencyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "emergency <on|off>",
		Short:     "Switch emergency caching on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			return opts.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/emergency",
				handler.EmergencyRequest{Enabled: enabled})
		},
	}
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or refresh the dataset cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, "/cache", nil)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Drop every cached dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/cache/refresh", nil)
		},
	})
	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var what string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show system, quota or dashboard status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := map[string]string{"system": "/system", "quota": "/quota", "stats": "/stats"}
			path, ok := paths[what]
			if !ok {
				return fmt.Errorf("invalid --show %q: must be system, quota or stats", what)
			}
			return opts.call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, path, nil)
		},
	}
	cmd.Flags().StringVar(&what, "show", "system", "what to show (system|quota|stats)")
	return cmd
}

const reportExample = `  attendctl report daily --date 2025-03-10
  attendctl report employee --name "Somchai Jones" --from 2025-03-01 --to 2025-03-31`

// NewReportCommand creates the report command.
func NewReportCommand(opts *RootOptions) *cobra.Command {
	var p model.ReportParams
	cmd := &cobra.Command{
		Use:       "report <daily|monthly|employee|open>",
		Short:     "Fetch report records",
		Example:   reportExample,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"daily", "monthly", "employee", "open"},
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			for k, v := range map[string]string{"date": p.Date, "month": p.Month, "name": p.Name, "from": p.From, "to": p.To} {
				if v != "" {
					q.Set(k, v)
				}
			}
			path := "/reports/" + url.PathEscape(args[0])
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			return opts.call(cmd.Context(), cmd.OutOrStdout(), http.MethodGet, path, nil)
		},
	}
	cmd.Flags().StringVar(&p.Date, "date", "", "day, YYYY-MM-DD (daily)")
	cmd.Flags().StringVar(&p.Month, "month", "", "month, YYYY-MM (monthly)")
	cmd.Flags().StringVar(&p.Name, "name", "", "employee name (employee)")
	cmd.Flags().StringVar(&p.From, "from", "", "first day, YYYY-MM-DD (employee)")
	cmd.Flags().StringVar(&p.To, "to", "", "last day, YYYY-MM-DD (employee)")
	return cmd
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the missed-checkout sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd.Context(), cmd.OutOrStdout(), http.MethodPost, "/sweep", nil)
		},
	}
}

// NewTokenCommand creates the token command. It works offline.
func NewTokenCommand(opts *RootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token with ADMIN_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := middleware.GenerateAdminToken(subject, opts.Secret, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	// No API call, so skip the root's --api-url check.
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil }
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
