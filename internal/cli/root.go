package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"attendance.service/internal/api/middleware"
	"attendance.service/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL  string
	Token   string
	Secret  string
	Timeout time.Duration

	client *http.Client
}

// NewRootCommand creates the root command of the operator CLI. Flag
// defaults come from cfg.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{Secret: cfg.AdminJWTSecret}

	cmd := &cobra.Command{
		Use:   "attendctl",
		Short: "Operate a running attendance API",
		Long: `Operate a running attendance API.

Every command calls an admin route. The bearer token is taken from --token
(API_TOKEN); when none is set and ADMIN_JWT_SECRET is available, a
short-lived token is minted locally.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.APIURL == "" {
				return fmt.Errorf("--api-url is required")
			}
			opts.client = &http.Client{Timeout: opts.Timeout}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", cfg.APIURL, "base URL of the attendance API")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", cfg.APIToken, "admin bearer token")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")

	// Add subcommands
	cmd.AddCommand(NewEmergencyCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) token() (string, error) {
	if o.Token != "" {
		return o.Token, nil
	}
	if o.Secret == "" {
		return "", fmt.Errorf("no --token given and ADMIN_JWT_SECRET is not set")
	}
	return middleware.GenerateAdminToken("attendctl", o.Secret, 5*time.Minute)
}

// call sends an admin request and copies the indented JSON response to out.
func (o *RootOptions) call(ctx context.Context, out io.Writer, method, path string, body any) error {
	token, err := o.token()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	url := strings.TrimRight(o.APIURL, "/") + "/api/v1/admin" + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(raw)))
	}
	_, err = fmt.Fprintln(out, strings.TrimSpace(string(raw)))
	return err
}
