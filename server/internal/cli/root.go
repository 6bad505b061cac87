// Package cli implements twinctl, the operator command line for a motortwin
// server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/motortwin/motortwin/pkg/discovery"
)

const defaultServer = "http://localhost:5001"

// options are the persistent flags shared by every subcommand.
type options struct {
	server    string
	apiKeyEnv string
	header    string
	discover  bool
	verbose   bool
	timeout   time.Duration
}

// NewRootCmd builds the twinctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "twinctl",
		Short: "Inspect and drive a motortwin server",
		Long: `twinctl queries a motortwin server: recent readings, health, forecasts
and what-if simulations.

The server is taken from --server, the TWIN_SERVER environment variable, or
found over mDNS with --discover.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogger(cmd.ErrOrStderr(), opts.verbose)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.server, "server", "s", envOr("TWIN_SERVER", defaultServer), "server base URL")
	pf.StringVar(&opts.apiKeyEnv, "api-key-env", "TWIN_API_KEY", "environment variable holding the API key")
	pf.StringVar(&opts.header, "api-key-header", "x-api-key", "header carrying the API key")
	pf.BoolVar(&opts.discover, "discover", false, "find the server over mDNS")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose (debug) logging")
	pf.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newReadingsCmd(opts),
		newHealthCmd(opts),
		newForecastCmd(opts),
		newSimulateCmd(opts),
		newClassifyCmd(opts),
		newAlertsCmd(opts),
		newDiscoverCmd(opts),
	)
	return root
}

// Execute runs twinctl with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// client resolves the server address and returns a ready Client.
func (o *options) client(ctx context.Context) (*Client, error) {
	base := o.server
	if o.discover {
		url, err := discovery.Find(ctx, 3*time.Second, "")
		if err != nil {
			return nil, err
		}
		slog.Debug("twinctl: discovered server", "url", url)
		base = url
	}
	c := &Client{BaseURL: base, KeyHeader: o.header}
	if o.apiKeyEnv != "" {
		c.APIKey = os.Getenv(o.apiKeyEnv)
	}
	return c, nil
}

// call resolves the client and performs one request with the configured
// timeout.
func (o *options) call(cmd *cobra.Command, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()
	c, err := o.client(ctx)
	if err != nil {
		return err
	}
	return c.Do(ctx, method, path, body, out)
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
