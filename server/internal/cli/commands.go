package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/motortwin/motortwin/pkg/discovery"
	"github.com/motortwin/motortwin/pkg/types"
)

func newReadingsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "readings",
		Aliases: []string{"r", "reading"},
		Short:   "List, inspect and send readings",
	}

	var limit int
	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent readings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rs []types.Reading
			q := url.Values{"limit": {strconv.Itoa(limit)}}
			if err := o.call(cmd, http.MethodGet, "/api/v1/readings?"+q.Encode(), nil, &rs); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTEMP\tVIB\tRPM\tLOAD\tSTATUS")
			for _, r := range rs {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.0f\t%.1f\t%s\n",
					r.Time().UTC().Format(time.RFC3339), r.Temperature, r.Vibration, r.RPM, r.Load, r.Status)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of readings")
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	latest := &cobra.Command{
		Use:   "latest",
		Short: "Show the latest reading with diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]interface{}
			if err := o.call(cmd, http.MethodGet, "/api/v1/readings/latest", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	var in sendInput
	send := &cobra.Command{
		Use:   "send",
		Short: "Ingest one reading",
		Example: `  twinctl readings send --temperature 72.4 --vibration 3.1 --rpm 1480 --load 55`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var stored types.Reading
			if err := o.call(cmd, http.MethodPost, "/api/v1/readings", in.body(), &stored); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stored)
		},
	}
	in.register(send)
	for _, f := range []string{"temperature", "vibration", "rpm", "load"} {
		send.MarkFlagRequired(f) //nolint:errcheck
	}

	cmd.AddCommand(list, latest, send)
	return cmd
}

// sendInput holds reading flags shared by send and classify.
type sendInput struct {
	motorID     string
	temperature float64
	vibration   float64
	rpm         float64
	load        float64
}

func (s *sendInput) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.motorID, "motor", "", "motor id (server default when empty)")
	f.Float64Var(&s.temperature, "temperature", 0, "temperature in °C")
	f.Float64Var(&s.vibration, "vibration", 0, "vibration")
	f.Float64Var(&s.rpm, "rpm", 0, "speed in rpm")
	f.Float64Var(&s.load, "load", 0, "load in percent")
}

func (s *sendInput) body() map[string]interface{} {
	b := map[string]interface{}{
		"temperature": s.temperature,
		"vibration":   s.vibration,
		"rpm":         s.rpm,
		"load":        s.load,
	}
	if s.motorID != "" {
		b["motor_id"] = s.motorID
	}
	return b
}

func newHealthCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the trend-based health classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]interface{}
			if err := o.call(cmd, http.MethodGet, "/api/v1/health", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newForecastCmd(o *options) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Extrapolate temperature and vibration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/v1/forecast"
			if steps > 0 {
				path += "?steps=" + strconv.Itoa(steps)
			}
			var out map[string]interface{}
			if err := o.call(cmd, http.MethodGet, path, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "forecast horizon (server default when 0)")
	return cmd
}

func newSimulateCmd(o *options) *cobra.Command {
	var load, duration, rpm float64
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a what-if simulation",
		Long: `Project temperature and vibration for a hypothetical load.

With --duration the projection starts from the latest stored reading and steps
forward once per 10 seconds. Without it a steady-state estimate is returned.`,
		Example: `  twinctl simulate --load 90 --duration 300`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]interface{}{"load": load}
			if cmd.Flags().Changed("duration") {
				body["duration"] = duration
			}
			if cmd.Flags().Changed("rpm") {
				body["rpm"] = rpm
			}
			var out map[string]interface{}
			if err := o.call(cmd, http.MethodPost, "/api/v1/simulate", body, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().Float64Var(&load, "load", 0, "hypothetical load in percent")
	cmd.Flags().Float64Var(&duration, "duration", 0, "duration in seconds")
	cmd.Flags().Float64Var(&rpm, "rpm", 0, "hypothetical rpm (echoed only)")
	cmd.MarkFlagRequired("load") //nolint:errcheck
	return cmd
}

func newClassifyCmd(o *options) *cobra.Command {
	var in sendInput
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Score a reading against the instantaneous thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out map[string]interface{}
			if err := o.call(cmd, http.MethodPost, "/api/v1/classify", in.body(), &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	in.register(cmd)
	return cmd
}

func newAlertsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "List firing and recently resolved alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out []map[string]interface{}
			if err := o.call(cmd, http.MethodGet, "/api/v1/alerts", nil, &out); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newDiscoverCmd(_ *options) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse the local network for motortwin servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eps, err := discovery.Browse(cmd.Context(), wait)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INSTANCE\tMOTOR\tURL")
			for _, ep := range eps {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", ep.Instance, ep.MotorID, ep.URL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 3*time.Second, "how long to listen for answers")
	return cmd
}
