package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (o *options) jsonOutput(w io.Writer) bool {
	switch o.output {
	case "json":
		return true
	case "table":
		return false
	default:
		return !isTerminal(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func since(t time.Time) string {
	if t.IsZero() || t.Unix() <= 0 {
		return "never"
	}
	return humanize.Time(t)
}

func newStatsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-aggregator counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			r, err := c.Stats()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.jsonOutput(w) {
				return writeJSON(w, r)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TARGET\tSTATE\tQUEUED\tBATCHES\tFLUSHED\tFAILED\tLOST\tLAST FLUSH")
			for _, s := range r.Aggregators {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\t%s\n",
					s.Target, s.State, s.QueueLen, s.Capacity,
					humanize.Comma(int64(s.Batches)), humanize.Comma(int64(s.FlushedOps)),
					humanize.Comma(int64(s.FailedBatches)), humanize.Comma(int64(s.LostOps)),
					since(s.LastFlush))
			}
			fmt.Fprintf(tw, "TOTAL\t\t%d\t%s\t%s\t%s\t%s\t\n",
				r.Totals.Queued, humanize.Comma(int64(r.Totals.Batches)),
				humanize.Comma(int64(r.Totals.FlushedOps)), humanize.Comma(int64(r.Totals.FailedBatches)),
				humanize.Comma(int64(r.Totals.LostOps)))
			return tw.Flush()
		},
	}
}

func newTargetsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List intake targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			targets, err := c.Targets()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.jsonOutput(w) {
				return writeJSON(w, targets)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tSTATE\tQUEUED\tIDENTITY")
			for _, t := range targets {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.Name, t.Kind, t.State, t.Queued, t.Identity)
			}
			return tw.Flush()
		},
	}
}

func newFlushCmd(o *options) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Drain queued operations now",
		Long:  "Drain one target (--target) or every aggregator immediately, without waiting for a threshold or timeout.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			flushed, err := c.Flush(target)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if o.jsonOutput(w) {
				return writeJSON(w, map[string][]string{"flushed": flushed})
			}
			for _, name := range flushed {
				fmt.Fprintf(w, "flushed %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "only flush this target")
	return cmd
}
