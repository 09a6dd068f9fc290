// Package ctl implements autobulkctl, the operator CLI for a running
// autobulk gateway.
package ctl

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

type options struct {
	host    string
	apiKey  string
	askKey  bool
	output  string
	timeout time.Duration

	// overridable in tests
	dial   fasthttp.DialFunc
	stdin  io.Reader
	getenv func(string) string
}

func (o *options) client(cmd *cobra.Command) (*Client, error) {
	key := o.apiKey
	if key == "" {
		key = o.getenv("AUTOBULK_API_KEY")
	}
	if key == "" && o.askKey {
		k, err := promptSecret(cmd.ErrOrStderr(), o.stdin, "API key: ")
		if err != nil {
			return nil, err
		}
		key = k
	}
	opts := []ClientOption{WithTimeout(o.timeout)}
	if o.dial != nil {
		opts = append(opts, WithDial(o.dial))
	}
	return NewClient(o.host, key, opts...), nil
}

// NewRootCmd builds the autobulkctl command tree.
func NewRootCmd(version string) *cobra.Command {
	return newRootCmd(&options{stdin: os.Stdin, getenv: os.Getenv}, version)
}

func newRootCmd(o *options, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "autobulkctl",
		Short: "Operate a running autobulk gateway",
		Long: `autobulkctl inspects and drives an autobulk gateway: list targets,
read aggregator stats, force flushes, submit operations and load test the
intake endpoint.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if o.host == "" {
				o.host = o.getenv("AUTOBULK_HOST")
			}
			if o.host == "" {
				o.host = "http://127.0.0.1:8090"
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&o.host, "host", "", "gateway base URL (default $AUTOBULK_HOST or http://127.0.0.1:8090)")
	pf.StringVar(&o.apiKey, "api-key", "", "API key (default $AUTOBULK_API_KEY)")
	pf.BoolVar(&o.askKey, "ask-key", false, "prompt for the API key without echo")
	pf.StringVarP(&o.output, "output", "o", "auto", "output format: auto, table, json")
	pf.DurationVar(&o.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(
		newStatsCmd(o),
		newTargetsCmd(o),
		newFlushCmd(o),
		newSubmitCmd(o),
		newBenchCmd(o),
	)
	return root
}

// Execute runs autobulkctl and exits non-zero on error.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
