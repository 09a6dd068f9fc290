package ctl

import (
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// readBody reads path, or stdin for "-".
func readBody(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return b, errors.Wrap(err, "read stdin")
	}
	b, err := os.ReadFile(path)
	return b, errors.Wrapf(err, "read %s", path)
}

func newSubmitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "submit TARGET [FILE|-]",
		Short: "Submit operations to a target",
		Long: `Submit a JSON operation, or an array of them, to TARGET. The body is
read from FILE, or stdin when FILE is "-" or omitted.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 2 {
				path = args[1]
			}
			body, err := readBody(path, o.stdin)
			if err != nil {
				return err
			}
			c, err := o.client(cmd)
			if err != nil {
				return err
			}
			r, err := c.Submit(args[0], body)
			w := cmd.OutOrStdout()
			if err != nil {
				if r.Accepted > 0 {
					fmt.Fprintf(w, "accepted %d operation(s) before failing\n", r.Accepted)
				}
				return err
			}
			if o.jsonOutput(w) {
				return writeJSON(w, r)
			}
			fmt.Fprintf(w, "accepted %d operation(s) for %s\n", r.Accepted, r.Target)
			return nil
		},
	}
}
