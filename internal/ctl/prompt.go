package ctl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

// promptSecret reads a line without echo when in is a terminal, and as
// plain text otherwise.
func promptSecret(w io.Writer, in io.Reader, label string) (string, error) {
	fmt.Fprint(w, label)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", errors.Wrap(err, "read secret")
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(err, "read secret")
	}
	secret := strings.TrimSpace(line)
	if secret == "" {
		return "", errors.New("empty secret")
	}
	return secret, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
