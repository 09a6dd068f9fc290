package banner

import (
	"bytes"
	"strings"
	"testing"

	"autobulk/pkg/config"
)

func TestFprintSummarisesTargets(t *testing.T) {
	cfg, err := config.Parse([]byte("targets:\n  - {name: hits, kind: redis, conn: redis://x}\ndead_letter:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	var buf bytes.Buffer
	Fprint(&buf, cfg, "config", "1.2.3")
	out := buf.String()
	for _, want := range []string{"hits", "redis", "threshold=100", "Dead letter: enabled", "1.2.3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("banner missing %q:\n%s", want, out)
		}
	}
}
