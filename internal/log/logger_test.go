package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "warn")
	l.Info("hidden")
	l.WithField("session", "abc").Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "session=abc") {
		t.Fatalf("unexpected output: %q", out)
	}
	if NewLoggerTo(&buf, "bogus").Level != logrus.InfoLevel {
		t.Fatalf("unknown level should fall back to info")
	}
}
