package middleware

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoggerAccessLine(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	Logger(200, "/api/users", "GET", "10.0.0.1", time.Now())

	line := buf.String()
	for _, want := range []string{"/api/users", "method=GET", "client=10.0.0.1", "status=200"} {
		if !strings.Contains(line, want) {
			t.Fatalf("access line missing %q: %s", want, line)
		}
	}
}
