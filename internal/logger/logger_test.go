package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)

	Info("mount request", "export", "/export", "client_ip", "10.0.0.1")

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "mount request")
	assert.Contains(t, out, "export=/export")
	assert.Contains(t, out, "client_ip=10.0.0.1")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Debug("should not appear")
	Info("should not appear either")
	Warn("warning message")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "warning message")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json", false)

	Info("request complete", "procedure", "GETATTR")

	out := buf.String()
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "{"), "json output should be an object: %s", out)
	assert.Contains(t, out, `"procedure":"GETATTR"`)
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text", false)

	lc := NewLogContext("192.168.1.5")
	lc = lc.WithProcedure(0xdeadbeef, "LOOKUP")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "lookup complete", "filename", "a.txt")

	out := buf.String()
	assert.Contains(t, out, "xid=0xdeadbeef")
	assert.Contains(t, out, "procedure=LOOKUP")
	assert.Contains(t, out, "client_ip=192.168.1.5")
	assert.Contains(t, out, "filename=a.txt")
}

func TestFromContextMissing(t *testing.T) {
	require.Nil(t, FromContext(context.Background()))
	require.Nil(t, FromContext(nil)) //nolint:staticcheck // deliberate nil context
}

func TestInvalidLevelIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text", false)

	SetLevel("NOISY") // ignored
	Info("still info")

	assert.Contains(t, buf.String(), "still info")
}
