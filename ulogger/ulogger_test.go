package ulogger_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/runestake/settlement/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerLevels(t *testing.T) {
	tests := []struct {
		level    string
		debug    bool
		info     bool
		warn     bool
		errorLvl bool
	}{
		{"DEBUG", true, true, true, true},
		{"INFO", false, true, true, true},
		{"WARN", false, false, true, true},
		{"ERROR", false, false, false, true},
		{"bogus", false, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer

			logger := ulogger.NewZeroLogger("test", ulogger.WithWriter(&buf), ulogger.WithLevel(tt.level), ulogger.WithPretty(false))
			buf.Reset()

			logger.Debugf("debug %d", 1)
			logger.Infof("info %d", 2)
			logger.Warnf("warn %d", 3)
			logger.Errorf("error %d", 4)

			out := buf.String()
			assert.Equal(t, tt.debug, strings.Contains(out, "debug 1"))
			assert.Equal(t, tt.info, strings.Contains(out, "info 2"))
			assert.Equal(t, tt.warn, strings.Contains(out, "warn 3"))
			assert.Equal(t, tt.errorLvl, strings.Contains(out, "error 4"))
		})
	}
}

func TestZeroLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.NewZeroLogger("builder", ulogger.WithWriter(&buf), ulogger.WithPretty(false))
	buf.Reset()

	logger.Infof("[Build] selected %d inputs", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "builder", entry["service"])
	assert.Equal(t, "[Build] selected 3 inputs", entry["message"])
	assert.NotEmpty(t, entry["caller"])
}

func TestZeroLoggerPretty(t *testing.T) {
	var buf bytes.Buffer

	logger := ulogger.NewZeroLogger("api", ulogger.WithWriter(&buf), ulogger.WithPretty(true))
	logger.Warnf("careful")

	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "api")
	assert.Contains(t, out, "careful")
}

func TestZeroLoggerNewAndDuplicate(t *testing.T) {
	var buf bytes.Buffer

	parent := ulogger.NewZeroLogger("parent", ulogger.WithWriter(&buf), ulogger.WithLevel("WARN"), ulogger.WithPretty(false))

	child := parent.New("child")
	assert.Equal(t, parent.LogLevel(), child.LogLevel())

	buf.Reset()
	child.Infof("hidden")
	child.Warnf("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "\"service\":\"child\"")

	dup := parent.Duplicate(ulogger.WithLevel("DEBUG"))
	buf.Reset()
	dup.Debugf("now visible")
	assert.Contains(t, buf.String(), "now visible")

	// parent unaffected
	buf.Reset()
	parent.Infof("still hidden")
	assert.Empty(t, buf.String())
}

func TestNewSelectsLoggerType(t *testing.T) {
	_, ok := ulogger.New("x", ulogger.WithLoggerType("gocore")).(*ulogger.GoCoreLogger)
	assert.True(t, ok)

	_, ok = ulogger.New("x", ulogger.WithLoggerType("zerolog"), ulogger.WithWriter(&bytes.Buffer{})).(*ulogger.ZLoggerWrapper)
	assert.True(t, ok)
}

func TestGoCoreLoggerDuplicate(t *testing.T) {
	logger := ulogger.NewGoCoreLogger("", ulogger.WithLevel("ERROR"))
	require.NotNil(t, logger)

	var _ ulogger.Logger = logger.Duplicate(ulogger.WithSkipFrameIncrement(2))
	var _ ulogger.Logger = logger.New("child")
}

type recordingT struct {
	lines  []string
	failed bool
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recordingT) FailNow() {
	r.failed = true
}

func (r *recordingT) Logf(format string, args ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestErrorTestLogger(t *testing.T) {
	rt := &recordingT{}
	logger := ulogger.NewErrorTestLogger(rt)

	logger.Infof("ignored")
	logger.Errorf("boom %s", "here")

	require.Len(t, rt.lines, 1)
	assert.Contains(t, rt.lines[0], "ERR_LEVEL boom here")

	logger.Shutdown()
	logger.Errorf("after shutdown")
	assert.Len(t, rt.lines, 1)
}

func TestVerboseTestLogger(t *testing.T) {
	rt := &recordingT{}
	logger := ulogger.NewVerboseTestLogger(rt)

	logger.Debugf("a")
	logger.Warnf("b")
	logger.Fatalf("c")

	assert.Equal(t, []string{"[DEBUG] a", "[WARN] b", "[FATAL] c"}, rt.lines)
	assert.True(t, rt.failed)
}

func TestTestLogger(t *testing.T) {
	var logger ulogger.Logger = ulogger.TestLogger{}

	logger.Errorf("nothing")
	assert.Equal(t, 0, logger.LogLevel())
	assert.Equal(t, ulogger.TestLogger{}, logger.New("x"))
}
