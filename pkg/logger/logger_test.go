package logger

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"DEBUG", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"info", log.InfoLevel},
		{"", log.InfoLevel},
		{"garbage", log.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseLevel(tc.in), "level %q", tc.in)
	}
}

func TestSetup_FlagBeatsEnv(t *testing.T) {
	t.Setenv(EnvVar, "error")
	defer log.SetLevel(log.InfoLevel)

	Setup("debug")
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	Setup("")
	assert.Equal(t, log.ErrorLevel, log.GetLevel())
}
