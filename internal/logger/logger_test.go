package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("debug", FormatJSON, &buf)

	l.Debug().Int("parent_id", 12).Msg("Submission created")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected a JSON log line, got %q: %v", buf.String(), err)
	}
	for _, key := range []string{"pid", "go_version", "git_revision", "caller", "time"} {
		if _, ok := line[key]; !ok {
			t.Errorf("Expected field %q in %v", key, line)
		}
	}
	if line["message"] != "Submission created" || line["parent_id"] != float64(12) {
		t.Errorf("Unexpected log line %v", line)
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := NewWithWriter(tt.level, FormatJSON, &bytes.Buffer{})
			if l.GetLevel() != tt.want {
				t.Errorf("Level = %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("info", FormatConsole, &buf)
	l.Info().Msg("Loaded group choices")

	out := buf.String()
	if !strings.Contains(out, "Loaded group choices") || strings.HasPrefix(out, "{") {
		t.Errorf("Expected a console line, got %q", out)
	}
}
