package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		logger    Logger
		wantInfo  bool
		wantDebug bool
	}{
		{"Quiet", Logger{}, false, false},
		{"Verbose", Logger{Verbose: true}, true, false},
		{"Debug", Logger{Debug: true}, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			l := tc.logger
			l.Out = &out
			l.Err = &errOut

			l.Infof("info %d", 1)
			l.Debugf("debug %d", 2)
			l.Warnf("warn %d", 3)
			l.Errorf("error %d", 4)

			if got := strings.Contains(out.String(), "info 1"); got != tc.wantInfo {
				t.Errorf("Info shown = %v, expected %v", got, tc.wantInfo)
			}
			if got := strings.Contains(out.String(), "debug 2"); got != tc.wantDebug {
				t.Errorf("Debug shown = %v, expected %v", got, tc.wantDebug)
			}
			if !strings.Contains(errOut.String(), "warn 3") || !strings.Contains(errOut.String(), "error 4") {
				t.Errorf("Expected warnings and errors on stderr, got %q", errOut.String())
			}
		})
	}
}

func TestErrorfAndReturn(t *testing.T) {
	var errOut bytes.Buffer
	l := Logger{Err: &errOut}

	err := l.ErrorfAndReturn("failed to open %s", "keys.db")
	if err == nil || err.Error() != "failed to open keys.db" {
		t.Fatalf("Unexpected error %v", err)
	}
	if !strings.Contains(errOut.String(), "failed to open keys.db") {
		t.Errorf("Expected error to be logged, got %q", errOut.String())
	}
}
