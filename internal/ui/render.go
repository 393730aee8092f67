package ui

import (
	"strings"

	"github.com/PolarWolf314/keysmith/internal/oplog"
)

// levelMarkers maps each log level to its marker and formatter.
var levelMarkers = map[oplog.Level]struct {
	marker string
	format Formatter
}{
	oplog.LevelDebug:     {"·", Muted},
	oplog.LevelInfo:      {"•", Info},
	oplog.LevelWarn:      {"⚠", Warning},
	oplog.LevelError:     {"✗", Error},
	oplog.LevelStart:     {"→", Info},
	oplog.LevelOK:        {"✓", Success},
	oplog.LevelCancelled: {"⊘", Warning},
}

// RenderLog renders an operation log as an indented report, two spaces per
// depth level. Debug entries are left out unless showDebug is set.
func RenderLog(log *oplog.Log, showDebug bool) string {
	if log == nil {
		return ""
	}
	var b strings.Builder
	for _, e := range log.Entries() {
		level := e.Kind.Level()
		if level == oplog.LevelDebug && !showDebug {
			continue
		}
		m, ok := levelMarkers[level]
		if !ok {
			m = levelMarkers[oplog.LevelInfo]
		}
		b.WriteString(strings.Repeat("  ", e.Depth))
		b.WriteString(m.format.Sprint(m.marker))
		b.WriteString(" ")
		b.WriteString(e.Message())
		b.WriteString("\n")
	}
	return b.String()
}
