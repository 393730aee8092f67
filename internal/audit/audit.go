package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PolarWolf314/keysmith/internal/configs"
	"github.com/PolarWolf314/keysmith/internal/oplog"
	"github.com/PolarWolf314/keysmith/internal/utils"
)

// TimestampFormat is RFC3339 with microseconds, always UTC.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp    string `json:"ts"`                     // RFC3339 with microseconds.
	User         string `json:"user"`                   // user@host performing the action.
	Installation string `json:"installation,omitempty"` // Installation ID from config.
	Operation    string `json:"op"`                     // Operation name.

	// Filled in from the operation result.
	KeyID   string     `json:"key_id,omitempty"`  // Master key id, if known.
	Outcome string     `json:"outcome,omitempty"` // success, error, pending or cancelled.
	Error   string     `json:"error,omitempty"`   // For error outcomes.
	Pending string     `json:"pending,omitempty"` // For pending outcomes: what was missing.
	Log     *oplog.Log `json:"log,omitempty"`     // Full operation log, replayable.
}

// Recorder appends entries to one audit file.
type Recorder struct {
	path string
	mu   sync.Mutex
}

// NewRecorder creates a recorder writing to path.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Path returns the audit file path.
func (r *Recorder) Path() string {
	return r.path
}

// Record appends an entry. A missing timestamp is set to now.
func (r *Recorder) Record(entry Entry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	// Open file for appending (create if doesn't exist).
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	// Write entry with newline.
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// ReadEntries reads all entries from the audit file.
// Returns an empty slice if the file doesn't exist.
func (r *Recorder) ReadEntries() ([]Entry, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// Log appends an entry to the user's audit log.
// If logging fails, the error is dropped.
// Operations should not fail just because audit logging failed.
func Log(entry Entry) {
	path := LogPath()
	if path == "" {
		return
	}
	_ = NewRecorder(path).Record(entry)
}

// LogWithUser is a convenience function that populates user fields.
func LogWithUser(op string) Entry {
	entry := Entry{Operation: op, User: utils.Actor()}

	if configs.GlobalConfig != nil {
		entry.Installation = configs.GlobalConfig.InstallationID
	}

	return entry
}

// LogPath returns the path to the user's audit log file.
// Returns empty string if settings are not initialized.
func LogPath() string {
	if configs.UserSettings == nil || configs.UserSettings.DataPath == "" {
		return ""
	}
	return configs.UserSettings.AuditLogPath()
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip malformed entries.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
