// Package meta holds the session metadata document and its on-disk store.
//
// The document at sessions/<id>.json is the discovery contract: external
// tooling lists sessions by reading these files, so field names and the
// omission of unset optional fields must stay stable.
package meta

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Session status values.
const (
	StatusRunning = "running"
	StatusExited  = "exited"
)

// Session is the metadata document persisted for one hosted session.
type Session struct {
	ID           string   `json:"id"`
	Command      string   `json:"command"`
	Args         []string `json:"args"`
	Cwd          string   `json:"cwd"`
	CreatedAt    int64    `json:"createdAt"`
	LastActivity int64    `json:"lastActivity"`
	Status       string   `json:"status"`
	ExitCode     *int     `json:"exitCode,omitempty"`
	ExitedAt     *int64   `json:"exitedAt,omitempty"`
	Cols         uint16   `json:"cols"`
	Rows         uint16   `json:"rows"`
	Pid          int      `json:"pid"`
	StartedAt    string   `json:"startedAt"`

	TotalBytesWritten float64 `json:"totalBytesWritten"`
	LastActiveAt      string  `json:"lastActiveAt"`
	BytesPerSecond    float64 `json:"bytesPerSecond"`

	Title string `json:"title,omitempty"`
	Error string `json:"error,omitempty"`

	// Rolling bytes/sec averages over 1, 5 and 15 minutes.
	BPS1  float64 `json:"bps1"`
	BPS5  float64 `json:"bps5"`
	BPS15 float64 `json:"bps15"`
}

// NowMillis returns the current wall clock as Unix milliseconds, the unit
// used by the createdAt/lastActivity/exitedAt fields.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ISONow returns the current UTC time in the ISO-8601 form used by the
// startedAt/lastActiveAt fields.
func ISONow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// WriteAtomic serializes the document and writes it via a temp file plus
// rename, so readers observe either the old or the new version. When the
// rename fails it falls back to a direct write; in-memory state stays
// authoritative either way.
func WriteAtomic(path string, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("meta: marshal session %s: %w", s.ID, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return os.WriteFile(path, data, 0o644)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return os.WriteFile(path, data, 0o644)
	}
	return nil
}
