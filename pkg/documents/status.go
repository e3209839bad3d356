package documents

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Status is the processing state the remote reports in a document's
// "status" field. Raw codes are parsed once at the API boundary.
type Status int

// Status values.
const (
	StatusUnknown Status = iota
	StatusPending
	StatusComplete
	StatusFailed
)

var statusCodes = map[string]Status{
	"0":  StatusPending,
	"1":  StatusComplete,
	"-1": StatusFailed,
}

// ParseStatus maps a raw remote code to a Status. Unrecognized codes are StatusUnknown.
func ParseStatus(raw string) Status {
	if s, ok := statusCodes[strings.TrimSpace(raw)]; ok {
		return s
	}
	return StatusUnknown
}

// String returns the human label used in reports.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Code returns the raw remote code, or "" for StatusUnknown.
func (s Status) Code() string {
	switch s {
	case StatusPending:
		return "0"
	case StatusComplete:
		return "1"
	case StatusFailed:
		return "-1"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts either a label or a raw code.
func (s *Status) UnmarshalText(data []byte) error {
	text := string(data)
	for _, candidate := range []Status{StatusPending, StatusComplete, StatusFailed} {
		if text == candidate.String() {
			*s = candidate
			return nil
		}
	}
	*s = ParseStatus(text)
	return nil
}

// Value implements driver.Valuer; the raw code is stored.
func (s Status) Value() (driver.Value, error) {
	if s == StatusUnknown {
		return nil, nil
	}
	return s.Code(), nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan status: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}

// RunState is the parsing state the remote reports in a document's "run" field.
type RunState int

// RunState values.
const (
	RunUnknown RunState = iota
	RunPending
	RunRunning
	RunFailed
	RunDone
)

var runCodes = map[string]RunState{
	"0": RunPending,
	"1": RunRunning,
	"2": RunFailed,
	"3": RunDone,
}

// ParseRunState maps a raw remote code to a RunState.
func ParseRunState(raw string) RunState {
	if r, ok := runCodes[strings.TrimSpace(raw)]; ok {
		return r
	}
	return RunUnknown
}

// String returns the label used in reports.
func (r RunState) String() string {
	switch r {
	case RunPending:
		return "pending"
	case RunRunning:
		return "running"
	case RunFailed:
		return "failed"
	case RunDone:
		return "done"
	default:
		return "unknown"
	}
}

// Code returns the raw remote code, or "" for RunUnknown.
func (r RunState) Code() string {
	for code, state := range runCodes {
		if state == r {
			return code
		}
	}
	return ""
}

// NeedsParse reports whether a parse request should be issued for the document.
func (r RunState) NeedsParse() bool {
	return r == RunPending || r == RunFailed
}

// MarshalText implements encoding.TextMarshaler.
func (r RunState) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts either a label or a raw code.
func (r *RunState) UnmarshalText(data []byte) error {
	text := string(data)
	for _, candidate := range []RunState{RunPending, RunRunning, RunFailed, RunDone} {
		if text == candidate.String() {
			*r = candidate
			return nil
		}
	}
	*r = ParseRunState(text)
	return nil
}

// Value implements driver.Valuer.
func (r RunState) Value() (driver.Value, error) {
	if r == RunUnknown {
		return nil, nil
	}
	return r.Code(), nil
}

// Scan implements sql.Scanner.
func (r *RunState) Scan(src any) error {
	raw, err := scanString(src)
	if err != nil {
		return fmt.Errorf("scan run state: %w", err)
	}
	*r = ParseRunState(raw)
	return nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
