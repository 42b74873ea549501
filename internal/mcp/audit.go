package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// AuditEntry represents a single audit log entry for an MCP tool invocation.
// It captures metadata about the call without including node content.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"` // sanitized metadata only
}

// AuditLogger appends audit entries to a JSONL file. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops
// on a nil receiver.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens (or creates) the audit log at path. When the file
// cannot be opened a warning is printed to stderr and nil is returned.
func NewAuditLogger(path string) *AuditLogger {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", filepath.Dir(path), err)
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f}
}

// Log appends entry as a single JSON line.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(data)
}

// Close closes the log file. Later calls to Log are dropped.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Parameters whose values are safe to log.
var safeValueParams = map[string]bool{
	"format":         true,
	"mode":           true,
	"relation":       true,
	"top":            true,
	"top_k":          true,
	"min_similarity": true,
	"include_nodes":  true,
	"force":          true,
	"version":        true,
	"similarity":     true,
}

// Parameters whose presence is logged but whose values may be sensitive
// (free text, node ids, file paths).
var presenceOnlyParams = map[string]bool{
	"query":         true,
	"id":            true,
	"ids":           true,
	"enrichment_id": true,
	"corpus_node":   true,
	"output_path":   true,
	"input_path":    true,
}

// sanitizeToolParams extracts safe metadata from tool parameters. Unset
// values (nil pointers, empty strings, zero numbers) are dropped and unknown
// keys are never logged. "_param_count" records how many were set.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string)
	count := 0
	for key, val := range params {
		v, ok := paramValue(val)
		if !ok {
			continue
		}
		count++
		switch {
		case safeValueParams[key]:
			result[key] = v
		case presenceOnlyParams[key]:
			result[key] = "(set)"
		}
	}
	result["_param_count"] = strconv.Itoa(count)
	return result
}

// paramValue renders a parameter value, reporting false when it is unset.
func paramValue(val any) (string, bool) {
	switch v := val.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case int:
		return strconv.Itoa(v), v != 0
	case bool:
		return strconv.FormatBool(v), v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), v != 0
	case []string:
		return strconv.Itoa(len(v)), len(v) > 0
	case *int:
		if v == nil {
			return "", false
		}
		return strconv.Itoa(*v), true
	case *float64:
		if v == nil {
			return "", false
		}
		return strconv.FormatFloat(*v, 'g', -1, 64), true
	case *bool:
		if v == nil {
			return "", false
		}
		return strconv.FormatBool(*v), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// auditTool logs a tool invocation to the audit log.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
		s.logger.Debug("tool failed", "tool", toolName, "error", err)
	}

	s.auditLogger.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
