package domain

import (
	"strconv"
	"strings"
)

// StreamName identifies one of the process-wide output streams.
type StreamName string

const (
	Stdout StreamName = "stdout"
	Stderr StreamName = "stderr"
)

// OutputConfig represents the top-level structure of the teeout.json file.
type OutputConfig struct {
	Rank       int    `json:"rank"`                  // Process rank, used only to name per-process files.
	StdoutFile string `json:"stdout_file,omitempty"` // File mirrored from stdout. May contain {rank}.
	StderrFile string `json:"stderr_file,omitempty"` // File mirrored from stderr. May contain {rank}.
	LogLevel   string `json:"log_level,omitempty"`
	HTTPHost   string `json:"http_host,omitempty"`  // Interface the control server binds to.
	HTTPPort   int    `json:"http_port,omitempty"`  // 0 disables the control server.
	OutputDir  string `json:"output_dir,omitempty"` // Files retargeted over HTTP must live under it.
}

// ExpandPath replaces the {rank} placeholder in path with the configured rank.
func (c *OutputConfig) ExpandPath(path string) string {
	return strings.ReplaceAll(path, "{rank}", strconv.Itoa(c.Rank))
}

// StreamStatus describes what a named stream is currently bound to.
type StreamStatus struct {
	Name      StreamName `json:"name"`
	File      string     `json:"file,omitempty"` // Empty while the stream only writes to the console.
	Failed    bool       `json:"failed"`
	LastError string     `json:"last_error,omitempty"`
}
