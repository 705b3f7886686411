package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Output is a write-only sink for request/page dumps. It is telemetry
// for operators, nothing in the pipeline reads it back.
type Output interface {
	Write(id string, contents string)
}

type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput wipes and recreates `dir` so that every run only
// carries its own dumps.
func NewFilesystemOutput(dir string) FilesystemOutput {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		panic(err)
	}
	return FilesystemOutput{directory: dir}
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write dump file", "id", id, "err", err)
	}
}

// DiscardOutput drops everything, for tests and quiet runs.
type DiscardOutput struct{}

func (DiscardOutput) Write(id string, contents string) {}
