package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// NewWithStderrWriter creates a new logger and a writer for child process output.
// The writer always includes os.Stderr; when one of logOutputs has the ".log"
// extension, the writer also appends to that file and the returned file object
// must be closed by the caller. logFile is nil when no ".log" output is given.
func NewWithStderrWriter(logLevel string, logOutputs []string) (lg *zap.Logger, wr io.Writer, logFile *os.File, err error) {
	logFilePath := ""
	for _, fpath := range logOutputs {
		if filepath.Ext(fpath) == ".log" {
			logFilePath = fpath
			break
		}
	}

	outputs := logOutputs
	wr = os.Stderr
	if logFilePath != "" {
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] failed to open log file %q (%v) -- ignoring log file\n", logFilePath, err)
			outputs = withoutPath(logOutputs, logFilePath)
			logFile = nil
		} else {
			wr = io.MultiWriter(os.Stderr, logFile)
		}
	}

	lg, err = New(logLevel, outputs)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, nil, nil, err
	}
	return lg, wr, logFile, nil
}

func withoutPath(paths []string, p string) []string {
	out := make([]string, 0, len(paths))
	for _, v := range paths {
		if v != p {
			out = append(out, v)
		}
	}
	return out
}
