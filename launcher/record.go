package launcher

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
	"time"
)

const (
	// RecordFileName is the launch record written into the output path.
	RecordFileName = "launch-record.yaml"
	// ResolvedConfigFileName is the provenance copy written when no provenance file is configured.
	ResolvedConfigFileName = "launch.yaml"
)

// TimeFrame records the training start and end times.
type TimeFrame struct {
	// StartUTC is the time when the training process was started.
	StartUTC time.Time `json:"start-utc"`
	// EndUTC is the time when the training process returned.
	EndUTC time.Time `json:"end-utc"`
	// Took is the duration of the training process.
	Took time.Duration `json:"took"`
	// TookString is the duration of the training process, human-readable.
	TookString string `json:"took-string"`
}

// NewTimeFrame returns a new TimeFrame.
func NewTimeFrame(start time.Time, end time.Time) TimeFrame {
	took := end.Sub(start)
	return TimeFrame{
		StartUTC:   start.UTC(),
		EndUTC:     end.UTC(),
		Took:       took,
		TookString: took.String(),
	}
}

// Record describes one launch. It is written as RecordFileName into the output path.
type Record struct {
	Command     []string `json:"command"`
	CommandLine string   `json:"command-line"`
	SourcePath  string   `json:"source-path"`
	OutputPath  string   `json:"output-path"`
	Layout      Layout   `json:"layout,omitempty"`
	LaunchedBy  string   `json:"launched-by"`

	TimeFrame TimeFrame `json:"time-frame"`
	// ExitCode is -1 when the process did not run or did not report a status.
	ExitCode  int  `json:"exit-code"`
	Succeeded bool `json:"succeeded"`

	ProvenanceCopy  string   `json:"provenance-copy,omitempty"`
	LatestIteration int      `json:"latest-iteration"`
	Artifacts       []string `json:"artifacts,omitempty"`
}

// launchedBy returns the current user and host.
func launchedBy() string {
	h, err := os.Hostname()
	if err != nil {
		h = os.Getenv("HOSTNAME")
	}
	u, err := user.Current()
	if err != nil {
		return fmt.Sprintf("user=%s,hostname=%s,os=%s,arch=%s", os.Getenv("USER"), h, runtime.GOOS, runtime.GOARCH)
	}
	return fmt.Sprintf("user=%s,hostname=%s,os=%s,arch=%s", u.Username, h, runtime.GOOS, runtime.GOARCH)
}
