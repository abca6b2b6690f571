package build

import "time"

// ArtifactSet is the output of a build: an isolation directory and the
// binaries inside it. The pipeline owns Dir and removes it when done.
type ArtifactSet struct {
	Dir      string
	Binaries []string // absolute paths, sorted
	Mode     Mode
	Steps    []StepResult
}

// StepResult captures the outcome of a single build step.
type StepResult struct {
	Name     string
	Command  string
	Status   string // "success", "failed"
	Duration time.Duration
	Error    error
}
