package preflight

import (
	"fmt"
	"os/exec"
	"strings"
)

// BinaryRequirement names an external command a pipeline stage shells out to.
type BinaryRequirement struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// BinaryStatus reports whether a required command can be spawned.
type BinaryStatus struct {
	BinaryRequirement
	Available bool
	Detail    string
}

// CheckBinaries resolves each requirement through the same PATH lookup the
// pipeline uses at exec time. Detail carries the resolved path on success
// and the failure reason otherwise.
func CheckBinaries(requirements []BinaryRequirement) []BinaryStatus {
	statuses := make([]BinaryStatus, 0, len(requirements))
	for _, req := range requirements {
		status := BinaryStatus{BinaryRequirement: req}
		status.Command = strings.TrimSpace(req.Command)
		if status.Command == "" {
			status.Detail = "command not configured"
			statuses = append(statuses, status)
			continue
		}
		resolved, err := exec.LookPath(status.Command)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found on PATH", status.Command)
			statuses = append(statuses, status)
			continue
		}
		status.Available = true
		status.Detail = resolved
		statuses = append(statuses, status)
	}
	return statuses
}
