package actionpoints

import (
	"fmt"
	"strings"
)

// Format renders an extraction as readable text for webhook consumers that
// display results directly.
func Format(extraction Extraction) string {
	var b strings.Builder

	if len(extraction.ActionPoints) == 0 {
		b.WriteString("No action points were identified.\n")
	} else {
		b.WriteString("Action Points:\n")
		for i, point := range extraction.ActionPoints {
			assignee := point.Assignee
			if assignee == "" {
				assignee = "Unassigned"
			}
			deadline := point.Deadline
			if deadline == "" {
				deadline = "No deadline specified"
			}
			fmt.Fprintf(&b, "%d. Task: %s\n", i+1, point.Task)
			fmt.Fprintf(&b, "   Assignee: %s\n", assignee)
			fmt.Fprintf(&b, "   Deadline: %s\n", deadline)
			if point.Details != "" {
				fmt.Fprintf(&b, "   Details: %s\n", point.Details)
			}
			b.WriteString("\n")
		}
	}

	if len(extraction.ContextPoints) > 0 {
		b.WriteString("Context Points:\n")
		for i, point := range extraction.ContextPoints {
			fmt.Fprintf(&b, "%d. %s\n", i+1, point)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
