package record

import "strings"

// Status is the remediation state of a contamination site.
type Status string

const (
	StatusActive     Status = "active"
	StatusInProgress Status = "in-progress"
	StatusNotStarted Status = "not-started"
	StatusComplete   Status = "complete"
	StatusDelisted   Status = "delisted"
	StatusUnknown    Status = "unknown"
)

// ParseStatus maps the spellings found in site registries onto Status.
// Anything unrecognised is StatusUnknown.
func ParseStatus(s string) Status {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	norm = strings.Join(strings.Fields(norm), " ")

	switch norm {
	case "active", "open", "ongoing":
		return StatusActive
	case "in progress", "inprogress", "underway":
		return StatusInProgress
	case "not started", "notstarted", "pending":
		return StatusNotStarted
	case "complete", "completed", "remediated", "closed":
		return StatusComplete
	case "delisted", "deleted", "deleted from npl":
		return StatusDelisted
	default:
		return StatusUnknown
	}
}

// Unremediated reports whether cleanup at a site with this status is not
// finished. Unknown counts as unremediated.
func (s Status) Unremediated() bool {
	switch s {
	case StatusComplete, StatusDelisted:
		return false
	default:
		return true
	}
}

// UnremediatedStatuses is the status set the scoring engine penalises.
func UnremediatedStatuses() []Status {
	return []Status{StatusActive, StatusInProgress, StatusNotStarted, StatusUnknown}
}
