// Package eligibility implements the side-effect-free worker
// availability gate used as the first check in every candidate
// evaluation (spec §4.2).
package eligibility

import (
	"time"

	"github.com/paiban/roster/pkg/model"
)

// IsAvailable reports whether w may be assigned on d at all: d must
// fall inside one of w's work periods and must not be an explicit day
// off.
func IsAvailable(w *model.Worker, d time.Time) bool {
	return w.InAnyWorkPeriod(d) && !w.IsDayOff(d)
}

// IsMandatory reports whether d is one of w's mandatory days.
func IsMandatory(w *model.Worker, d time.Time) bool {
	return w.IsMandatory(d)
}
