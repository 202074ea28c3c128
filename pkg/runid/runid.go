// Package runid generates the unique run identifiers used to tag log lines,
// trace files, and metric labels for a single simulation invocation.
package runid

import "github.com/google/uuid"

// New returns a fresh run identifier.
func New() string {
	return uuid.New().String()
}
