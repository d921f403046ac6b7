// Package domain holds the core types of the listening-party engine and the
// interfaces to its external collaborators (user directory, notification store).
package domain
