// Package camera implements the capture collaborator: it honors the warm-up
// delay handed down by the scheduler, grabs one JPEG frame from the capture
// backend, stores it under a timestamp-derived path, refreshes the "latest"
// pointer, and reports the wall-clock duration the invocation consumed.
package camera
