// Package emoji provides symbol constants for CLI output.
// These symbols create a consistent visual language across all commands.
package emoji

import "github.com/agentstation/kbmirror/pkg/documents"

const (
	// Success marks a completed operation or a fully processed document.
	Success = "✓"

	// Error marks a failed operation or document.
	Error = "✗"

	// Warning marks a partial result, such as a clean with failed deletions.
	Warning = "!"

	// Skipped marks work that was not needed, such as a guarded upload.
	Skipped = "-"

	// Unknown marks a status the remote reported but kbmirror does not know.
	Unknown = "?"

	// Info represents informational messages.
	Info = "i"

	// Pending marks documents still waiting for processing.
	Pending = "..."
)

// ForStatus returns the symbol for a document processing status.
func ForStatus(s documents.Status) string {
	switch s {
	case documents.StatusComplete:
		return Success
	case documents.StatusFailed:
		return Error
	case documents.StatusPending:
		return Pending
	default:
		return Unknown
	}
}
