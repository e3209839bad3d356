package errors_test

import (
	"fmt"

	"github.com/agentstation/kbmirror/pkg/errors"
)

// Example demonstrates basic error creation and checking.
func Example() {
	err := &errors.NotFoundError{
		Resource: "document",
		ID:       "3f1c",
	}

	if errors.IsNotFound(err) {
		fmt.Println("Document not found")
	}

	// Output: Document not found
}

// Example_fatal shows how a caller decides to stop on authentication failures.
func Example_fatal() {
	var err error = errors.NewAuthenticationError("document/list", "token expired", nil)

	if errors.IsFatal(err) {
		fmt.Println("stop: credentials must be refreshed")
	}

	// Output: stop: credentials must be refreshed
}

// Example_applicationError separates a remote refusal from a transport failure.
func Example_applicationError() {
	err := errors.NewApplicationError("document/upload", 102, "unsupported type")

	switch {
	case errors.IsTransport(err):
		fmt.Println("network problem")
	case errors.IsApplication(err):
		fmt.Println("remote refused:", err.Message)
	}

	// Output: remote refused: unsupported type
}
