package kbmirror

// OperationOptions tunes a single Clean, Parse or Upload call.
type OperationOptions struct {
	// DryRun reports what would happen without deleting or triggering anything.
	DryRun bool

	// ValidatePDF rejects .pdf files that cannot be opened as PDF before uploading.
	ValidatePDF bool
}

// OperationOption configures an OperationOptions.
type OperationOption func(*OperationOptions)

// NewOperationOptions applies opts to the zero OperationOptions.
func NewOperationOptions(opts ...OperationOption) *OperationOptions {
	o := &OperationOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDryRun enables or disables dry-run mode.
func WithDryRun(dryRun bool) OperationOption {
	return func(o *OperationOptions) {
		o.DryRun = dryRun
	}
}

// WithPDFValidation enables or disables PDF validation before upload.
func WithPDFValidation(validate bool) OperationOption {
	return func(o *OperationOptions) {
		o.ValidatePDF = validate
	}
}
