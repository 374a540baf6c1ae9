package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Submission messages shown to the user
	ErrUnexpected          = "An unexpected error occurred."
	ErrSubmissionTimedOut  = "The submission took too long and was stopped. Some records may already exist."
	ErrSubmissionInProcess = "A submission is already in progress."

	// HTTP API errors
	ErrInternalServerError = "Internal server error"
	ErrMissingDocument     = "Missing submission document"
	ErrInvalidDocumentFmt  = "Invalid submission document: %v"
	ErrReadDocumentFmt     = "Failed to read submission document: %v"

	// Config errors
	ErrWriteConfigContentFmt = "Failed to write config content: %v"
)
