package config

const (
	HCType         = "Content-Type"
	HCacheControl  = "Cache-Control"
	HSubmissionKey = "X-Submission-Key"

	CTypeJSON   = "application/json"
	CTypeText   = "text/plain; charset=utf-8"
	CTypeStream = "text/event-stream"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
	HTTPErrStreaming        = "Streaming unsupported"
)

const (
	// Multipart part carrying the YAML submission document.
	FormDocumentPart = "document"
	// Form value fixing the submission key, when the header is absent.
	FormKeyPart = "key"
	// Query parameter filtering the event stream to one submission.
	EventsKeyParam = "key"
)
