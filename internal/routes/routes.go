// Package routes defines HTTP route constants for the application.
package routes

const (
	// API
	APIChoices     = "/api/choices"
	APISubmissions = "/api/submissions"
	APIEvents      = "/api/submissions/events"

	// Operations
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
	RobotsPath  = "/robots.txt"
)
