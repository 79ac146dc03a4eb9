package constants

import "time"

const (
	// StatusResourcePath is appended verbatim to the configured endpoint prefix.
	StatusResourcePath = "api/printer_statuses.json"

	// HeaderPrinterID carries the credential id on every report.
	HeaderPrinterID    = "X-Printer-Id"
	// HeaderPrinterToken carries the credential secret on every report.
	HeaderPrinterToken = "X-Printer-Token"

	// DefaultEndpointPrefix is used when no endpoint prefix is configured.
	DefaultEndpointPrefix = "https://app.gofab.xyz/"
	// DefaultTokenDelimiter separates id and secret in the configured auth token.
	DefaultTokenDelimiter = ";"

	DefaultRequestTimeout  = 30 * time.Second
	DefaultMaxResponseSize = 1 << 20 // 1MB
)
