package core

// # Error Codes Reference
//
// User-facing failures carry a short code that can be quoted to support.
//
//	PARSE001 - Unsupported format        Patterns: "unsupported file format"
//	PARSE003 - Unreadable PDF            Patterns: "open pdf", "pdf text", "pdf parser failed"
//	PARSE004 - Malformed document        Patterns: "invalid json", "decode xml", "read delimited row"
//	PARSE002 - No records                Patterns: "no records found"
//	FILE001  - File too large            Patterns: "file too large"
//	FILE004  - No file                   Patterns: "no file provided"
//	FILE005  - Empty file                Patterns: "empty file"
//	VAL001   - Invalid request           Patterns: "invalid request"
//	COLLAB001 - Collaborator unavailable Patterns: "collaborator unavailable"
//	COLLAB002 - Unusable reply           Patterns: "malformed collaborator response", "empty response"
//	REF001   - Reference lookup failed   Patterns: "reference request", "hs_codes"
//	RPT001   - Report not found          Patterns: "report not found"
//	RPT002   - Reports disabled          Patterns: "report storage is not configured"
//	UPL002   - System busy               Patterns: "too many documents"
//	UPL004   - Request cancelled         Patterns: "context canceled"
//	UPL005   - Request timeout           Patterns: "context deadline exceeded", "timeout"
//	DB004    - Connection refused        Patterns: "connection refused"
//	DB005    - Connection reset          Patterns: "connection reset"
//	AUTH001  - Invalid API key           Patterns: "invalid api key"
//	RATE001  - Rate limited              Patterns: "rate limit"
//	ERR000   - Unknown error (fallback)
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns precede general ones. Parse errors
// wrap "no records found" around the underlying cause, which is why the
// PDF and malformed patterns are listed first.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgPDF = UserMessage{
		Message: "Text could not be extracted from the PDF",
		Action:  "Export the manifest as CSV or a text-based PDF",
		Code:    "PARSE003",
	}
	msgMalformed = UserMessage{
		Message: "The document could not be read",
		Action:  "Check that the file is well-formed and saved as UTF-8",
		Code:    "PARSE004",
	}
	msgCollabReply = UserMessage{
		Message: "The correction service returned an unusable reply",
		Action:  "Try again, or apply the automatic fixes only",
		Code:    "COLLAB002",
	}
	msgReference = UserMessage{
		Message: "Tariff reference lookup failed",
		Action:  "Results were produced without reference excerpts",
		Code:    "REF001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller document or try again later",
		Code:    "UPL005",
	}
)

var errorPatterns = []errorPattern{
	// Parsing
	{"unsupported file format", UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a CSV, TSV, XML, EDI, TXT, PDF or JSON manifest",
		Code:    "PARSE001",
	}},
	{"open pdf", msgPDF},
	{"pdf text", msgPDF},
	{"pdf parser failed", msgPDF},
	{"invalid json", msgMalformed},
	{"decode xml", msgMalformed},
	{"read delimited row", msgMalformed},
	{"no records found", UserMessage{
		Message: "No manifest records were found",
		Action:  "Check that the file has a header row and at least one line item",
		Code:    "PARSE002",
	}},

	// Files and requests
	{"file too large", UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the manifest into smaller files",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was provided",
		Action:  "Attach a manifest file to the request",
		Code:    "FILE004",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a manifest with at least one line item",
		Code:    "FILE005",
	}},
	{"invalid request", UserMessage{
		Message: "The request is missing required data",
		Action:  "Check the request body against the API documentation",
		Code:    "VAL001",
	}},

	// Collaborator and reference
	{"collaborator unavailable", UserMessage{
		Message: "Automatic correction is not available",
		Action:  "Apply the suggested fixes manually",
		Code:    "COLLAB001",
	}},
	{"malformed collaborator response", msgCollabReply},
	{"empty response", msgCollabReply},
	{"reference request", msgReference},
	{"hs_codes", msgReference},

	// Reports
	{"report not found", UserMessage{
		Message: "Report not found",
		Action:  "Check the report ID, or analyze the document again",
		Code:    "RPT001",
	}},
	{"report storage is not configured", UserMessage{
		Message: "Saved reports are not enabled on this server",
		Action:  "Ask an administrator to configure DATABASE_URL",
		Code:    "RPT002",
	}},

	// Request lifecycle
	{"too many documents", UserMessage{
		Message: "System is busy processing other documents",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{"context deadline exceeded", msgTimeout},
	{"timeout", msgTimeout},

	// Database
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},

	// Access
	{"invalid api key", UserMessage{
		Message: "Invalid or missing API key",
		Action:  "Send a valid key in the X-API-Key header",
		Code:    "AUTH001",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when no pattern matches. Check the logs for
// the technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
//
//	msg := MapError(fmt.Errorf("%w: %q", parser.ErrUnsupportedFormat, ".docx"))
//	// msg.Code == "PARSE001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its mapped
// user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
