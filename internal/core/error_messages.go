package core

// # Error Codes Reference
//
// User facing messages carry a code that operators can quote to support.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Product not found: No product matches the SKU
//	        Patterns: "product not found"
//	DB002 - Foreign key: The store does not exist
//	        Patterns: "foreign key constraint", "violates foreign key"
//	DB003 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//	DB004 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//	DB005 - Timeout: Operation timed out
//	        Patterns: "timeout"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - SKU required         Patterns: "skuisrequired"
//	VAL002 - Price required       Patterns: "priceisrequired"
//	VAL003 - Store ID required    Patterns: "storeidisrequired"
//	VAL004 - Invalid price        Patterns: "invalid price", "price must not be negative"
//	VAL005 - Missing column       Patterns: "missing required column"
//	VAL006 - Unknown behavior     Patterns: "unknown behavior"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large      Patterns: "file too large"
//	FILE002 - Invalid file        Patterns: "invalid csv", "unsupported format", "zip: not a valid"
//	FILE003 - No file             Patterns: "no file provided"
//	FILE004 - Empty file          Patterns: "empty file"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy          Patterns: "too many concurrent imports"
//	IMP002 - Import not found     Patterns: "import not found"
//	IMP003 - Request cancelled    Patterns: "context canceled"
//	IMP004 - Request timeout      Patterns: "context deadline exceeded"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively using strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Database
	{
		pattern: "product not found",
		msg: UserMessage{
			Message: "No product matches this SKU",
			Action:  "Check the SKU against the catalog",
			Code:    "DB001",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "The store does not exist",
			Action:  "Use a store_id that exists in the catalog",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "The store does not exist",
			Action:  "Use a store_id that exists in the catalog",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},

	// Import lifecycle. Checked before the generic "timeout" pattern.
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import not found",
			Action:  "The import may have expired. Please start a new import",
			Code:    "IMP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file",
			Code:    "IMP004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB005",
		},
	},

	// Validation
	{
		pattern: strings.ToLower(string(SkuMissing)),
		msg: UserMessage{
			Message: "The SKU is required.",
			Action:  "Fill in the sku column",
			Code:    "VAL001",
		},
	},
	{
		pattern: strings.ToLower(string(PriceMissing)),
		msg: UserMessage{
			Message: "The price is required.",
			Action:  "Fill in the price column",
			Code:    "VAL002",
		},
	},
	{
		pattern: strings.ToLower(string(StoreIDMissing)),
		msg: UserMessage{
			Message: "The store ID is required.",
			Action:  "Fill in the store_id column or import unscoped",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid price",
		msg: UserMessage{
			Message: "Invalid price format",
			Action:  "Use a plain decimal such as 12.50",
			Code:    "VAL004",
		},
	},
	{
		pattern: "price must not be negative",
		msg: UserMessage{
			Message: "Prices cannot be negative",
			Action:  "Correct the price value",
			Code:    "VAL004",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from the file",
			Action:  "The header must contain sku, price and store_id for scoped imports",
			Code:    "VAL005",
		},
	},
	{
		pattern: "unknown behavior",
		msg: UserMessage{
			Message: "The import behavior is not supported",
			Action:  "Use append, replace or delete",
			Code:    "VAL006",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unsupported format",
		msg: UserMessage{
			Message: "File format is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "zip: not a valid",
		msg: UserMessage{
			Message: "File is not a valid spreadsheet",
			Action:  "Re-save the workbook as .xlsx",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a file to import",
			Code:    "FILE003",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header and data rows",
			Code:    "FILE004",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or ERR000 when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	return mapText(err.Error())
}

func mapText(s string) UserMessage {
	s = strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FailureMessage returns the user message for a row failure code.
func FailureMessage(code FailureCode) UserMessage {
	return mapText(string(code))
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
