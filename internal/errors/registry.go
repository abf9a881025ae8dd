package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Sync Errors (S001-S099)
	// ============================================

	"S001": {
		Category: CategoryMedium,
		Message:  "Medium unavailable",
		Detail:   "The storage or location medium is not available in this context. Nothing is hydrated from it.",
	},
	"S002": {
		Category: CategoryStorage,
		Message:  "Malformed persisted state",
		Detail:   "The stored text is not valid JSON or is not an object. It is discarded and template defaults are used.",
	},
	"S003": {
		Category: CategoryCoercion,
		Message:  "Field cannot be reconstructed",
		Detail:   "The value does not fit the template's shape for this field. The field keeps its current value.",
	},
	"S004": {
		Category: CategoryURL,
		Message:  "Unknown URL parameter",
		Detail:   "A parameter under the namespace names a field that is not in the template. It is ignored.",
	},
	"S005": {
		Category: CategoryStorage,
		Message:  "Storage write failed",
		Detail:   "The state could not be written to the storage medium. The in-memory state is unaffected.",
	},
	"S006": {
		Category: CategoryURL,
		Message:  "URL replace failed",
		Detail:   "The location medium rejected the URL update. The in-memory state is unaffected.",
	},

	// ============================================
	// Config Errors (S101-S199)
	// ============================================

	"S101": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No statesync.json was found.",
	},
	"S102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be read or parsed.",
	},
	"S103": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or unsupported.",
	},

	// ============================================
	// CLI Errors (S201-S299)
	// ============================================

	"S201": {
		Category: CategoryCLI,
		Message:  "Command failed",
		Detail:   "The command stopped on an error that has no more specific code.",
	},
}
