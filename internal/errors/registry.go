package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Usage Errors (E001-E009)
	// ============================================

	"E001": {
		Category:   CategoryUsage,
		Message:    "Cart store used outside a cart provider",
		Detail:     "The context passed to cart.Use does not carry a store. Scope one with cart.WithStore or the cart.Provider middleware.",
		Suggestion: "Wrap the handler with cart.Provider(store)",
	},
	"E002": {
		Category: CategoryUsage,
		Message:  "Cart store created without storage",
		Detail:   "cart.New requires a non-nil storage backend.",
	},

	// ============================================
	// Storage Errors (E010-E029)
	// ============================================

	"E010": {
		Category: CategoryStorage,
		Message:  "Persisted cart is malformed",
		Detail:   "The value stored under the cart key could not be decoded. The cart starts empty and the value is overwritten on the next change.",
	},
	"E011": {
		Category: CategoryStorage,
		Message:  "Storage read failed",
		Detail:   "The storage backend returned an error while loading the cart.",
	},
	"E012": {
		Category: CategoryStorage,
		Message:  "Storage write failed",
		Detail:   "The storage backend returned an error while saving the cart. Writes are not retried.",
	},

	// ============================================
	// Config Errors (E120-E149)
	// ============================================

	"E120": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration file",
		Suggestion: "Check that marketplace.json is valid JSON",
	},
	"E121": {
		Category:   CategoryConfig,
		Message:    "Unknown storage backend",
		Suggestion: "Use one of: memory, file, redis, sql, s3",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port number",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Incomplete storage configuration",
	},
	"E141": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
}

// Register adds or replaces an error template.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}

// Lookup returns the template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
