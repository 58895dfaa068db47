package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Construction Errors (B100-B199)
	// ============================================

	"B101": {
		Category: CategoryConstruction,
		Message:  "Invalid VNode arguments",
		Detail:   "A VNode is built from a selector, an optional data bag and at most one children list or text. The arguments did not match that shape.",
	},
	"B102": {
		Category: CategoryConstruction,
		Message:  "Invalid markup",
		Detail:   "The markup could not be parsed into virtual nodes.",
	},

	// ============================================
	// Contract Errors (B200-B299)
	// ============================================

	"B201": {
		Category: CategoryContract,
		Message:  "Mutation of a disposed element",
		Detail:   "The element was removed from the document and can no longer be mutated. Create a new element instead.",
	},
	"B202": {
		Category: CategoryContract,
		Message:  "Element already has a parent",
		Detail:   "Reconciliation is scoped to sibling lists, so an element that is already rendered cannot be moved under a different parent.",
	},
	"B203": {
		Category: CategoryContract,
		Message:  "Session closed",
		Detail:   "The rendering session has ended; its elements are disposed.",
	},
	"B204": {
		Category: CategoryContract,
		Message:  "Not a child",
		Detail:   "The reference element is not a child of this element.",
	},
	"B205": {
		Category: CategoryContract,
		Message:  "No listener for event",
		Detail:   "The element has no listener registered for the dispatched event type.",
	},
	"B206": {
		Category: CategoryContract,
		Message:  "Element not found",
		Detail:   "Neither the key table nor the host knows an element with this id.",
	},
	"B207": {
		Category: CategoryContract,
		Message:  "Element has no handle",
		Detail:   "Presentation modules run after the bridge module has created the host element. The node reached a module before it had a handle.",
	},
	"B208": {
		Category: CategoryContract,
		Message:  "Unknown batch update",
		Detail:   "Batch updates support textContent, innerHTML, setAttribute, addClass and removeClass.",
	},

	// ============================================
	// Bridge Errors (B300-B399)
	// ============================================

	"B301": {
		Category: CategoryBridge,
		Message:  "Bridge command failed",
		Detail:   "The host renderer rejected a command. Steps already applied in the same pass are not rolled back; the element's key table entry is left at its previous state.",
	},
	"B302": {
		Category: CategoryBridge,
		Message:  "Command out of order",
		Detail:   "For one key, commands must follow create, insert, update, remove, destroy.",
	},
	"B303": {
		Category: CategoryBridge,
		Message:  "Unknown element key",
		Detail:   "The host has no element registered under this key.",
	},
	"B304": {
		Category: CategoryBridge,
		Message:  "Query failed",
		Detail:   "The host could not answer a query-by-id.",
	},
	"B305": {
		Category: CategoryBridge,
		Message:  "Module hook failed",
		Detail:   "A pipeline module returned an error while handling a hook.",
	},

	// ============================================
	// Config Errors (B400-B499)
	// ============================================

	"B401": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file could not be read or parsed.",
	},
	"B402": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is outside its allowed range.",
	},
	"B403": {
		Category: CategoryConfig,
		Message:  "Output failed",
		Detail:   "The page could not be read or the rendered document could not be written.",
	},

	// ============================================
	// Script Errors (B500-B599)
	// ============================================

	"B501": {
		Category: CategoryScript,
		Message:  "Script execution failed",
		Detail:   "The script threw an exception or was interrupted.",
	},

	// ============================================
	// Protocol Errors (B600-B699)
	// ============================================

	"B601": {
		Category: CategoryProtocol,
		Message:  "Malformed frame",
		Detail:   "A frame could not be decoded.",
	},
	"B602": {
		Category: CategoryProtocol,
		Message:  "Remote host unavailable",
		Detail:   "The remote renderer connection is closed or did not answer in time.",
	},
}

// GetAllCodes returns all registered error codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
