package procure

import (
	"errors"

	"github.com/siteproc/siteproc/internal/quantity"
)

// Domain errors for the procurement lifecycle.
var (
	// ErrNotFound indicates a referenced request, comparison, order or
	// delivery does not resolve.
	ErrNotFound = errors.New("procure: not found")
	// ErrVendorNotFound indicates a vendor id that does not resolve.
	ErrVendorNotFound = errors.New("procure: vendor not found")
	// ErrSiteNotFound indicates a site id that does not resolve.
	ErrSiteNotFound = errors.New("procure: site not found")

	// ErrValidation indicates invalid input caught before any write.
	ErrValidation = errors.New("procure: invalid input")
	// ErrInvalidQuantity re-exports the quantity ledger failure.
	ErrInvalidQuantity = quantity.ErrInvalidQuantity
	// ErrEmptyQuoteSet occurs when a cost comparison is submitted without
	// quotes and without the direct-delivery exemption.
	ErrEmptyQuoteSet = errors.New("procure: cost comparison needs at least one vendor quote")
	// ErrVendorNotQuoted occurs when approval selects a vendor absent from
	// the stored quote set.
	ErrVendorNotQuoted = errors.New("procure: selected vendor has no quote")

	// ErrInvalidTransition indicates the entity is not in the lifecycle
	// position the operation requires.
	ErrInvalidTransition = errors.New("procure: invalid state transition")
	// ErrStaleState indicates the precondition held on read but a concurrent
	// actor won the commit. Callers should refresh and retry.
	ErrStaleState = errors.New("procure: state changed concurrently, refresh and retry")
	// ErrAlreadyTerminal indicates an operation on a delivered or cancelled
	// purchase order.
	ErrAlreadyTerminal = errors.New("procure: purchase order already terminal")
)
