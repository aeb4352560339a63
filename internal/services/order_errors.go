package services

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderIllegalTransition indicates the requested change is not allowed in the current status.
	ErrOrderIllegalTransition = errors.New("order: illegal transition")
	// ErrOrderConflict indicates a concurrent write changed the order first.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderPersistence indicates the order store failed to read or write.
	ErrOrderPersistence = errors.New("order: persistence failure")

	// ErrProductUnavailable indicates the catalog could not supply the product.
	ErrProductUnavailable = errors.New("order: product unavailable")
	// ErrInventoryUnavailable indicates inventory could not confirm availability.
	ErrInventoryUnavailable = errors.New("order: inventory unavailable")
	// ErrCollaboratorDown indicates a collaborator call failed at the transport or its breaker is open.
	ErrCollaboratorDown = errors.New("order: collaborator down")
)

// UnavailableReason classifies why an item could not be verified.
type UnavailableReason string

const (
	ReasonProductServiceDown   UnavailableReason = "PRODUCT_SERVICE_DOWN"
	ReasonInventoryServiceDown UnavailableReason = "INVENTORY_SERVICE_DOWN"
	ReasonInsufficientStock    UnavailableReason = "INSUFFICIENT_STOCK"
)

// UnavailableError is returned by the verification gateway when an item cannot be priced or is out
// of stock. It unwraps to ErrProductUnavailable or ErrInventoryUnavailable, and to
// ErrCollaboratorDown when the collaborator itself failed.
type UnavailableError struct {
	ProductID string
	Quantity  int64
	Reason    UnavailableReason
	Err       error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("order: product %s unavailable (%s)", e.ProductID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the classification sentinels and the underlying cause.
func (e *UnavailableError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 3)
	switch e.Reason {
	case ReasonProductServiceDown:
		errs = append(errs, ErrProductUnavailable)
	default:
		errs = append(errs, ErrInventoryUnavailable)
	}
	if e.Reason != ReasonInsufficientStock && e.Err != nil && !errors.Is(e.Err, ErrProductNotFound) {
		errs = append(errs, ErrCollaboratorDown)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
