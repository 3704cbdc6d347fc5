package bundle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrMissingConfiguration is returned when a bundle has no lines configured.
	ErrMissingConfiguration = errors.New("bundle has no products configured")
	// ErrInvalidSubmission is returned when the submitted quantity map is absent.
	ErrInvalidSubmission = errors.New("bundle quantities missing from submission")
)

// ViolationKind identifies which quantity rule a submission broke.
type ViolationKind string

const (
	BelowMinimum ViolationKind = "below_minimum"
	AboveMaximum ViolationKind = "above_maximum"
)

// Violation records a single quantity rule failure for one bundled product.
type Violation struct {
	ProductID uuid.UUID     `json:"productId"`
	Kind      ViolationKind `json:"kind"`
	Limit     int           `json:"limit"`
	Submitted int           `json:"submitted"`
}

func (v Violation) String() string {
	switch v.Kind {
	case BelowMinimum:
		return fmt.Sprintf("quantity for %s must be at least %d", v.ProductID, v.Limit)
	case AboveMaximum:
		return fmt.Sprintf("quantity for %s cannot exceed %d", v.ProductID, v.Limit)
	}
	return fmt.Sprintf("quantity for %s is invalid", v.ProductID)
}

// ValidationError aggregates every quantity violation in a submission, so the
// storefront can surface the complete list in one round trip instead of one
// failure at a time.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.String())
	}
	return strings.Join(msgs, "; ")
}

// ValidateQuantities checks submitted quantities against every configured line.
// It runs before any price computation or cart mutation. A nil quantities map
// is an invalid submission; products missing from the map count as quantity
// zero, the same parse-or-default treatment malformed inputs receive upstream.
func ValidateQuantities(d Definition, quantities map[uuid.UUID]int) error {
	if len(d.Lines) == 0 {
		return ErrMissingConfiguration
	}
	if quantities == nil {
		return ErrInvalidSubmission
	}
	var violations []Violation
	for _, line := range d.Lines {
		qty := quantities[line.ProductID]
		if qty < line.MinQty {
			violations = append(violations, Violation{
				ProductID: line.ProductID,
				Kind:      BelowMinimum,
				Limit:     line.MinQty,
				Submitted: qty,
			})
			continue
		}
		if line.MaxQty > 0 && qty > line.MaxQty {
			violations = append(violations, Violation{
				ProductID: line.ProductID,
				Kind:      AboveMaximum,
				Limit:     line.MaxQty,
				Submitted: qty,
			})
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
