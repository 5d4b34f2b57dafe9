package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// LineViolation describes a cart line that cannot be priced.
type LineViolation struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Reason    string     `json:"reason"`
}

// ValidateLines rejects empty carts, non-positive quantities, negative
// prices and inactive products in a single error listing every violation.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	var violations []LineViolation
	for _, line := range lines {
		reason := ""
		switch {
		case line.ProductID == uuid.Nil:
			reason = "product id required"
		case line.Qty <= 0:
			reason = "quantity must be positive"
		case line.UnitBasePrice.IsNegative() || line.UnitFinalPrice.IsNegative():
			reason = "price must not be negative"
		case !line.Active:
			reason = "product not available"
		}
		if reason == "" {
			continue
		}
		violations = append(violations, LineViolation{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      line.Name,
			Reason:    reason,
		})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d cart line(s) cannot be checked out", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
