package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// a cancellation must always carry a reason, even at the request level
	v.RegisterStructValidation(orderUpdateStructValidation, OrderUpdateRequest{})

	return v
}

func orderUpdateStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(OrderUpdateRequest)
	if req.Status == "CANCELLED" && req.CancelReason == "" {
		sl.ReportError(req.CancelReason, "cancelReason", "CancelReason", "required_with_cancel", "")
	}
}
