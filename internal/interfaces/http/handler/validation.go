package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/immoflow/backend/internal/domain/billing"
	"github.com/immoflow/backend/internal/domain/settlement"
)

// Domain enums validate through the domain's own IsValid methods, so the
// binding layer cannot drift from the domain when a value is added.
func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("allocation_mode", func(fl validator.FieldLevel) bool {
		return billing.AllocationMode(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("payment_source", func(fl validator.FieldLevel) bool {
		return billing.PaymentSource(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("distribution_key", func(fl validator.FieldLevel) bool {
		return settlement.DistributionKey(fl.Field().String()).IsValid()
	})
}
