package validation

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/timelogic/wfm-api/internal/model"
)

var registerOnce sync.Once

// RegisterBindingValidators wires the enum validators referenced by request
// binding tags. Safe to call more than once.
func RegisterBindingValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterValidation("notifpriority", func(fl validator.FieldLevel) bool {
			switch model.Priority(fl.Field().String()) {
			case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityUrgent:
				return true
			}
			return false
		})

		v.RegisterValidation("notifcategory", func(fl validator.FieldLevel) bool {
			switch model.Category(fl.Field().String()) {
			case model.CategoryLeave, model.CategoryTimecard, model.CategorySchedule,
				model.CategoryAttendance, model.CategoryUrgentApproval, model.CategorySystem:
				return true
			}
			return false
		})
	})
}
