package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rouna/storefront/internal/domain/order"
	"github.com/rouna/storefront/internal/interfaces/http/dto"
)

// SetupValidator configures gin's validator: JSON field names in errors and
// the storefront's enum tags.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return RegisterValidations(v)
}

// RegisterValidations installs the custom tags on v
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	tags := map[string]validator.Func{
		"payment_method": func(fl validator.FieldLevel) bool {
			return order.PaymentMethod(fl.Field().String()).IsValid()
		},
		"shipping_method": func(fl validator.FieldLevel) bool {
			return order.ShippingMethod(fl.Field().String()).IsValid()
		},
		"order_status": func(fl validator.FieldLevel) bool {
			return order.Status(fl.Field().String()).IsValid()
		},
		"payment_status": func(fl validator.FieldLevel) bool {
			return order.PaymentStatus(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// FormatValidationErrors converts a binding error into response details.
// Errors that are not field validations, such as malformed JSON, yield a
// single detail without a field.
func FormatValidationErrors(err error) []dto.ValidationDetail {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []dto.ValidationDetail{{Message: "Malformed request body"}}
	}
	details := make([]dto.ValidationDetail, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, dto.ValidationDetail{
			Field:   fieldPath(e),
			Message: getValidationMessage(e),
		})
	}
	return details
}

// HandleValidationError answers 400 with the rejected fields
func HandleValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		GetRequestID(c),
		FormatValidationErrors(err),
	))
}

// fieldPath drops the top-level struct name from the namespace, so
// "CheckoutInput.items[1].quantity" becomes "items[1].quantity"
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " entries"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		if e.Kind() == reflect.Slice {
			return "Must contain at most " + e.Param() + " entries"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "payment_method":
		return "Unknown payment method"
	case "shipping_method":
		return "Unknown shipping method"
	case "order_status":
		return "Unknown order status"
	case "payment_status":
		return "Unknown payment status"
	default:
		return "Invalid value"
	}
}
