package middleware

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/eaglebank/banking/shared/models"
)

var validate = newValidator()

// newValidator lets numeric tags such as gt=0 apply to decimal amounts.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type BadRequestErrorResponse struct {
	Message string            `json:"message"`
	Details []ValidationError `json:"details"`
}

func ValidateRequest(obj any) []ValidationError {
	var validationErrors []ValidationError

	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []ValidationError{{Message: err.Error(), Type: "invalid"}}
	}

	for _, err := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: getErrorMsg(err),
			Type:    err.Tag(),
		})
	}

	return validationErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "nefield":
		return "Value must differ from " + err.Param()
	default:
		return "Invalid value"
	}
}

func RespondWithValidationError(c *gin.Context, validationErrors []ValidationError) {
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Invalid request data",
		Details: validationErrors,
	})
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"message": message,
	})
}

// RespondWithDomainError maps the ledger's sentinel errors onto HTTP codes.
func RespondWithDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrAccountNotFound), errors.Is(err, models.ErrTransactionNotFound):
		RespondWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrIdempotencyConflict):
		RespondWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInitiationFailed):
		RespondWithError(c, http.StatusServiceUnavailable, "Transaction could not be initiated, try again")
	default:
		_ = c.Error(err)
		RespondWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
