package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

// slotTokenPattern matches a time range token such as "09:00-11:00".
var slotTokenPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d-([01]\d|2[0-3]):[0-5]\d$`)

var bookingStatuses = map[string]bool{
	"PENDING_CONFIRMATION": true,
	"CONFIRMED":            true,
	"PROVIDER_ASSIGNED":    true,
	"EN_ROUTE":             true,
	"IN_PROGRESS":          true,
	"COMPLETED":            true,
	"CANCELED":             true,
	"DISPUTED":             true,
}

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	validate.RegisterValidation("slot_token", func(fl validator.FieldLevel) bool {
		token := fl.Field().String()
		if !slotTokenPattern.MatchString(token) {
			return false
		}
		// start must be before end
		return token[:5] < token[6:]
	})

	validate.RegisterValidation("gateway", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "esewa", "khalti":
			return true
		}
		return false
	})

	validate.RegisterValidation("booking_status", func(fl validator.FieldLevel) bool {
		return bookingStatuses[fl.Field().String()]
	})

	validate.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
		d := fl.Field().String()
		return d == "credit" || d == "debit"
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errors := make(map[string]string)
	for _, err := range validationErrors {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gt":
			errors[field] = "Value must be greater than " + err.Param()
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "url":
			errors[field] = "Invalid URL format"
		case "datetime":
			errors[field] = "Invalid date, expected " + err.Param()
		case "slot_token":
			errors[field] = "Invalid slot. Must look like 09:00-11:00"
		case "gateway":
			errors[field] = "Invalid gateway. Must be: esewa or khalti"
		case "booking_status":
			errors[field] = "Invalid booking status"
		case "direction":
			errors[field] = "Invalid direction. Must be: credit or debit"
		case "oneof":
			errors[field] = "Must be one of: " + err.Param()
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}
