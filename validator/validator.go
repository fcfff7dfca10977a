package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// minecraftNameRegex matches Java edition player names.
	minecraftNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

	// currencyRegex matches lowercase ISO 4217 codes, as used by Stripe.
	currencyRegex = regexp.MustCompile(`^[a-z]{3}$`)

	// serverAddressRegex matches a host name with an optional port.
	serverAddressRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9\-]*[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9\-]*[A-Za-z0-9])?)+(:[0-9]{1,5})?$`)
)

// Validator is a wrapper around the go-playground/validator package.
type Validator struct {
	validator *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	v := validator.New()

	_ = v.RegisterValidation("mcname", validateMinecraftName)
	_ = v.RegisterValidation("currency", validateCurrency)
	_ = v.RegisterValidation("serveraddr", validateServerAddress)

	return &Validator{
		validator: v,
	}
}

// Validate validates a struct using the validator package.
func (v *Validator) Validate(s any) error {
	return v.validator.Struct(s)
}

// ValidMinecraftName reports whether name is a valid player name.
func ValidMinecraftName(name string) bool {
	return minecraftNameRegex.MatchString(name)
}

// validateMinecraftName validates a Minecraft player name.
func validateMinecraftName(fl validator.FieldLevel) bool {
	// If the field is empty, it's valid (use required tag if it's required)
	if fl.Field().String() == "" {
		return true
	}
	return ValidMinecraftName(fl.Field().String())
}

func validateCurrency(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	return currencyRegex.MatchString(fl.Field().String())
}

func validateServerAddress(fl validator.FieldLevel) bool {
	if fl.Field().String() == "" {
		return true
	}
	return serverAddressRegex.MatchString(fl.Field().String())
}
