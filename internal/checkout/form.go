package checkout

import (
	"strings"

	"github.com/go-playground/validator/v10"

	svcerrors "github.com/snapzone/storefront/internal/errors"
	"github.com/snapzone/storefront/internal/validation"
)

// Form is the checkout contact and address form.
type Form struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"required"`
	Zone    Zone   `json:"zone" validate:"required,oneof=within outside"`
}

var validate = validation.New()

// Normalize trims surrounding whitespace from every field.
func (f Form) Normalize() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Email:   strings.TrimSpace(f.Email),
		Address: strings.TrimSpace(f.Address),
		Zone:    Zone(strings.TrimSpace(string(f.Zone))),
	}
}

// Validate checks the form and reports failures per field.
func (f Form) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return svcerrors.Validation("Invalid checkout form")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "required"
		case "email":
			fields[fe.Field()] = "must be a valid email address"
		case "oneof":
			fields[fe.Field()] = "must be one of: " + fe.Param()
		default:
			fields[fe.Field()] = "invalid"
		}
	}
	return svcerrors.FieldErrors("Invalid checkout form", fields)
}

// ShippingAddress joins the non-empty contact fields and the zone label with
// ", ".
func (f Form) ShippingAddress(p Policy) string {
	parts := make([]string, 0, 5)
	for _, s := range []string{f.Name, f.Phone, f.Email, f.Address, p.Label(f.Zone)} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
