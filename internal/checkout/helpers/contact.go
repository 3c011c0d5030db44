package helpers

import (
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
)

// DefaultCountry is applied when the buyer leaves the country blank.
const DefaultCountry = "UK"

// Contact is the buyer and shipping snapshot frozen onto an order.
type Contact struct {
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Address1  string `json:"address1" validate:"max=200"`
	Address2  string `json:"address2" validate:"max=200"`
	City      string `json:"city" validate:"max=100"`
	Postcode  string `json:"postcode" validate:"max=20"`
	Country   string `json:"country" validate:"max=56"`
}

var contactValidator = validator.New(validator.WithRequiredStructEnabled())

// Normalize trims every field and fills the default country.
func (c Contact) Normalize() Contact {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Address1 = strings.TrimSpace(c.Address1)
	c.Address2 = strings.TrimSpace(c.Address2)
	c.City = strings.TrimSpace(c.City)
	c.Postcode = strings.TrimSpace(c.Postcode)
	c.Country = strings.TrimSpace(c.Country)
	if c.Country == "" {
		c.Country = DefaultCountry
	}
	return c
}

// ValidateContact checks the snapshot before any write. Guests must leave an
// email so the order can be traced back to them.
func ValidateContact(contact Contact, guest bool) error {
	if guest && contact.Email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required for guest checkout").
			WithDetails(map[string]string{"email": "required"})
	}
	if err := contactValidator.Struct(contact); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid contact details").
			WithDetails(fieldErrors(err))
	}
	return nil
}

// OptionalString maps blank strings to nil for nullable columns.
func OptionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, fe := range verrs {
		out[jsonFieldName(fe.Field())] = fe.Tag()
	}
	return out
}

var fieldNames = map[string]string{
	"Email":     "email",
	"FirstName": "first_name",
	"LastName":  "last_name",
	"Address1":  "address1",
	"Address2":  "address2",
	"City":      "city",
	"Postcode":  "postcode",
	"Country":   "country",
}

func jsonFieldName(field string) string {
	if name, ok := fieldNames[field]; ok {
		return name
	}
	return strings.ToLower(field)
}
