package domain

// Field names of a shipping address as used on the wire and in error messages.
const (
	FieldFullName     = "full_name"
	FieldPhone        = "phone"
	FieldAddressLine1 = "address_line1"
	FieldAddressLine2 = "address_line2"
	FieldCity         = "city"
	FieldState        = "state"
	FieldPostalCode   = "postal_code"
	FieldCountry      = "country"
)

// MinPostalCodeLength is the length at which a postal code becomes worth looking up.
const MinPostalCodeLength = 6

// RequiredAddressFields lists the mandatory fields in the order they are checked.
var RequiredAddressFields = []string{
	FieldFullName,
	FieldPhone,
	FieldAddressLine1,
	FieldCity,
	FieldState,
	FieldPostalCode,
}

// ShippingAddress is the delivery destination collected at checkout.
type ShippingAddress struct {
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// Get returns the value stored under a wire field name.
func (a ShippingAddress) Get(field string) (string, bool) {
	switch field {
	case FieldFullName:
		return a.FullName, true
	case FieldPhone:
		return a.Phone, true
	case FieldAddressLine1:
		return a.AddressLine1, true
	case FieldAddressLine2:
		return a.AddressLine2, true
	case FieldCity:
		return a.City, true
	case FieldState:
		return a.State, true
	case FieldPostalCode:
		return a.PostalCode, true
	case FieldCountry:
		return a.Country, true
	}
	return "", false
}

// With returns a copy with one field replaced. Unknown fields report false.
func (a ShippingAddress) With(field, value string) (ShippingAddress, bool) {
	switch field {
	case FieldFullName:
		a.FullName = value
	case FieldPhone:
		a.Phone = value
	case FieldAddressLine1:
		a.AddressLine1 = value
	case FieldAddressLine2:
		a.AddressLine2 = value
	case FieldCity:
		a.City = value
	case FieldState:
		a.State = value
	case FieldPostalCode:
		a.PostalCode = value
	case FieldCountry:
		a.Country = value
	default:
		return a, false
	}
	return a, true
}

// ServiceabilityResult is the latest deliverability answer for a postal code.
type ServiceabilityResult struct {
	PostalCode  string `json:"postal_code"`
	Serviceable bool   `json:"serviceable"`
	Message     string `json:"message"`
}
