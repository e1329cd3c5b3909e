package address

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/service/serviceability"
)

// Submit control labels.
const (
	LabelPlaceOrder     = "Place Order"
	LabelChecking       = "Checking..."
	LabelNotDeliverable = "Not deliverable"
)

type checker interface {
	Update(postalCode string)
	State() serviceability.State
}

// SubmitControl tells the client how to render the place-order button.
type SubmitControl struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// Form collects the shipping address for one checkout session.
type Form struct {
	checker checker
	country string

	mu      sync.Mutex
	address domain.ShippingAddress
}

// NewForm builds an empty form. The country is fixed for the deployment.
func NewForm(c checker, country string) *Form {
	return &Form{
		checker: c,
		country: country,
		address: domain.ShippingAddress{Country: country},
	}
}

// Prefill copies a saved address into the form. The country stays fixed.
func (f *Form) Prefill(a domain.ShippingAddress) {
	a.Country = f.country
	f.mu.Lock()
	f.address = normalize(a)
	postal := f.address.PostalCode
	f.mu.Unlock()
	f.checker.Update(postal)
}

// Set changes one field. Country cannot be edited.
func (f *Form) Set(field, value string) error {
	return f.Apply(map[string]string{field: value})
}

// Apply changes several fields at once. When any field is rejected none of
// them is written. A postal code edit is handed to the checker after the
// other fields are in place.
func (f *Form) Apply(fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f.mu.Lock()
	next := f.address
	for _, field := range keys {
		if field == domain.FieldCountry {
			f.mu.Unlock()
			return &domain.ValidationError{Field: field, Reason: domain.ReasonInvalidFormat, Message: "Country cannot be changed"}
		}
		var ok bool
		next, ok = next.With(field, strings.TrimSpace(fields[field]))
		if !ok {
			f.mu.Unlock()
			return &domain.ValidationError{Field: field, Reason: domain.ReasonInvalidFormat, Message: fmt.Sprintf("Unknown field %s", field)}
		}
	}
	f.address = next
	f.mu.Unlock()

	if _, ok := fields[domain.FieldPostalCode]; ok {
		f.checker.Update(next.PostalCode)
	}
	return nil
}

// Address returns a copy of the current values.
func (f *Form) Address() domain.ShippingAddress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.address
}

// Serviceability exposes the checker state for the current postal code.
func (f *Form) Serviceability() serviceability.State {
	return f.checker.State()
}

// Validate returns the address ready for submission or the first reason it is not.
func (f *Form) Validate() (domain.ShippingAddress, error) {
	a := f.Address()

	for _, field := range domain.RequiredAddressFields {
		v, _ := a.Get(field)
		if strings.TrimSpace(v) == "" {
			return domain.ShippingAddress{}, domain.MissingField(field)
		}
	}

	st := f.checker.State()
	if st.Result.PostalCode != a.PostalCode || st.Checking {
		return domain.ShippingAddress{}, &domain.ValidationError{
			Field:   domain.FieldPostalCode,
			Reason:  domain.ReasonCheckInFlight,
			Message: "Still checking delivery to this pincode",
		}
	}
	if !st.Result.Serviceable {
		msg := st.Result.Message
		if msg == "" {
			msg = "Delivery is not available to this pincode"
		}
		return domain.ShippingAddress{}, &domain.ValidationError{
			Field:   domain.FieldPostalCode,
			Reason:  domain.ReasonNotServiceable,
			Message: msg,
		}
	}
	return a, nil
}

// SubmitControl derives the button state from the serviceability check.
func (f *Form) SubmitControl(loading bool) SubmitControl {
	st := f.checker.State()
	switch {
	case st.Checking:
		return SubmitControl{Enabled: false, Label: LabelChecking}
	case !st.Result.Serviceable:
		return SubmitControl{Enabled: false, Label: LabelNotDeliverable}
	case loading:
		return SubmitControl{Enabled: false, Label: LabelPlaceOrder}
	default:
		return SubmitControl{Enabled: true, Label: LabelPlaceOrder}
	}
}

func normalize(a domain.ShippingAddress) domain.ShippingAddress {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Phone = strings.TrimSpace(a.Phone)
	a.AddressLine1 = strings.TrimSpace(a.AddressLine1)
	a.AddressLine2 = strings.TrimSpace(a.AddressLine2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	return a
}
