package enums

import "fmt"

// PaymentMethod identifies how the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "COD"
	PaymentMethodGCash PaymentMethod = "GCASH"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodGCash,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresReference reports whether the method needs a payment reference number.
func (p PaymentMethod) RequiresReference() bool {
	return p == PaymentMethodGCash
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
