package enums

import "fmt"

// WarrantyStatus tracks a device's warranty lifecycle. A device that reaches
// `replaced` never leaves it.
type WarrantyStatus string

const (
	WarrantyStatusNew      WarrantyStatus = "new"
	WarrantyStatusActive   WarrantyStatus = "active"
	WarrantyStatusExpired  WarrantyStatus = "expired"
	WarrantyStatusReplaced WarrantyStatus = "replaced"
)

var validWarrantyStatuses = []WarrantyStatus{
	WarrantyStatusNew,
	WarrantyStatusActive,
	WarrantyStatusExpired,
	WarrantyStatusReplaced,
}

// String implements fmt.Stringer.
func (w WarrantyStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WarrantyStatus.
func (w WarrantyStatus) IsValid() bool {
	for _, candidate := range validWarrantyStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWarrantyStatus converts raw input into a WarrantyStatus.
func ParseWarrantyStatus(value string) (WarrantyStatus, error) {
	for _, candidate := range validWarrantyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid warranty status %q", value)
}
