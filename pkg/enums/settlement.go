package enums

import "fmt"

// SettlementFactType classifies rows in the lab settlement fact table.
type SettlementFactType string

const (
	SettlementFactEarned SettlementFactType = "earned"
	SettlementFactPaid   SettlementFactType = "paid"
)

var validSettlementFactTypes = []SettlementFactType{
	SettlementFactEarned,
	SettlementFactPaid,
}

// IsValid reports whether the value is a known settlement fact type.
func (s SettlementFactType) IsValid() bool {
	for _, candidate := range validSettlementFactTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettlementFactType converts raw input into SettlementFactType.
func ParseSettlementFactType(value string) (SettlementFactType, error) {
	for _, candidate := range validSettlementFactTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement fact type %q", value)
}
