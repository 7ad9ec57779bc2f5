package enums

import "fmt"

// FaultType categorizes the reported device fault on a repair.
type FaultType string

const (
	FaultTypeScreen       FaultType = "screen"
	FaultTypeChargingPort FaultType = "charging_port"
	FaultTypeFlash        FaultType = "flash"
	FaultTypeSpeaker      FaultType = "speaker"
	FaultTypeBoard        FaultType = "board"
	FaultTypeOther        FaultType = "other"
)

var validFaultTypes = []FaultType{
	FaultTypeScreen,
	FaultTypeChargingPort,
	FaultTypeFlash,
	FaultTypeSpeaker,
	FaultTypeBoard,
	FaultTypeOther,
}

// IsValid reports whether the value is a known FaultType.
func (f FaultType) IsValid() bool {
	for _, candidate := range validFaultTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFaultType converts raw input into a FaultType.
func ParseFaultType(value string) (FaultType, error) {
	for _, candidate := range validFaultTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fault type %q", value)
}
