package models

import "fmt"

// Sender is the category of the service that sent a page. The numeric
// values are the stable codes exposed by Code().
type Sender int

const (
	SenderUnknown       Sender = 0
	SenderBrand         Sender = 1
	SenderPolice        Sender = 2
	SenderAmbulance     Sender = 3
	SenderTest          Sender = 16
	SenderPocsag        Sender = 64
	SenderPocsagAlpha   Sender = 65
	SenderPocsagNumeric Sender = 66
	SenderPocsagEmpty   Sender = 67
)

var senderNames = map[Sender]string{
	SenderUnknown:       "unknown",
	SenderBrand:         "brand",
	SenderPolice:        "police",
	SenderAmbulance:     "ambulance",
	SenderTest:          "test",
	SenderPocsag:        "pocsag",
	SenderPocsagAlpha:   "pocsag_alpha",
	SenderPocsagNumeric: "pocsag_numeric",
	SenderPocsagEmpty:   "pocsag_empty",
}

// Code returns the numeric sender code.
func (s Sender) Code() int { return int(s) }

func (s Sender) String() string {
	if name, ok := senderNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sender(%d)", int(s))
}

// MarshalText encodes the sender as its lowercase name.
func (s Sender) MarshalText() ([]byte, error) {
	name, ok := senderNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown sender code %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a sender name produced by MarshalText.
func (s *Sender) UnmarshalText(text []byte) error {
	for code, name := range senderNames {
		if name == string(text) {
			*s = code
			return nil
		}
	}
	return fmt.Errorf("unknown sender %q", string(text))
}
