package classify

import "github.com/dmitryelj/RPi-P2000Receiver/internal/models"

// SenderClassifier resolves the sending service of a page from static
// capcode classification sets.
type SenderClassifier struct {
	Police    CapcodeSet
	Fire      CapcodeSet
	Ambulance CapcodeSet
	Test      CapcodeSet
}

// Classify checks police, fire and ambulance membership in that order, then
// the test set. POCSAG frames without a match fall back to their sub-type;
// unmatched FLEX capcodes are Unknown.
func (c SenderClassifier) Classify(format models.Format, capcode string) models.Sender {
	switch {
	case c.Police.Contains(capcode):
		return models.SenderPolice
	case c.Fire.Contains(capcode):
		return models.SenderBrand
	case c.Ambulance.Contains(capcode):
		return models.SenderAmbulance
	case c.Test.Contains(capcode):
		return models.SenderTest
	}

	switch format {
	case models.FormatPocsagAlpha:
		return models.SenderPocsagAlpha
	case models.FormatPocsagNumeric:
		return models.SenderPocsagNumeric
	case models.FormatPocsagEmpty:
		return models.SenderPocsagEmpty
	default:
		return models.SenderUnknown
	}
}
