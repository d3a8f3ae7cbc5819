package classify

// CapcodeSet is an immutable membership table of capcodes.
type CapcodeSet map[string]struct{}

// NewCapcodeSet builds a set from the given capcodes.
func NewCapcodeSet(capcodes ...string) CapcodeSet {
	set := make(CapcodeSet, len(capcodes))
	for _, c := range capcodes {
		set[c] = struct{}{}
	}
	return set
}

// Contains reports whether capcode is a member. A nil set contains nothing.
func (s CapcodeSet) Contains(capcode string) bool {
	_, ok := s[capcode]
	return ok
}

// Directory maps capcodes to human readable receiver names.
type Directory map[string]string

// Label returns "<name> (<capcode>)" for known capcodes and the bare
// capcode otherwise.
func (d Directory) Label(capcode string) string {
	if name, ok := d[capcode]; ok && name != "" {
		return name + " (" + capcode + ")"
	}
	return capcode
}
