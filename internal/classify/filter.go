package classify

import "path"

// CapcodeFilter admits capcodes matching at least one glob pattern. With no
// patterns every capcode passes. Capcodes in the ignore set never pass.
type CapcodeFilter struct {
	patterns []string
	ignore   CapcodeSet
}

// NewCapcodeFilter creates a filter from glob patterns (`*`, `?`, `[...]`)
// and an optional ignore set.
func NewCapcodeFilter(patterns []string, ignore CapcodeSet) *CapcodeFilter {
	return &CapcodeFilter{
		patterns: append([]string(nil), patterns...),
		ignore:   ignore,
	}
}

// Enabled reports whether any glob pattern is configured.
func (f *CapcodeFilter) Enabled() bool {
	return f != nil && len(f.patterns) > 0
}

// Allow reports whether a frame addressed to capcode should be kept.
func (f *CapcodeFilter) Allow(capcode string) bool {
	if f == nil {
		return true
	}
	if f.ignore.Contains(capcode) {
		return false
	}
	if len(f.patterns) == 0 {
		return true
	}
	for _, pattern := range f.patterns {
		// A malformed pattern simply never matches.
		if ok, err := path.Match(pattern, capcode); err == nil && ok {
			return true
		}
	}
	return false
}
