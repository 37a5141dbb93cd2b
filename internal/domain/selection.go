package domain

import "strings"

// Selection is the ordered, duplicate-free list of CPV codes a user picked.
type Selection []string

// NormalizeSelection trims codes, drops empty entries and keeps the first occurrence of duplicates.
func NormalizeSelection(codes []string) Selection {
	out := make(Selection, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// ParseSelection splits a comma separated code list.
func ParseSelection(raw string) Selection {
	if strings.TrimSpace(raw) == "" {
		return Selection{}
	}
	return NormalizeSelection(strings.Split(raw, ","))
}

func (s Selection) Contains(code string) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

func (s Selection) Index(code string) int {
	for i, c := range s {
		if c == code {
			return i
		}
	}
	return -1
}

func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	copy(out, s)
	return out
}

// Add returns a new selection with code appended. It reports false and leaves
// the selection untouched when code is empty, already present, or the
// selection already holds maxCodes entries.
func (s Selection) Add(code string, maxCodes int) (Selection, bool) {
	if code == "" || s.Contains(code) || len(s) >= maxCodes {
		return s, false
	}
	out := make(Selection, len(s), len(s)+1)
	copy(out, s)
	return append(out, code), true
}

// Remove returns a new selection without code.
func (s Selection) Remove(code string) (Selection, bool) {
	idx := s.Index(code)
	if code == "" || idx < 0 {
		return s, false
	}
	out := make(Selection, 0, len(s)-1)
	out = append(out, s[:idx]...)
	return append(out, s[idx+1:]...), true
}

// Remaining is how many more codes fit under maxCodes.
func (s Selection) Remaining(maxCodes int) int {
	if n := maxCodes - len(s); n > 0 {
		return n
	}
	return 0
}

func (s Selection) String() string {
	return strings.Join(s, ",")
}
