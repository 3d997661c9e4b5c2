package mail

import (
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// NormalizeAddress trims and lower-cases an address. Local part and domain
// are folded the same way, so comparisons are case-insensitive everywhere.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// ScanAddresses returns every email-shaped substring of text, normalized.
func ScanAddresses(text string) []string {
	matches := addressPattern.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = NormalizeAddress(m)
	}
	return matches
}

// AddressSet is an insertion-ordered set of normalized addresses.
type AddressSet struct {
	order []string
	index map[string]struct{}
}

func NewAddressSet(addrs ...string) *AddressSet {
	s := &AddressSet{index: make(map[string]struct{})}
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts addr and reports whether it was new.
func (s *AddressSet) Add(addr string) bool {
	addr = NormalizeAddress(addr)
	if addr == "" {
		return false
	}
	if _, ok := s.index[addr]; ok {
		return false
	}
	s.index[addr] = struct{}{}
	s.order = append(s.order, addr)
	return true
}

func (s *AddressSet) Contains(addr string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[NormalizeAddress(addr)]
	return ok
}

func (s *AddressSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// List returns a copy of the addresses in insertion order.
func (s *AddressSet) List() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

func (s *AddressSet) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(s.order, ", ")
}

// ExtractAddresses collects header addresses and addresses found in bodies
// across the whole thread. Gaps are skipped.
func ExtractAddresses(thread Thread) *AddressSet {
	set := NewAddressSet()
	for _, m := range thread.Messages() {
		for _, p := range m.Participants() {
			set.Add(p.Email)
		}
		for _, addr := range ScanAddresses(m.Body) {
			set.Add(addr)
		}
	}
	return set
}
