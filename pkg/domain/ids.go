package domain

import (
	"fmt"
	"strings"
)

// TokenID identifies a permissioned security token. It is a domain primitive
// so that token identifiers cannot be confused with subject addresses in
// function signatures.
type TokenID string

// ParseTokenID validates and returns a TokenID.
func ParseTokenID(s string) (TokenID, error) {
	if s == "" {
		return "", fmt.Errorf("token id cannot be empty")
	}
	return TokenID(s), nil
}

// String returns the string representation.
func (t TokenID) String() string { return string(t) }

// IsNil returns true if the token id is empty.
func (t TokenID) IsNil() bool { return t == "" }

// Address identifies a subject (user or account) whose transfer activity is
// evaluated. Addresses are treated as opaque, already-authenticated strings;
// resolution to identities happens in the identity provider.
type Address string

// ParseAddress validates and returns an Address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", fmt.Errorf("address cannot be empty")
	}
	return Address(s), nil
}

// String returns the string representation.
func (a Address) String() string { return string(a) }

// IsNil returns true if the address is empty.
func (a Address) IsNil() bool { return a == "" }

// CountryCode is an ISO-3166 alpha-2 country code, always upper case.
type CountryCode string

// ParseCountryCode validates and returns a CountryCode.
// Returns an error unless the input is exactly two ASCII letters.
func ParseCountryCode(s string) (CountryCode, error) {
	if len(s) != 2 {
		return "", fmt.Errorf("country code must be two letters, got %q", s)
	}
	up := strings.ToUpper(s)
	for _, r := range up {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("country code must be two letters, got %q", s)
		}
	}
	return CountryCode(up), nil
}

// String returns the string representation.
func (c CountryCode) String() string { return string(c) }

// IsNil returns true if the country code is empty.
func (c CountryCode) IsNil() bool { return c == "" }
