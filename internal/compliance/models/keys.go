package models

import (
	"strings"

	id "tokengate/pkg/domain"
)

// SanitizeKeySegment escapes delimiter characters in composite key segments
// to prevent collisions where a user-controlled identifier containing ':'
// could alias an adjacent row.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// ModuleKey builds the composite key for one (token, module-type) config row.
func ModuleKey(token id.TokenID, moduleType ModuleType) string {
	return SanitizeKeySegment(token.String()) + ":" + moduleType.String()
}

// SubjectKey builds the composite key for one (token, subject) restriction
// row. An empty subject addresses the token-wide default row.
func SubjectKey(token id.TokenID, subject id.Address) string {
	return SanitizeKeySegment(token.String()) + ":" + SanitizeKeySegment(subject.String())
}

// PairKey builds the ordered composite key for a bilateral restriction.
// The ordering matters: PairKey(US, CN) and PairKey(CN, US) are distinct rows.
func PairKey(source, destination id.CountryCode) string {
	return source.String() + ":" + destination.String()
}
