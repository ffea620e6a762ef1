package domain

import (
	"time"

	derrors "credrelay/pkg/domain-errors"
)

const dobLayout = "2006-01-02"

// Derive computes the disclosed value set for the requested attributes from
// a single credential. A missing or underivable source claim aborts the
// whole derivation with UnsupportedAttribute naming the attribute; fields
// are never silently omitted.
//
// now is injected so age checks are reproducible in tests.
func Derive(cred Credential, attrs []Attribute, now time.Time) (map[string]any, error) {
	disclosed := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		value, ok := cred.Claims[attr.SourceClaim]
		if !ok {
			return nil, derrors.Newf(derrors.CodeUnsupportedAttribute,
				"attribute %q: source claim %q not present", attr.Name, attr.SourceClaim)
		}
		switch attr.Kind {
		case KindOverAge:
			dob, err := time.Parse(dobLayout, value)
			if err != nil {
				return nil, derrors.Newf(derrors.CodeUnsupportedAttribute,
					"attribute %q: claim %q is not a %s date", attr.Name, attr.SourceClaim, dobLayout)
			}
			disclosed[attr.Name] = yearsBetween(dob, now) >= attr.Threshold
		case KindLastN:
			disclosed[attr.Name] = lastN(value, attr.N)
		case KindPassThrough:
			disclosed[attr.Name] = value
		default:
			return nil, derrors.Newf(derrors.CodeUnsupportedAttribute,
				"attribute %q: unknown derivation kind %q", attr.Name, attr.Kind)
		}
	}
	return disclosed, nil
}

// yearsBetween counts whole calendar years from born to now: the year
// difference, decremented while the anniversary has not yet occurred.
// Calendar subtraction, not millisecond division, so the boundary is
// inclusive on the exact anniversary.
func yearsBetween(born, now time.Time) int {
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return years
}

// lastN returns the trailing n characters, or the whole string when it is
// shorter. No padding.
func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
