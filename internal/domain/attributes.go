package domain

// AttributeKind tags how a requested attribute is produced from a
// credential. The set is closed: requests resolve against a fixed rule
// registry at creation time instead of dispatching on untyped strings, so
// unsupported attributes fail predictably and the rules are enumerable in
// tests.
type AttributeKind string

const (
	// KindOverAge discloses a boolean "subject is at least Threshold years
	// old", computed from a date-of-birth claim.
	KindOverAge AttributeKind = "over_age"
	// KindLastN discloses the trailing N characters of a source claim.
	KindLastN AttributeKind = "last_n"
	// KindPassThrough discloses a claim value verbatim.
	KindPassThrough AttributeKind = "pass_through"
)

// Attribute is one requested disclosure, resolved to its derivation rule.
type Attribute struct {
	Name        string        `json:"name"`
	Kind        AttributeKind `json:"kind"`
	SourceClaim string        `json:"sourceClaim"`
	Threshold   int           `json:"threshold,omitempty"`
	N           int           `json:"n,omitempty"`
}

// Requestable derived attributes. Anything outside this registry resolves to
// a pass-through of the claim with the same name.
const (
	AttrOver18   = "over18"
	AttrPANLast4 = "panLast4"
)

var derivationRules = map[string]Attribute{
	AttrOver18:   {Name: AttrOver18, Kind: KindOverAge, SourceClaim: ClaimDOB, Threshold: 18},
	AttrPANLast4: {Name: AttrPANLast4, Kind: KindLastN, SourceClaim: ClaimPAN, N: 4},
}

// ResolveAttribute maps a requested attribute name to its rule.
func ResolveAttribute(name string) Attribute {
	if rule, ok := derivationRules[name]; ok {
		return rule
	}
	return Attribute{Name: name, Kind: KindPassThrough, SourceClaim: name}
}

// ResolveAttributes resolves a requested attribute list in order.
func ResolveAttributes(names []string) []Attribute {
	out := make([]Attribute, 0, len(names))
	for _, name := range names {
		out = append(out, ResolveAttribute(name))
	}
	return out
}

// SatisfiableBy reports whether the credential carries the source claim this
// attribute derives from. Satisfiability is a presence check only; actual
// derivation can still fail on malformed claim values.
func (a Attribute) SatisfiableBy(cred Credential) bool {
	_, ok := cred.Claims[a.SourceClaim]
	return ok
}
