package holder

import (
	"context"

	"credrelay/internal/domain"
	derrors "credrelay/pkg/domain-errors"
)

// selectCredential scans stored credentials in insertion order and returns
// the first that matches the issuer filter and can satisfy every requested
// attribute. A derived attribute is satisfiable when its source claim is
// present; a pass-through when the claim exists verbatim.
func (s *Service) selectCredential(ctx context.Context, req domain.ProofRequest) (domain.Credential, error) {
	creds, err := s.creds.List(ctx)
	if err != nil {
		return domain.Credential{}, derrors.Wrap(err, derrors.CodeInternal, "listing credentials failed")
	}

next:
	for _, cred := range creds {
		if req.IssuerFilter != "" && !domain.SameIdentifier(cred.IssuerID, req.IssuerFilter) {
			continue
		}
		for _, attr := range req.Attributes {
			if !attr.SatisfiableBy(cred) {
				continue next
			}
		}
		return cred, nil
	}
	return domain.Credential{}, derrors.Newf(derrors.CodeNoCredential,
		"no stored credential satisfies request %q", req.ID)
}
