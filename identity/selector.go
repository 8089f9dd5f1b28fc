// Package identity chooses the credential an ERP call runs under.
package identity

import (
	"context"
	"fmt"

	"vendor-bridge/domain"
)

// CredentialKind distinguishes audit identities on the ERP side.
type CredentialKind string

const (
	// KindIndividual propagates the submitter's own identity; the ERP
	// audit trail shows the individual.
	KindIndividual CredentialKind = "individual"
	// KindSystem is the shared system account used for untrusted
	// submitters; accountability lives in the vendor mapping instead.
	KindSystem CredentialKind = "system"
)

// Credential is a resolved identity for one ERP call.
type Credential struct {
	Kind    CredentialKind
	User    string
	Secret  string
	Subject string
}

// CredentialResolutionError signals that a credential could not be
// resolved. The worker's fallback policy decides what happens next.
type CredentialResolutionError struct {
	Role   domain.Role
	Reason string
	Err    error
}

func (e *CredentialResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s credential: %s: %v", e.Role, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve %s credential: %s", e.Role, e.Reason)
}

func (e *CredentialResolutionError) Unwrap() error { return e.Err }

// CredentialStore resolves an approver's strong identity token to their
// individual ERP credential.
type CredentialStore interface {
	ApproverCredential(ctx context.Context, userID, tokenRef string) (Credential, error)
}

// Selector picks the credential for a command based on the submitter's
// role. Role dispatch is a tagged variant, not a hierarchy: approvers get
// identity propagation, vendors get the system account.
type Selector struct {
	store  CredentialStore
	system Credential
}

func NewSelector(store CredentialStore, systemUser, systemSecret string) Selector {
	return Selector{
		store:  store,
		system: Credential{Kind: KindSystem, User: systemUser, Secret: systemSecret},
	}
}

// Resolve returns the credential for the given user context. Approver
// resolution failures are returned as *CredentialResolutionError; the
// selector never substitutes the system credential on its own.
func (s Selector) Resolve(ctx context.Context, uc domain.UserContext) (Credential, error) {
	switch uc.Role {
	case domain.RoleApprover:
		cred, err := s.store.ApproverCredential(ctx, uc.UserID, uc.StrongIdentityToken)
		if err != nil {
			return Credential{}, &CredentialResolutionError{Role: uc.Role, Reason: "credential store lookup failed", Err: err}
		}
		return cred, nil
	case domain.RoleVendor:
		return s.system, nil
	default:
		return Credential{}, &CredentialResolutionError{Role: uc.Role, Reason: "unknown role"}
	}
}

// System exposes the shared system credential for the explicit fallback
// path.
func (s Selector) System() Credential { return s.system }

// FallbackPolicy controls how an approver command proceeds when its
// individual credential cannot be resolved.
type FallbackPolicy string

const (
	// FallbackFail fails the command without touching the ERP backend.
	FallbackFail FallbackPolicy = "fail"
	// FallbackSystem degrades to the system credential and records a
	// warning in the outcome event.
	FallbackSystem FallbackPolicy = "system"
)

// ParseFallbackPolicy validates a configured policy value.
func ParseFallbackPolicy(v string) (FallbackPolicy, error) {
	switch FallbackPolicy(v) {
	case FallbackFail, FallbackSystem:
		return FallbackPolicy(v), nil
	case "":
		return FallbackFail, nil
	default:
		return "", fmt.Errorf("unknown credential fallback policy %q", v)
	}
}
