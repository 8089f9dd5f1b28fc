package domain

// Operation identifies the vendor mutation requested by the portal.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Role identifies who submitted a command and therefore which credential
// the ERP call runs under.
type Role string

const (
	RoleApprover Role = "approver"
	RoleVendor   Role = "vendor"
)

// UserContext describes the submitter of a command. Exactly one of
// StrongIdentityToken / InvitationToken is populated, selected by Role.
type UserContext struct {
	Role                Role   `json:"role"`
	UserID              string `json:"userId"`
	StrongIdentityToken string `json:"strongIdentityToken,omitempty"`
	InvitationToken     string `json:"invitationToken,omitempty"`
}

// VendorPayload carries the vendor master record fields. All values are
// opaque to the pipeline; the ERP backend owns their business validation.
type VendorPayload struct {
	Name       string `json:"name"`
	TaxID      string `json:"taxId"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	IBAN       string `json:"iban,omitempty"`
	BankName   string `json:"bankName,omitempty"`
}

// Command is a pending vendor mutation. CorrelationID is assigned once at
// ingestion and acts as the idempotency key through queue, worker, event
// and notification. DeliveryAttempt is physical queue bookkeeping and is
// never serialized with the command body.
type Command struct {
	CorrelationID   string        `json:"correlationId"`
	Operation       Operation     `json:"operation"`
	Payload         VendorPayload `json:"payload"`
	UserContext     UserContext   `json:"userContext"`
	EnqueuedAt      int64         `json:"enqueuedAt"`
	DeliveryAttempt int64         `json:"-"`
}

// Validate checks the schema and the user context invariant. Violations are
// ingestion-time failures; an invalid command must never be enqueued.
func (c Command) Validate() error {
	switch c.Operation {
	case OperationCreate, OperationUpdate, OperationDelete:
	default:
		return ValidationError{Field: "operation", Reason: "unknown operation"}
	}
	// delete identifies the vendor through the user context; only create
	// and update carry vendor master data
	if c.Operation != OperationDelete && c.Payload.Name == "" {
		return ValidationError{Field: "payload.name", Reason: "name is required"}
	}
	return c.UserContext.Validate()
}

// Validate enforces the role/token invariant.
func (u UserContext) Validate() error {
	if u.UserID == "" {
		return ValidationError{Field: "userContext.userId", Reason: "userId is required"}
	}
	switch u.Role {
	case RoleApprover:
		if u.StrongIdentityToken == "" {
			return ValidationError{Field: "userContext.strongIdentityToken", Reason: "approver commands require a strong identity token"}
		}
		if u.InvitationToken != "" {
			return ValidationError{Field: "userContext.invitationToken", Reason: "approver commands must not carry an invitation token"}
		}
	case RoleVendor:
		if u.InvitationToken == "" {
			return ValidationError{Field: "userContext.invitationToken", Reason: "vendor commands require an invitation token"}
		}
		if u.StrongIdentityToken != "" {
			return ValidationError{Field: "userContext.strongIdentityToken", Reason: "vendor commands must not carry a strong identity token"}
		}
	default:
		return ValidationError{Field: "userContext.role", Reason: "unknown role"}
	}
	return nil
}
