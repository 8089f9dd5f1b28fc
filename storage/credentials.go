package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"vendor-bridge/domain"
	"vendor-bridge/identity"
)

type approverCredentialEntity struct {
	domain.Entity
	TokenRef string `json:"TokenRef"`
	ERPUser  string `json:"ErpUser"`
	Secret   string `json:"Secret"`
}

var errCredentialNotFound = errors.New("approver credential not found")

// ApproverCredential looks up the individual ERP credential registered for
// an approver and verifies the presented strong identity token against it.
func (s *Storage) ApproverCredential(ctx context.Context, userID, tokenRef string) (identity.Credential, error) {
	resp, err := s.credentialTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return identity.Credential{}, errCredentialNotFound
		}
		return identity.Credential{}, err
	}
	var ent approverCredentialEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return identity.Credential{}, err
	}
	if ent.TokenRef != tokenRef {
		return identity.Credential{}, fmt.Errorf("identity token does not match registered credential for %s", userID)
	}
	return identity.Credential{
		Kind:    identity.KindIndividual,
		User:    ent.ERPUser,
		Secret:  ent.Secret,
		Subject: userID,
	}, nil
}
