package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"vendor-bridge/domain"
)

// GetMapping retrieves the vendor mapping for a user along with its etag,
// or nil when no mapping exists.
func (s *Storage) GetMapping(ctx context.Context, userID string) (*domain.VendorMappingEntity, azcore.ETag, error) {
	resp, err := s.mappingTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, "", nil
		}
		return nil, "", err
	}
	var ent domain.VendorMappingEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, "", err
	}
	var probe struct {
		ETag string `json:"odata.etag"`
	}
	if err := json.Unmarshal(resp.Value, &probe); err != nil {
		return nil, "", err
	}
	return &ent, azcore.ETag(probe.ETag), nil
}

// InsertMapping creates a new mapping row. Conflicts surface as a 409
// ResponseError so callers can treat the row as already written.
func (s *Storage) InsertMapping(ctx context.Context, ent domain.VendorMappingEntity) error {
	payload, err := json.Marshal(ent)
	if err == nil {
		_, err = s.mappingTable.AddEntity(ctx, payload, nil)
	}
	return err
}

// UpdateMapping merges changes into an existing mapping, conditional on the
// etag read alongside it.
func (s *Storage) UpdateMapping(ctx context.Context, upd domain.VendorMappingUpdate, etag azcore.ETag) error {
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	_, err = s.mappingTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeMerge})
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 412 {
		return domain.ErrConcurrencyConflict
	}
	return err
}
