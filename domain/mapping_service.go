package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	log "github.com/sirupsen/logrus"
)

// MappingStorage defines the table operations needed to maintain vendor
// mappings.
type MappingStorage interface {
	GetMapping(ctx context.Context, userID string) (*VendorMappingEntity, azcore.ETag, error)
	InsertMapping(ctx context.Context, ent VendorMappingEntity) error
	// UpdateMapping merges the update only if the stored entity still
	// carries the given etag.
	UpdateMapping(ctx context.Context, upd VendorMappingUpdate, etag azcore.ETag) error
}

// MappingService owns VendorMapping records. Upsert is idempotent on the
// natural key (user id): replaying the same outcome leaves the store
// unchanged, and concurrent redeliveries race safely through insert-then-read
// plus etag-conditional updates.
type MappingService struct {
	st  MappingStorage
	now func() int64
}

func NewMappingService(st MappingStorage, now func() int64) MappingService {
	return MappingService{st: st, now: now}
}

const upsertAttempts = 3

// Upsert records the association between a portal user and the ERP record
// id assigned to them.
func (s MappingService) Upsert(ctx context.Context, userID, externalRecordID string) error {
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		ent, etag, err := s.st.GetMapping(ctx, userID)
		if err != nil {
			return err
		}
		if ent == nil {
			err := s.st.InsertMapping(ctx, NewVendorMapping(userID, externalRecordID, s.now()))
			var respErr *azcore.ResponseError
			if errors.As(err, &respErr) && respErr.StatusCode == 409 {
				// another delivery of the same outcome won the insert
				continue
			}
			return err
		}
		if ent.ExternalRecordID == externalRecordID {
			return nil
		}
		log.WithFields(log.Fields{"user": userID, "current": ent.ExternalRecordID, "new": externalRecordID}).
			Warn("vendor mapping record id changed")
		ts := s.now()
		t := EdmInt64
		upd := VendorMappingUpdate{
			Entity:           ent.Entity,
			ExternalRecordID: &externalRecordID,
			LastUpdated:      &ts,
			LastUpdatedType:  &t,
		}
		err = s.st.UpdateMapping(ctx, upd, etag)
		if errors.Is(err, ErrConcurrencyConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("upsert mapping for %s: %w", userID, ErrConcurrencyConflict)
}

// Lookup returns the ERP record id mapped to the user, or empty when no
// mapping exists yet.
func (s MappingService) Lookup(ctx context.Context, userID string) (string, error) {
	ent, _, err := s.st.GetMapping(ctx, userID)
	if err != nil || ent == nil {
		return "", err
	}
	return ent.ExternalRecordID, nil
}
