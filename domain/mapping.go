package domain

// Entity represents base table entity keys.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt64 = "Edm.Int64"
)

// VendorMappingEntity associates a portal user with the ERP record created
// on their behalf. Partitioned by user id, one row per user.
type VendorMappingEntity struct {
	Entity
	ExternalRecordID string `json:"ExternalRecordId"`
	CreatedAt        int64  `json:"CreatedAt,string"`
	CreatedAtType    string `json:"CreatedAt@odata.type"`
	LastUpdated      int64  `json:"LastUpdated,string"`
	LastUpdatedType  string `json:"LastUpdated@odata.type"`
}

// VendorMappingUpdate carries a partial mapping update for a conditional
// merge.
type VendorMappingUpdate struct {
	Entity
	ExternalRecordID *string `json:"ExternalRecordId,omitempty"`
	LastUpdated      *int64  `json:"LastUpdated,omitempty,string"`
	LastUpdatedType  *string `json:"LastUpdated@odata.type,omitempty"`
}

// NewVendorMapping builds a mapping entity keyed by user id.
func NewVendorMapping(userID, externalRecordID string, now int64) VendorMappingEntity {
	return VendorMappingEntity{
		Entity:           Entity{PartitionKey: userID, RowKey: userID},
		ExternalRecordID: externalRecordID,
		CreatedAt:        now,
		CreatedAtType:    EdmInt64,
		LastUpdated:      now,
		LastUpdatedType:  EdmInt64,
	}
}
