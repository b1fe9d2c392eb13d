package enums

import "fmt"

// AuditAction labels a mutating admin operation in the audit trail.
type AuditAction string

const (
	AuditActionCreate       AuditAction = "CREATE"
	AuditActionUpdate       AuditAction = "UPDATE"
	AuditActionArchive      AuditAction = "ARCHIVE"
	AuditActionDelete       AuditAction = "DELETE"
	AuditActionStockAdjust  AuditAction = "STOCK_ADJUST"
	AuditActionStatusUpdate AuditAction = "STATUS_UPDATE"
	AuditActionRestore      AuditAction = "RESTORE"
)

// AuditEntity identifies the entity type an audit entry refers to.
type AuditEntity string

const (
	AuditEntityProduct  AuditEntity = "PRODUCT"
	AuditEntityOrder    AuditEntity = "ORDER"
	AuditEntityVoucher  AuditEntity = "VOUCHER"
	AuditEntityCategory AuditEntity = "CATEGORY"
)

var validAuditEntities = []AuditEntity{
	AuditEntityProduct,
	AuditEntityOrder,
	AuditEntityVoucher,
	AuditEntityCategory,
}

// ParseAuditEntity converts raw input into an AuditEntity.
func ParseAuditEntity(value string) (AuditEntity, error) {
	for _, candidate := range validAuditEntities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit entity %q", value)
}
