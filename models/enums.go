package models

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid:
		return true
	}
	return false
}

// InventoryReferenceType names the entity a history row or an outbox event refers to.
type InventoryReferenceType string

const (
	InventoryReferenceTypeCategory          InventoryReferenceType = "CAT"
	InventoryReferenceTypeItem              InventoryReferenceType = "IT"
	InventoryReferenceTypeSupplier          InventoryReferenceType = "SUP"
	InventoryReferenceTypeSupplierItem      InventoryReferenceType = "SUPI"
	InventoryReferenceTypePurchase          InventoryReferenceType = "PUR"
	InventoryReferenceTypePurchaseLine      InventoryReferenceType = "PURL"
	InventoryReferenceTypeProject           InventoryReferenceType = "PRJ"
	InventoryReferenceTypeProjectAllocation InventoryReferenceType = "PRJA"
)

func (t InventoryReferenceType) IsValid() bool {
	switch t {
	case InventoryReferenceTypeCategory, InventoryReferenceTypeItem, InventoryReferenceTypeSupplier,
		InventoryReferenceTypeSupplierItem, InventoryReferenceTypePurchase, InventoryReferenceTypePurchaseLine,
		InventoryReferenceTypeProject, InventoryReferenceTypeProjectAllocation:
		return true
	}
	return false
}

type InventoryEventAction string

const (
	InventoryEventActionCreate InventoryEventAction = "C"
	InventoryEventActionUpdate InventoryEventAction = "U"
	InventoryEventActionDelete InventoryEventAction = "D"
)

func (a InventoryEventAction) historyActionType() string {
	switch a {
	case InventoryEventActionCreate:
		return "CREATE"
	case InventoryEventActionUpdate:
		return "UPDATE"
	case InventoryEventActionDelete:
		return "DELETE"
	}
	return string(a)
}
