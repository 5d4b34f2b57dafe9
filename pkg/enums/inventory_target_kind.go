package enums

// InventoryTargetKind tells whether a stock target is a variant or a bare product.
type InventoryTargetKind string

const (
	InventoryTargetVariant InventoryTargetKind = "variant"
	InventoryTargetProduct InventoryTargetKind = "product"
)

var inventoryTargetKinds = newValueSet[InventoryTargetKind]("inventory target kind",
	InventoryTargetVariant,
	InventoryTargetProduct,
)

func (i InventoryTargetKind) String() string {
	return string(i)
}

func (i InventoryTargetKind) IsValid() bool {
	return inventoryTargetKinds.has(i)
}

func ParseInventoryTargetKind(value string) (InventoryTargetKind, error) {
	return inventoryTargetKinds.parse(value)
}
