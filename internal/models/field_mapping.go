package models

// FieldMapping translates a logical field name into the ADO field reference
// for one work item type. Rows are seeded once and never edited at runtime.
type FieldMapping struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	WorkItemType string `gorm:"size:64;not null;uniqueIndex:idx_field_mapping"`
	LogicalField string `gorm:"size:64;not null;uniqueIndex:idx_field_mapping"`
	AdoFieldName string `gorm:"size:255;not null"`
}
