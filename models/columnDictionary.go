package models

// ColumnDescription is one entry of the metadata dictionary shipped with
// the dataset.
type ColumnDescription struct {
	ID          uint    `gorm:"primary_key;column:ID" json:"id"`
	SourceTable string  `gorm:"column:TABLE_NAME;size:64;not null;index:idx_column_dictionary,priority:1" json:"table_name"`
	RowName     string  `gorm:"column:ROW_NAME;size:128;not null;index:idx_column_dictionary,priority:2" json:"row_name"`
	Description string  `gorm:"column:DESCRIPTION;type:text" json:"description"`
	Special     *string `gorm:"column:SPECIAL;size:255" json:"special"`
}

func (ColumnDescription) TableName() string { return "COLUMN_DICTIONARY" }

const NoDescription = "No description available"
