package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates the check stores (one per registered check table, all
// sharing the DqCheck schema) and the pipeline's own tables. Source tables are
// owned by the ingestion job and only migrated on request.
func MigrateTable(db *gorm.DB, checkTables []string, includeSources bool) error {
	for _, t := range checkTables {
		if err := db.Table(t).AutoMigrate(&DqCheck{}); err != nil {
			return err
		}
	}

	if err := db.AutoMigrate(
		&DqSuggestion{}, &DqRun{}, &ColumnDescription{},
	); err != nil {
		return err
	}

	if includeSources {
		return db.AutoMigrate(
			&Application{}, &Bureau{}, &PreviousApplication{}, &Installment{},
		)
	}
	return nil
}
