package models

import (
	"fmt"

	"gorm.io/gorm"
)

// binaryKeyColumns are compared byte for byte in Go (reconciliation keys),
// so MySQL must not fold case or accents on them either.
var binaryKeyColumns = []struct {
	model  any
	column string
}{
	{&Vehicle{}, "code"},
	{&CargoRecord{}, "sync_key"},
}

const binaryCollation = "utf8mb4_bin"

// MigrateTable creates or updates every local table.
func MigrateTable(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Vehicle{},
		&CargoRecord{},
		&FareParameter{}, &FeeParameter{},
		&FreightEntry{}, &FreightEntryCargo{},
		&SyncRun{},
	); err != nil {
		return err
	}
	if db.Dialector.Name() != "mysql" {
		return nil
	}
	return applyBinaryKeyCollation(db)
}

func applyBinaryKeyCollation(db *gorm.DB) error {
	for _, col := range binaryKeyColumns {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(col.model); err != nil {
			return err
		}
		table := stmt.Schema.Table
		field := stmt.Schema.LookUpField(col.column)
		if field == nil || field.Size <= 0 {
			return fmt.Errorf("%s.%s: no sized column to collate", table, col.column)
		}

		var current string
		err := db.Raw(
			"SELECT COALESCE(COLLATION_NAME, '') FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?",
			table, col.column,
		).Scan(&current).Error
		if err != nil {
			return fmt.Errorf("read collation of %s.%s: %w", table, col.column, err)
		}
		if current == binaryCollation {
			continue
		}
		if err := db.Exec(binaryCollationDDL(table, col.column, field.Size)).Error; err != nil {
			return fmt.Errorf("set collation of %s.%s: %w", table, col.column, err)
		}
	}
	return nil
}

func binaryCollationDDL(table, column string, size int) string {
	return fmt.Sprintf("ALTER TABLE `%s` MODIFY `%s` VARCHAR(%d) CHARACTER SET utf8mb4 COLLATE %s NOT NULL",
		table, column, size, binaryCollation)
}
