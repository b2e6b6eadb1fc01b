package db

import (
	"database/sql"
	"fmt"
	"strings"
)

const (
	// TargetSchemaVersion is the highest schema version this version of the
	// code supports for the semanticindex component.
	TargetSchemaVersion int64 = 1

	// SemanticIndexComponent names the semantic search index component in
	// the version registry.
	SemanticIndexComponent = "semanticindex"
)

// GetComponentSchemaVersion retrieves the schema version for a component.
// Returns 0 when the component is unknown or the registry table does not
// exist yet.
func GetComponentSchemaVersion(db *sql.DB, componentName string) (int64, error) {
	query := `SELECT version FROM zotkit_versions WHERE component = ?;`
	row := db.QueryRow(query, componentName)

	var version int64
	err := row.Scan(&version)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		if strings.Contains(err.Error(), "no such table") && strings.Contains(err.Error(), "zotkit_versions") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan version for component '%s': %w", componentName, err)
	}
	return version, nil
}

// InitializeSchema creates the semantic index schema and records the given
// version for the semanticindex component.
func InitializeSchema(db *sql.DB, schemaVersionToSet int64) error {
	_, err := db.Exec(SchemaV1)
	if err != nil {
		return fmt.Errorf("failed to execute schema v1 SQL: %w", err)
	}

	insertVersionSQL := `
INSERT INTO zotkit_versions (component, version) VALUES (?, ?)
ON CONFLICT(component) DO UPDATE SET version = excluded.version, created_at = unixepoch();`

	_, err = db.Exec(insertVersionSQL, SemanticIndexComponent, schemaVersionToSet)
	if err != nil {
		return fmt.Errorf("failed to insert/update version for component %s to %d: %w", SemanticIndexComponent, schemaVersionToSet, err)
	}
	return nil
}

// UpgradeDB brings the semanticindex component of the connected database to
// appTargetSchemaVersion. dbIdentifierForLog is used in error text only.
func UpgradeDB(db *sql.DB, dbIdentifierForLog string, appTargetSchemaVersion int64) error {
	currentDBVersion, err := GetComponentSchemaVersion(db, SemanticIndexComponent)
	if err != nil {
		return err
	}

	switch {
	case currentDBVersion == 0:
		// Uninitialized or new database.
		if err := InitializeSchema(db, appTargetSchemaVersion); err != nil {
			return fmt.Errorf("failed to initialize component %s in database '%s': %w", SemanticIndexComponent, dbIdentifierForLog, err)
		}
		return nil
	case currentDBVersion == appTargetSchemaVersion:
		return nil
	case currentDBVersion < appTargetSchemaVersion:
		return fmt.Errorf("component %s in database '%s' has schema version %d, which is older than application's target schema version %d. Automatic migration from this older version is not yet supported", SemanticIndexComponent, dbIdentifierForLog, currentDBVersion, appTargetSchemaVersion)
	default:
		return fmt.Errorf("component %s in database '%s' has schema version %d, which is newer than application's target schema version %d. Please upgrade the application", SemanticIndexComponent, dbIdentifierForLog, currentDBVersion, appTargetSchemaVersion)
	}
}
