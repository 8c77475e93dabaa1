package sql

import "embed"

// SchemaFS contains the SQL migration files under schema/
//
//go:embed schema/*.sql
var SchemaFS embed.FS

// Migrations returns the embedded migration file names, in order
func Migrations() ([]string, error) {
	entries, err := SchemaFS.ReadDir("schema")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		names = append(names, entry.Name())
	}

	// ReadDir returns entries sorted by file name
	return names, nil
}
