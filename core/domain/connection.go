package domain

import "time"

// Connection is a stored target database. EncryptedInfo is opaque to the
// core and only readable through a Decrypter.
type Connection struct {
	ID            string            `json:"id"`
	WorkspaceID   string            `json:"workspace_id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Type          string            `json:"type"`
	EncryptedInfo string            `json:"-"`
	Settings      map[string]string `json:"settings,omitempty"`
	Status        string            `json:"status"`
	LastTestedAt  *time.Time        `json:"last_tested_at,omitempty"`
	TestStatus    string            `json:"test_status,omitempty"`
	TestMessage   string            `json:"test_message,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Credentials is the decrypted connection info sent to the gateway as
// connectionInfo (host, port, database, user, password, ...).
type Credentials map[string]any

// ConnectionTest is the outcome of a gateway connectivity check.
type ConnectionTest struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Column describes one column of a table in gateway metadata.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	NotNull    bool   `json:"notNull,omitempty"`
	Properties any    `json:"properties,omitempty"`
}

// Table is gateway table metadata.
type Table struct {
	Name       string         `json:"name"`
	Columns    []Column       `json:"columns"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Constraint is a foreign key relation reported by the gateway.
type Constraint struct {
	ConstraintName     string `json:"constraintName"`
	ConstraintType     string `json:"constraintType"`
	ConstraintTable    string `json:"constraintTable"`
	ConstraintColumn   string `json:"constraintColumn"`
	ConstraintedTable  string `json:"constraintedTable"`
	ConstraintedColumn string `json:"constraintedColumn"`
}

// ResultSet is the `{columns, data}` response shape of the gateway.
type ResultSet struct {
	Columns []string          `json:"columns"`
	Data    []map[string]any  `json:"data"`
	DTypes  map[string]string `json:"dtypes,omitempty"`
}
