// Package pgident validates and quotes PostgreSQL identifiers before they
// are interpolated into SQL text. Schema, table and column names coming from
// configuration or batch metadata must pass Validate before being quoted.
package pgident

import (
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
)

// PostgreSQL truncates identifiers at 63 bytes; longer names are rejected
// instead of silently truncated.
const maxIdentifierLength = 63

var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate checks that name is a safe PostgreSQL identifier: non-empty, at
// most 63 characters, starting with a letter or underscore and containing
// only alphanumerics and underscores.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if len(name) > maxIdentifierLength {
		return fmt.Errorf("identifier %q exceeds maximum length of %d characters", name, maxIdentifierLength)
	}

	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier: %s (must contain only alphanumeric and underscore, not start with a digit)", name)
	}

	return nil
}

// ValidateAll validates every name in order and reports the first failure.
func ValidateAll(names ...string) error {
	for _, name := range names {
		if err := Validate(name); err != nil {
			return err
		}
	}
	return nil
}

// Quote returns the double-quoted form of a single identifier.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Qualify returns the quoted schema-qualified form of a table name.
func Qualify(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}
