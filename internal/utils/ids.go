package utils

import "github.com/google/uuid"

// IsUUID reports whether s can be compared against a uuid column.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
