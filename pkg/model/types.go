package model

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string
