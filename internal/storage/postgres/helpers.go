package postgres

import "crypto/rand"

const suffixAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"

// randomSuffix returns n characters from a compact unambiguous alphabet.
func randomSuffix(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}

// derefString safely dereferences a string pointer, returning empty string if nil
func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// nullableString maps an empty string to NULL for optional columns.
func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
