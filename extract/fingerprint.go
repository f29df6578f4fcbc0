package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// shortIDLen is the number of hex characters used as the public document
// identifier. Collision probability over a corpus of this size is
// negligible.
const shortIDLen = 12

// ContentHash computes the SHA-256 digest of a file's content. The digest
// is stable across re-reads of identical bytes.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ShortID truncates a content hash to the public document identifier.
func ShortID(hash string) string {
	if len(hash) <= shortIDLen {
		return hash
	}
	return hash[:shortIDLen]
}
