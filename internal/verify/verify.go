// Package verify checks that a placed file matches the asset it was copied from.
package verify

import (
	"fmt"
	"os"

	"github.com/On-Jun9/TakeoutPipe/internal/fingerprint"
)

type Verifier struct {
	hasher     *fingerprint.Hasher
	hashVerify bool
}

func New(hasher *fingerprint.Hasher, hashVerify bool) *Verifier {
	return &Verifier{hasher: hasher, hashVerify: hashVerify}
}

// Verify compares the size of destPath and, when hash verification is on,
// its digest against srcDigest computed before the copy.
func (v *Verifier) Verify(destPath string, expectedSize int64, srcDigest string) error {
	destInfo, err := os.Stat(destPath)
	if err != nil {
		return fmt.Errorf("destination file not found: %w", err)
	}

	if destInfo.Size() != expectedSize {
		return fmt.Errorf("size mismatch: expected %d, got %d", expectedSize, destInfo.Size())
	}

	if !v.hashVerify || v.hasher == nil {
		return nil
	}

	destHash, err := v.hasher.Sum(destPath)
	if err != nil {
		return fmt.Errorf("failed to hash destination: %w", err)
	}

	if srcDigest != destHash {
		return fmt.Errorf("hash mismatch: src=%s, dest=%s", srcDigest, destHash)
	}

	return nil
}
