package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const chunkSize = 1 << 20

// Hasher computes content digests of files, reading them in fixed-size chunks.
type Hasher struct {
	alg types.DigestAlgorithm
}

func NewHasher(alg types.DigestAlgorithm) *Hasher {
	if alg == "" {
		alg = types.DigestSHA256
	}
	return &Hasher{alg: alg}
}

func (h *Hasher) Algorithm() types.DigestAlgorithm {
	return h.alg
}

func (h *Hasher) newHash() hash.Hash {
	if h.alg == types.DigestBLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// Sum returns the hex digest of the file at path.
func (h *Hasher) Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return h.SumReader(f)
}

func (h *Hasher) SumReader(r io.Reader) (string, error) {
	d := h.newHash()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(d, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}
