package hashing

import (
	checksum "crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/n2code/virusbegone/internal/failure"
	"github.com/n2code/virusbegone/internal/signature"
)

// ChunkSize is the read size used when streaming file content through the hash.
const ChunkSize = 64 * 1024

// Digest streams the file at path through SHA-256 and returns the hex digest.
// Any failure to open or read the file is an IO error; callers skip the file.
func Digest(path string) (signature.Signature, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", failure.New(failure.IO, "hash", path, err)
	}
	defer file.Close()

	sig, err := DigestReader(file)
	if err != nil {
		return "", failure.New(failure.IO, "hash", path, err)
	}
	return sig, nil
}

func DigestReader(r io.Reader) (signature.Signature, error) {
	hash := checksum.New()
	buffer := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(hash, struct{ io.Reader }{r}, buffer); err != nil {
		return "", err
	}
	return signature.Signature(hex.EncodeToString(hash.Sum(nil))), nil
}
