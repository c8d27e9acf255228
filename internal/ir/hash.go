package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainRequest = "remoteq/request/v1"
	DomainResult  = "remoteq/result/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RequestHash computes the content hash of a request envelope given as its
// portable value tree. The kind ("query" or "count") is part of
// the hashed object so that equal filters of different envelopes differ.
func RequestHash(kind string, envelope IRObject) (string, error) {
	obj := IRObject{
		"kind":     IRString(kind),
		"envelope": envelope,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RequestHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainRequest, canonical), nil
}

// ResultHash computes the content hash of an execution result: a count or
// the portable rendering of the returned records. Replay compares these.
func ResultHash(result IRValue) (string, error) {
	canonical, err := MarshalCanonical(result)
	if err != nil {
		return "", fmt.Errorf("ResultHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainResult, canonical), nil
}

// MustRequestHash is like RequestHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRequestHash(kind string, envelope IRObject) string {
	h, err := RequestHash(kind, envelope)
	if err != nil {
		panic(err)
	}
	return h
}
