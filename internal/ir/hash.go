package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix allows
// the encoding to change without colliding with old identities.
const (
	DomainPlan   = "xqopt/plan/v1"
	DomainFiring = "xqopt/firing/v1"
)

// HashWithDomain computes SHA256(domain || 0x00 || data) as lowercase hex.
// The null separator keeps domain and payload boundaries unambiguous.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanHash returns the content address of a canonical plan encoding.
func PlanHash(encoding Object) (string, error) {
	canonical, err := MarshalCanonical(encoding)
	if err != nil {
		return "", fmt.Errorf("PlanHash: %w", err)
	}
	return HashWithDomain(DomainPlan, canonical), nil
}

// FiringID identifies one rule firing inside a run. It is stable across
// replays of the same run.
func FiringID(runID, rule, hook string, op int64, pass int64, ordinal int64) (string, error) {
	obj := Object{
		"run_id":  String(runID),
		"rule":    String(rule),
		"hook":    String(hook),
		"op":      Int(op),
		"pass":    Int(pass),
		"ordinal": Int(ordinal),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("FiringID: %w", err)
	}
	return HashWithDomain(DomainFiring, canonical), nil
}
