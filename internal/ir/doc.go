// Package ir provides the foundational value and encoding types for xqopt.
//
// This package imports nothing internal. The plan model stores its constants
// as ir.Value, plan fingerprints are computed from the canonical JSON
// encoding defined here, and trace records written by the store live here
// so that the store and the rewrite driver share one vocabulary.
//
// Key design constraints:
//   - No float values; decimal literals travel as strings
//   - Canonical JSON follows RFC 8785 key ordering with NFC normalization
//   - Content addresses use SHA-256 with a versioned domain prefix
package ir
