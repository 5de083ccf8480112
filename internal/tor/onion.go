package tor

import (
	"encoding/base32"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionV3Length is the length of a v3 onion address without the ".onion" suffix.
	// V3 addresses are 56 characters of base32-encoded data.
	OnionV3Length = 56

	// OnionV3Version is the version byte for v3 onion addresses.
	OnionV3Version = 0x03

	// OnionV2Length is the length of a v2 onion address without the ".onion" suffix.
	// V2 addresses are 16 characters. Note: V2 was deprecated in 2021.
	OnionV2Length = 16

	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"
)

// onionV3Pattern matches v3 onion addresses (56 base32 characters + .onion).
// Base32 uses lowercase a-z and digits 2-7 (no 0, 1, 8, 9 to avoid confusion).
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// onionV2Pattern matches v2 onion addresses (16 base32 characters + .onion).
// These are deprecated but we detect them to warn users.
var onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)

// onionV3ContentPattern matches v3 addresses within larger text content.
var onionV3ContentPattern = regexp.MustCompile(`[a-z2-7]{56}\.onion`)

// onionV2ContentPattern matches v2 addresses within larger text content.
// Go's regexp has no lookbehind, so v2 matches that are really the tail of
// a v3 address are filtered in code.
var onionV2ContentPattern = regexp.MustCompile(`[a-z2-7]{16}\.onion`)

// checksumPrefix is the prefix used in v3 onion address checksum calculation.
// This is specified in the Tor rendezvous specification.
var checksumPrefix = []byte(".onion checksum")

// IsValidV3Address checks if the given address is a valid v3 onion address.
// It performs both format validation and checksum verification.
//
// Design decision: full checksum validation rather than pattern matching,
// because it catches typos and corrupted addresses and matches what Tor
// itself does when connecting. The crawl engine deliberately uses the
// looser format-only check instead, so that it follows whatever link shapes
// real pages contain; the strict check is for operator-supplied targets.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)

	if !onionV3Pattern.MatchString(address) {
		return false
	}

	onionPart := strings.TrimSuffix(address, OnionSuffix)

	// The Tor spec uses standard base32 encoding (RFC 4648).
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(onionPart))
	if err != nil {
		return false
	}

	// Decoded data is 32 bytes ed25519 public key + 2 bytes checksum +
	// 1 byte version.
	if len(decoded) != 35 {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]

	if version != OnionV3Version {
		return false
	}

	expectedChecksum := computeV3Checksum(pubkey, version)
	return checksum[0] == expectedChecksum[0] && checksum[1] == expectedChecksum[1]
}

// computeV3Checksum computes the checksum bytes for a v3 onion address:
// the first 2 bytes of SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// IsV2Address checks if the given address matches the v2 onion address format.
// V2 addresses were deprecated in October 2021 and no longer work on the Tor
// network. Detection is for warning about stale targets, not for use.
func IsV2Address(address string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(address))
}

// ExtractV3Addresses finds all v3 onion addresses in the given text.
// Returns a deduplicated slice of addresses in order of first appearance.
func ExtractV3Addresses(content string) []string {
	content = strings.ToLower(content)
	matches := onionV3ContentPattern.FindAllString(content, -1)

	seen := make(map[string]bool)
	var result []string
	for _, match := range matches {
		if !seen[match] {
			seen[match] = true
			result = append(result, match)
		}
	}
	return result
}

// ExtractV2Addresses finds all v2 onion addresses in the given text,
// deduplicated. Useful for flagging pages that still link to dead services.
//
// The last 16 characters of any v3 address also match the v2 pattern, so
// matches that end exactly where a v3 address ends are discarded.
func ExtractV2Addresses(content string) []string {
	content = strings.ToLower(content)

	v3Addresses := make(map[string]bool)
	for _, v3 := range onionV3ContentPattern.FindAllString(content, -1) {
		v3Addresses[v3] = true
	}

	matches := onionV2ContentPattern.FindAllStringIndex(content, -1)

	seen := make(map[string]bool)
	var result []string
	for _, matchIdx := range matches {
		match := content[matchIdx[0]:matchIdx[1]]

		isPartOfV3 := false
		for v3Addr := range v3Addresses {
			if strings.HasSuffix(v3Addr, match) {
				v3Start := strings.Index(content, v3Addr)
				if v3Start != -1 && v3Start+len(v3Addr) == matchIdx[1] {
					isPartOfV3 = true
					break
				}
			}
		}
		if isPartOfV3 {
			continue
		}

		if !seen[match] {
			seen[match] = true
			result = append(result, match)
		}
	}
	return result
}

// NormalizeAddress normalizes an onion address to lowercase with .onion
// suffix and verifies its checksum. It tolerates common input variations:
// uppercase letters, a missing .onion suffix, surrounding whitespace,
// http/https schemes, and trailing paths or query strings.
func NormalizeAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	address = strings.TrimPrefix(address, "https://")
	address = strings.TrimPrefix(address, "http://")

	if idx := strings.IndexAny(address, "/?#"); idx != -1 {
		address = address[:idx]
	}

	if !strings.HasSuffix(address, OnionSuffix) {
		address = address + OnionSuffix
	}

	if !IsValidV3Address(address) {
		if IsV2Address(address) {
			return "", ErrV2AddressDeprecated
		}
		return "", ErrInvalidOnionAddress
	}

	return address, nil
}

// NormalizeSeedURL turns an operator-supplied target into the canonical
// crawl seed form "http://<address>.onion/". The input goes through the
// same normalization and checksum validation as NormalizeAddress; the
// original path is intentionally dropped because a crawl always starts at
// the service root.
func NormalizeSeedURL(address string) (string, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return "", err
	}
	return "http://" + normalized + "/", nil
}

// Onion address validation errors.
var (
	// ErrInvalidOnionAddress is returned when an address is not a valid onion address.
	ErrInvalidOnionAddress = newOnionError("invalid onion address")

	// ErrV2AddressDeprecated is returned when a v2 address is provided.
	// V2 addresses stopped working in October 2021.
	ErrV2AddressDeprecated = newOnionError("v2 onion addresses are deprecated and no longer functional")
)

// onionError is a custom error type for onion address errors.
type onionError struct {
	message string
}

// newOnionError creates a new onion error with the given message.
func newOnionError(message string) *onionError {
	return &onionError{message: message}
}

// Error implements the error interface.
func (e *onionError) Error() string {
	return e.message
}
