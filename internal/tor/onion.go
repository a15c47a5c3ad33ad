package tor

import (
	"encoding/base32"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionSuffix is the top-level domain of onion services.
	OnionSuffix = ".onion"

	// OnionV3Version is the version byte of v3 addresses.
	OnionV3Version = 0x03

	// v3 label: 32 byte ed25519 key, 2 byte checksum, 1 byte version.
	v3DecodedLen = 35
)

var (
	// onionV3Label matches the 56 base32 characters of a v3 address.
	onionV3Label = regexp.MustCompile(`^[a-z2-7]{56}$`)

	// onionV2Label matches the 16 characters of a retired v2 address.
	onionV2Label = regexp.MustCompile(`^[a-z2-7]{16}$`)
)

// checksumPrefix is hashed in front of the key when computing the checksum.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host (optionally with a port) is in the
// .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(hostname(host)), OnionSuffix)
}

// ValidateOnionHost checks that host names a reachable onion service.
// Subdomains are allowed ("www.<address>.onion"); the label right before
// ".onion" must be a v3 address whose checksum matches.
//
// Design decision: the checksum is verified rather than only the
// pattern. A mistyped address would otherwise cost a full Tor circuit
// timeout before failing.
func ValidateOnionHost(host string) error {
	name := strings.ToLower(hostname(host))
	if !strings.HasSuffix(name, OnionSuffix) {
		return fmt.Errorf("%w: %q is not an onion host", ErrInvalidOnionAddress, host)
	}

	labels := strings.Split(strings.TrimSuffix(name, OnionSuffix), ".")
	label := labels[len(labels)-1]
	if onionV2Label.MatchString(label) {
		return fmt.Errorf("%w: %s", ErrV2AddressDeprecated, host)
	}
	if !isValidV3Label(label) {
		return fmt.Errorf("%w: %s", ErrInvalidOnionAddress, host)
	}
	return nil
}

// IsValidV3Address reports whether address ("<56 chars>.onion") is a
// valid v3 onion address.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !strings.HasSuffix(address, OnionSuffix) {
		return false
	}
	return isValidV3Label(strings.TrimSuffix(address, OnionSuffix))
}

func isValidV3Label(label string) bool {
	if !onionV3Label.MatchString(label) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(label))
	if err != nil || len(decoded) != v3DecodedLen {
		return false
	}

	pubkey := decoded[:32]
	checksum := decoded[32:34]
	version := decoded[34]
	if version != OnionV3Version {
		return false
	}

	want := computeV3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// computeV3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// V3AddressFromPublicKey computes the v3 onion address of an ed25519
// public key.
func V3AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", fmt.Errorf("%w: public key must be 32 bytes, got %d", ErrInvalidOnionAddress, len(pubkey))
	}

	data := make([]byte, v3DecodedLen)
	copy(data[:32], pubkey)
	copy(data[32:34], computeV3Checksum(pubkey, OnionV3Version))
	data[34] = OnionV3Version

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}

// hostname strips an optional port from host.
func hostname(host string) string {
	if i := strings.LastIndexByte(host, ':'); i != -1 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
