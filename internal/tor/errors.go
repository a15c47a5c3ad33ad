package tor

import "errors"

// Onion address errors.
var (
	// ErrInvalidOnionAddress is returned when a .onion host is not a
	// well-formed v3 address with a matching checksum.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for 16 character v2 addresses.
	// They stopped working on the Tor network in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")

	// ErrOnionRequiresProxy is returned when an onion seed is given
	// without --proxy or --tor.
	ErrOnionRequiresProxy = errors.New("onion URLs require a Tor SOCKS5 proxy (use --proxy or --tor)")

	// ErrDaemonNotRunning is returned when the embedded daemon is used
	// before Start succeeded.
	ErrDaemonNotRunning = errors.New("embedded Tor daemon is not running")
)
