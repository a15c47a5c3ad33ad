// Package tor lets spider crawl onion services.
//
// It validates .onion hosts before any request is made and can run an
// embedded Tor daemon (through tornago) whose SOCKS5 address is then
// handed to the HTTP client like any other proxy.
//
// Design decision: spider does not speak Tor itself. Every crawl goes
// through httpclient; this package only decides which SOCKS5 address
// to use and refuses onion seeds that could never be reached.
package tor
