// Package httpclient builds the HTTP clients used by the crawler and the
// downloader.
//
// Every client has a bounded timeout and never follows redirects on its own:
// redirects are decisions of the crawl (scope, visited set, hop limit), so
// they are surfaced to the caller as plain 3xx responses.
//
// Connections can optionally be routed through a SOCKS5 proxy
// (golang.org/x/net/proxy), e.g. a local Tor daemon or an SSH tunnel.
// Site-specific headers and cookies are injected by a wrapping
// RoundTripper so that every request of a crawl carries them.
package httpclient
