package config

import "maps"

// SiteConfig holds the settings applied to one host.
type SiteConfig struct {
	// Cookie is sent as the Cookie header. Format: "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra request headers.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the crawl depth when --recursive is set. Zero keeps it.
	Depth int `yaml:"depth,omitempty"`

	// Extensions override the resource extensions.
	Extensions []string `yaml:"extensions,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File is the structure of the .spider configuration file.
type File struct {
	// Sites maps hosts (e.g. "example.com", no scheme) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every host unless a site overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the settings for host, site values taking
// precedence over defaults. Headers are merged key by key.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if len(site.Extensions) > 0 {
		result.Extensions = site.Extensions
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}
