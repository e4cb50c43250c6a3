package releases

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds release source configuration.
type Config struct {
	// Owner and Repo identify the GitHub repository.
	Owner string `yaml:"owner" json:"owner"`
	Repo  string `yaml:"repo" json:"repo"`

	// Binary is the executable name inside release archives and the asset prefix.
	Binary string `yaml:"binary" json:"binary"`

	// APIURL is the GitHub API base URL.
	APIURL string `yaml:"api_url" json:"api_url"`

	// ProxyURL overrides the HTTP(S)_PROXY environment for release traffic.
	ProxyURL string `yaml:"proxy_url" json:"proxy_url"`

	// Timeout bounds API requests; DownloadTimeout bounds archive downloads.
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Owner:           "rennerdo30",
		Repo:            "relaunch",
		Binary:          "relaunch",
		APIURL:          "https://api.github.com",
		Timeout:         30 * time.Second,
		DownloadTimeout: 10 * time.Minute,
	}
}

// Validate checks that the release source is usable.
func (c Config) Validate() error {
	if c.Owner == "" || c.Repo == "" {
		return fmt.Errorf("release owner and repo are required")
	}
	if c.Binary == "" {
		return fmt.Errorf("release binary name is required")
	}
	if _, err := url.Parse(c.APIURL); err != nil || c.APIURL == "" {
		return fmt.Errorf("invalid release api_url %q", c.APIURL)
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("invalid release proxy_url: %w", err)
		}
	}
	return nil
}
