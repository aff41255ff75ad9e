package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// APIURLValidator checks the configured service base URL.
type APIURLValidator struct {
	// AllowHTTP permits plain http for any host. Loopback hosts may always
	// use http so a local mock server works under the secure defaults.
	AllowHTTP bool
	// AllowPrivateIPs permits RFC 1918 and link-local addresses.
	AllowPrivateIPs bool
	MaxLength       int
}

// NewAPIURLValidator creates a validator with secure defaults
func NewAPIURLValidator() *APIURLValidator {
	return &APIURLValidator{
		AllowHTTP:       false,
		AllowPrivateIPs: false,
		MaxLength:       2048,
	}
}

// NewPermissiveAPIURLValidator creates a validator for LAN and development setups
func NewPermissiveAPIURLValidator() *APIURLValidator {
	return &APIURLValidator{
		AllowHTTP:       true,
		AllowPrivateIPs: true,
		MaxLength:       2048,
	}
}

// ValidateAndNormalize returns the base URL with a trailing slash so relative
// endpoint paths resolve beneath it.
func (v *APIURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("API URL cannot be empty")
	}
	if len(input) > v.MaxLength {
		return "", fmt.Errorf("API URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'` ") {
		return "", fmt.Errorf("API URL contains invalid characters")
	}
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("API URL must use http or https")
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("API URL must have a hostname")
	}
	if u.User != nil {
		return "", fmt.Errorf("API URL must not embed credentials")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("API URL must not carry a query or fragment")
	}
	if strings.Contains(u.Path, "..") {
		return "", fmt.Errorf("directory traversal patterns not allowed in API URL")
	}

	host := u.Hostname()
	loopback := isLoopback(host)
	if u.Scheme == "http" && !v.AllowHTTP && !loopback {
		return "", fmt.Errorf("plain http is only allowed for localhost")
	}
	if !v.AllowPrivateIPs {
		if ip := net.ParseIP(host); ip != nil && !loopback && isPrivateIP(ip) {
			return "", fmt.Errorf("private IP addresses are not permitted")
		}
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

func isLoopback(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
