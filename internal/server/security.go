package server

import (
	"net/http"
	"strings"
)

// CSPConfig holds Content-Security-Policy configuration.
type CSPConfig struct {
	DefaultSrc     []string
	ImgSrc         []string
	ConnectSrc     []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
	// UpgradeInsecureRequests forces HTTPS
	UpgradeInsecureRequests bool
}

// APICSPConfig returns the policy for the conversion endpoints. Responses
// are archives, JSON and answer keys, none of which load resources.
func APICSPConfig() CSPConfig {
	return CSPConfig{
		DefaultSrc:     []string{"'none'"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// SolutionsCSPConfig allows the inline styles and data: images of a
// rendered answer key.
func SolutionsCSPConfig() CSPConfig {
	return CSPConfig{
		DefaultSrc:     []string{"'none'"},
		ImgSrc:         []string{"'self'", "data:", "https:"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// BuildCSPHeader builds a Content-Security-Policy header value from config.
func (cfg CSPConfig) BuildCSPHeader() string {
	var directives []string
	add := func(name string, sources []string) {
		if len(sources) > 0 {
			directives = append(directives, name+" "+strings.Join(sources, " "))
		}
	}
	add("default-src", cfg.DefaultSrc)
	add("img-src", cfg.ImgSrc)
	add("connect-src", cfg.ConnectSrc)
	add("frame-ancestors", cfg.FrameAncestors)
	add("base-uri", cfg.BaseURI)
	add("form-action", cfg.FormAction)
	if cfg.UpgradeInsecureRequests {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ")
}

// SecurityHeaders returns middleware that sets the standard security
// headers and the CSP of cfg.
func SecurityHeaders(cfg CSPConfig) func(http.Handler) http.Handler {
	cspHeader := cfg.BuildCSPHeader()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			if cspHeader != "" {
				w.Header().Set("Content-Security-Policy", cspHeader)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateContentType checks if a Content-Type header is in the allowed list.
// An absent header is accepted; the body is sniffed later.
func ValidateContentType(contentType string, allowed []string) bool {
	if contentType == "" {
		return true
	}
	mediaType := strings.TrimSpace(strings.Split(contentType, ";")[0])
	for _, allowedType := range allowed {
		if strings.EqualFold(mediaType, allowedType) {
			return true
		}
	}
	return false
}

// AllowedUploadContentTypes are the request types the conversion
// endpoints accept. Archives are only meaningful for /check.
var AllowedUploadContentTypes = []string{
	"text/plain",
	"text/markdown",
	"text/x-markdown",
	"application/zip",
	"application/octet-stream", // validated by content sniffing
}

// isOriginAllowed checks if the origin is in the allowed list.
// Supports exact matches, "*" and "*.example.com" subdomain patterns.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, allowed[1:]) {
			return true
		}
	}
	return false
}
