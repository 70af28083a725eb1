// Package safebrowse validates remote URLs before the application follows
// them, and opens validated pages in the system browser.
package safebrowse

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

const maxURLLength = 2048

// freesoundHosts are the hosts the API hands out download links for.
var freesoundHosts = map[string]bool{
	"freesound.org":     true,
	"www.freesound.org": true,
	"cdn.freesound.org": true,
}

// ValidateURL performs strict validation on a URL without query parameters.
func ValidateURL(rawURL string) error {
	return validate(rawURL, false)
}

// ValidateFreesoundURL accepts only HTTPS links on a freesound host, for
// example https://freesound.org/apiv2/sounds/12345/download/.
func ValidateFreesoundURL(rawURL string) error {
	if err := validate(rawURL, false); err != nil {
		return err
	}
	u, _ := url.Parse(rawURL) //nolint:errcheck // already validated
	if !freesoundHosts[strings.ToLower(u.Host)] {
		return fmt.Errorf("host %q is not a freesound host", u.Host)
	}
	return nil
}

// OpenWithParams validates rawURL, appends params, and opens the result.
// Keys and values are restricted to [A-Za-z0-9_-] so encoding is a no-op.
func OpenWithParams(ctx context.Context, rawURL string, params map[string]string) error {
	finalURL, err := WithParams(rawURL, params)
	if err != nil {
		return err
	}
	return open(ctx, finalURL)
}

// WithParams returns rawURL with params applied, after validating both.
func WithParams(rawURL string, params map[string]string) (string, error) {
	if err := validate(rawURL, false); err != nil {
		return "", err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	q := u.Query()
	for key, value := range params {
		if err := validateParamString(key); err != nil {
			return "", fmt.Errorf("invalid parameter key %q: %w", key, err)
		}
		if err := validateParamString(value); err != nil {
			return "", fmt.Errorf("invalid parameter value %q: %w", value, err)
		}
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()

	finalURL := u.String()
	if strings.Contains(finalURL, "%") {
		return "", errors.New("URL encoding produced unsafe characters")
	}
	if err := validate(finalURL, true); err != nil {
		return "", err
	}
	return finalURL, nil
}

func validate(rawURL string, allowParams bool) error {
	if rawURL == "" {
		return errors.New("URL cannot be empty")
	}
	if len(rawURL) > maxURLLength {
		return fmt.Errorf("URL exceeds maximum length of %d", maxURLLength)
	}

	for i, r := range rawURL {
		if r < 0x20 || r == 0x7F || r > 127 {
			return fmt.Errorf("invalid character at position %d", i)
		}
		if r == '%' {
			return errors.New("percent-encoding not allowed")
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch {
	case u.Scheme != "https":
		return errors.New("must use HTTPS")
	case u.User != nil:
		return errors.New("user info not allowed")
	case u.Fragment != "":
		return errors.New("fragments (#) not allowed")
	case u.Port() != "":
		return errors.New("custom ports not allowed")
	case !allowParams && u.RawQuery != "":
		return errors.New("query parameters not allowed")
	}

	if err := validateSafeChars(strings.ToLower(u.Host)); err != nil {
		return fmt.Errorf("invalid host: %w", err)
	}
	if err := validateSafeChars(u.Path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if strings.Contains(u.Path, "..") {
		return errors.New("path traversal (..) not allowed")
	}
	if strings.Contains(u.Path, "//") {
		return errors.New("empty path segments (//) not allowed")
	}

	return nil
}

// validateSafeChars allows alphanumerics, dash, underscore, dot and slash.
// Colon is excluded to prevent port/scheme confusion.
func validateSafeChars(s string) error {
	for _, r := range s {
		safe := (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == '/'
		if !safe {
			return fmt.Errorf("unsafe character %q", r)
		}
	}
	return nil
}

func validateParamString(s string) error {
	if s == "" {
		return errors.New("cannot be empty")
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_') {
			return fmt.Errorf("contains invalid character %q", r)
		}
	}
	return nil
}

func open(ctx context.Context, rawURL string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "/usr/bin/open", "-u", rawURL)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32.exe", "url.dll,FileProtocolHandler", rawURL)
	default:
		xdgOpen, err := findXDGOpen()
		if err != nil {
			return err
		}
		cmd = exec.CommandContext(ctx, xdgOpen, rawURL)
	}

	return cmd.Start()
}

func findXDGOpen() (string, error) {
	for _, path := range []string{
		"xdg-open",
		"/usr/local/bin/xdg-open",
		"/usr/bin/xdg-open",
		"/usr/pkg/bin/xdg-open",
	} {
		if p, err := exec.LookPath(path); err == nil {
			return p, nil
		}
	}
	return "", errors.New("xdg-open not found")
}
