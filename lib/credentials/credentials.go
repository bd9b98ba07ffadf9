// Package credentials defines the port through which browser session cookies
// reach the platform client. The actual keystore extraction from installed
// browsers lives behind the Provider interface; the enrollment side only ever
// sees a name→value cookie map that passed Validate.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Cookies the platform session cannot work without.
var EssentialCookies = []string{"access_token", "client_id"}

type Provider interface {
	// LoadCookies returns the platform cookies stored by the given browser.
	// Implementations must return an error naming the missing cookies when
	// the essential ones are absent.
	LoadCookies(ctx context.Context, browserID string) (map[string]string, error)
}

// Validate checks a cookie map for the essential session cookies.
func Validate(cookies map[string]string) error {
	var missing []string
	for _, name := range EssentialCookies {
		if cookies[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("essential cookies missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// FileProvider reads cookies from a JSON file keyed by browser id:
//
//	{"chrome": {"access_token": "...", "client_id": "..."}}
//
// It exists for headless deployments where a collaborator tool exported the
// browser cookies ahead of time.
type FileProvider struct {
	Path string
}

func (p FileProvider) LoadCookies(ctx context.Context, browserID string) (map[string]string, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	var byBrowser map[string]map[string]string
	if err := json.Unmarshal(raw, &byBrowser); err != nil {
		return nil, fmt.Errorf("decode cookie file: %w", err)
	}

	cookies, ok := byBrowser[browserID]
	if !ok {
		return nil, fmt.Errorf("no cookies stored for browser %q", browserID)
	}
	if err := Validate(cookies); err != nil {
		return nil, err
	}
	return cookies, nil
}
