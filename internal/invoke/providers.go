package invoke

import (
	"fmt"
	"strings"

	"conclave/internal/config"
)

// secretPrefix marks an api_key value naming a vault secret instead of
// carrying the credential literally.
const secretPrefix = "secret:"

// SecretOpener resolves a named vault secret to its plaintext value.
type SecretOpener func(name string) (string, error)

// ResolveProviders turns configured provider entries into invocation
// settings, opening any "secret:<name>" api_key reference through open.
func ResolveProviders(raw map[string]config.ProviderConfig, open SecretOpener) (map[string]ProviderSettings, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]ProviderSettings, len(raw))
	for name, pc := range raw {
		key := pc.APIKey
		if ref, ok := strings.CutPrefix(key, secretPrefix); ok {
			if open == nil {
				return nil, fmt.Errorf("provider %s: api_key references secret %q but no vault is configured", name, ref)
			}
			plain, err := open(ref)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", name, err)
			}
			key = plain
		}
		out[name] = ProviderSettings{BaseURL: pc.BaseURL, APIKey: key}
	}
	return out, nil
}
