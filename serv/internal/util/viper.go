package util

import (
	"strings"

	"github.com/spf13/viper"
)

// SetKeyValue sets a config value from an environment variable such as
// SC_DATABASE_HOST. Underscores are turned into dots one at a time until a
// known key is found. It returns false when no key matches.
func SetKeyValue(vi *viper.Viper, key string, value any) bool {
	key = strings.TrimPrefix(key, "SC_")
	uc := strings.Count(key, "_")
	k := strings.ToLower(key)

	if vi.Get(k) != nil {
		vi.Set(k, value)
		return true
	}

	for i := 0; i < uc; i++ {
		k = strings.Replace(k, "_", ".", 1)
		if vi.Get(k) != nil {
			vi.Set(k, value)
			return true
		}
	}

	return false
}
