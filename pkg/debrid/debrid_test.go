package debrid

import "github.com/debridui/debridui/internal/config"

func configDebrid(provider string) config.Debrid {
	return config.Debrid{
		Name:     provider + "-acct",
		Provider: provider,
		APIKey:   "test-key",
	}
}
