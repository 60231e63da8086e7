// Package debrid provides the provider-agnostic debrid client contract, the
// factory mapping account provider tags onto adapters, and the batch add
// logic shared by every provider.
package debrid

import (
	"fmt"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/pkg/debrid/providers/alldebrid"
	"github.com/debridui/debridui/pkg/debrid/providers/premiumize"
	"github.com/debridui/debridui/pkg/debrid/providers/realdebrid"
	"github.com/debridui/debridui/pkg/debrid/providers/torbox"
	"github.com/debridui/debridui/pkg/debrid/types"
)

// Provider tags accepted by the factory.
const (
	ProviderRealDebrid = "realdebrid"
	ProviderTorbox     = "torbox"
	ProviderAllDebrid  = "alldebrid"
	ProviderPremiumize = "premiumize"
)

// NewClient returns the adapter for the account's provider tag. Unknown
// tags are an error, never a fallback. Constructors are purely local; no
// network traffic happens until the first call on the client.
func NewClient(dc config.Debrid) (types.Client, error) {
	switch dc.Provider {
	case ProviderRealDebrid:
		return realdebrid.New(dc)
	case ProviderTorbox:
		return torbox.New(dc)
	case ProviderAllDebrid:
		return alldebrid.New(dc)
	case ProviderPremiumize:
		return premiumize.New(dc)
	default:
		return nil, fmt.Errorf("unknown debrid provider: %q", dc.Provider)
	}
}
