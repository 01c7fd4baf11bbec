package intel

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Known Wallet Registry — whale / exchange / market-maker address labels
// ---------------------------------------------------------------------------

// Role classifies a wallet address.
type Role string

const (
	RoleWhale       Role = "whale"
	RoleExchange    Role = "exchange"
	RoleMarketMaker Role = "market_maker"
	RoleUnknown     Role = "unknown"
)

// registryFile is the on-disk shape of the known wallet database.
type registryFile struct {
	Whales       map[string]string `json:"whales"`
	Exchanges    map[string]string `json:"exchanges"`
	MarketMakers map[string]string `json:"market_makers"`
}

// Registry resolves addresses to roles and human labels. Lookups are
// case-insensitive; EVM explorers return mixed-case hex.
type Registry struct {
	mu           sync.RWMutex
	whales       map[string]string
	exchanges    map[string]string
	marketMakers map[string]string
}

// NewRegistry returns a registry seeded with well-known exchange hot wallets
// and market makers so that classification works out of the box even without
// an external wallet file.
func NewRegistry() *Registry {
	r := &Registry{
		whales:       make(map[string]string),
		exchanges:    make(map[string]string),
		marketMakers: make(map[string]string),
	}
	for addr, label := range seedExchanges {
		r.exchanges[strings.ToLower(addr)] = label
	}
	for addr, label := range seedMarketMakers {
		r.marketMakers[strings.ToLower(addr)] = label
	}
	return r
}

// LoadFile merges a JSON wallet database into the registry. A missing file is
// not an error; the seed tables keep working.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("wallets: database file not found, using seed tables only")
			return nil
		}
		return err
	}

	var file registryFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for addr, label := range file.Whales {
		r.whales[strings.ToLower(addr)] = label
	}
	for addr, label := range file.Exchanges {
		r.exchanges[strings.ToLower(addr)] = label
	}
	for addr, label := range file.MarketMakers {
		r.marketMakers[strings.ToLower(addr)] = label
	}

	log.Info().
		Int("whales", len(r.whales)).
		Int("exchanges", len(r.exchanges)).
		Int("market_makers", len(r.marketMakers)).
		Str("path", path).
		Msg("wallets: database loaded")
	return nil
}

// Classify returns the role and label for an address. Whale entries win over
// exchange entries, which win over market-maker entries, when an address
// somehow appears in more than one table.
func (r *Registry) Classify(address string) (Role, string) {
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" {
		return RoleUnknown, "Unknown"
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if label, ok := r.whales[addr]; ok {
		return RoleWhale, label
	}
	if label, ok := r.exchanges[addr]; ok {
		return RoleExchange, label
	}
	if label, ok := r.marketMakers[addr]; ok {
		return RoleMarketMaker, label
	}
	return RoleUnknown, "Unknown"
}

// Add registers an address at runtime.
func (r *Registry) Add(role Role, address, label string) {
	addr := strings.ToLower(strings.TrimSpace(address))
	r.mu.Lock()
	defer r.mu.Unlock()
	switch role {
	case RoleWhale:
		r.whales[addr] = label
	case RoleExchange:
		r.exchanges[addr] = label
	case RoleMarketMaker:
		r.marketMakers[addr] = label
	}
}

// Size returns the total number of registered addresses.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.whales) + len(r.exchanges) + len(r.marketMakers)
}

// seedExchanges holds hot wallets for the major centralized exchanges on
// Ethereum and BSC. Deposits to these addresses read as selling pressure.
var seedExchanges = map[string]string{
	// Binance
	"0x28C6c06298d514Db089934071355E5743bf21d60": "Binance 14",
	"0x21a31Ee1afC51d94C2eFcCAa2092aD1028285549": "Binance 15",
	"0xDFd5293D8e347dFe59E90eFd55b2956a1343963d": "Binance 16",
	"0x56Eddb7aa87536c09CCc2793473599fD21A8b17F": "Binance 17",
	"0x9696f59E4d72E237BE84fFD425DCaD154Bf96976": "Binance 18",
	"0xF977814e90dA44bFA03b6295A0616a897441aceC": "Binance 8",

	// Coinbase
	"0x71660c4005BA85c37ccec55d0C4493E66Fe775d3": "Coinbase 1",
	"0x503828976D22510aad0201ac7EC88293211D23Da": "Coinbase 2",
	"0xdDfAbCdc4D8FfC6d5beaf154f18B778f892A0740": "Coinbase 3",
	"0xA9D1e08C7793af67e9d92fe308d5697FB81d3E43": "Coinbase 10",

	// OKX
	"0x6cC5F688a315f3dC28A7781717a9A798a59fDA7b": "OKX",
	"0x236928355Cb0b0DcC5B85bd3e6a88bd1E0cA18F3": "OKX 2",

	// Kraken
	"0x2910543Af39abA0Cd09dBb2D50200b3E800A63D2": "Kraken",
	"0x0A869d79a7052C7f1b55a8EbAbbEa3420F0D1E13": "Kraken 2",

	// Bybit
	"0xf89d7b9c864f589bbF53a82105107622B35EaA40": "Bybit",

	// Gate.io
	"0x0D0707963952f2fBA59dD06f2b425ace40b492Fe": "Gate.io",

	// KuCoin
	"0x2B5634C42055806a59e9107ED44D43c426E58258": "KuCoin",
	"0x689C56AEf474Df92D44A1B70850f808488F9769C": "KuCoin 2",
}

// seedMarketMakers holds the large proprietary trading desks whose flow
// usually precedes a volatility regime rather than a directional move.
var seedMarketMakers = map[string]string{
	"0xdBF5E9c5206d0dB70a90108bf936DA60221dC080": "Wintermute",
	"0x0000006daea1723962647b7e189d311d757Fb793": "Wintermute 2",
	"0xf584F8728B874a6a5c7A8d4d387C9aae9172D621": "Jump Trading",
	"0x9507c04B10486547584C37bCBd931B2a4FeE9A41": "Jump Trading 2",
	"0x15abb66bA754F05cBC0165A64A11cDed1543dE48": "GSR Markets",
	"0x3CC936b795A188F0e246cBB2D74C5Bd190aeCF18": "Amber Group",
	"0x151B381058f91cF871e7EA1Ee83C45326F61E96d": "Cumberland",
}
