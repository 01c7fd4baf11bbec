package tokens

// ---------------------------------------------------------------------------
// Static token address table — majors with the highest futures volume.
// Chains are checked in canonical order so lookups stay deterministic.
// ---------------------------------------------------------------------------

// chainOrder fixes the fallback order when a preferred chain is absent.
var chainOrder = []string{"ethereum", "bsc", "solana"}

// staticAddresses maps base asset -> chain -> contract address.
var staticAddresses = map[string]map[string]string{
	"ETH": {
		"ethereum": "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", // WETH
		"bsc":      "0x2170Ed0880ac9A755fd29B2688956BD959F933F8",
	},
	"BTC": {
		"ethereum": "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", // WBTC
		"bsc":      "0x7130d2A12B9BCbFAe4f2634d864A1Ee1Ce3Ead9c", // BTCB
	},
	"BNB": {
		"bsc": "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", // WBNB
	},
	"SOL": {
		"ethereum": "0xD31a59c85aE9D8edEFeC411D448f90841571b89c", // Wrapped SOL
	},
	"LINK": {
		"ethereum": "0x514910771AF9Ca656af840dff83E8264EcF986CA",
		"bsc":      "0xF8A0BF9cF54Bb92F17374d9e9A321E6a111a51bD",
	},
	"UNI": {
		"ethereum": "0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984",
	},
	"AAVE": {
		"ethereum": "0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9",
	},
	"DOGE": {
		"bsc": "0xbA2aE424d960c26247Dd6c32edC70B295c744C43",
	},
	"XRP": {
		"bsc": "0x1D2F0da169ceB9fC7B3144628dB156f3F6c60dBE",
	},
	"ADA": {
		"bsc": "0x3EE2200Efb3400fAbB9AacF31297cBdD1d435D47",
	},
	"AVAX": {
		"ethereum": "0x85f138bfEE4ef8e540890CFb48F620571d67Eda3",
	},
	"SHIB": {
		"ethereum": "0x95aD61b0a150d79219dCF64E1E6Cc01f0B64C4cE",
	},
	"PEPE": {
		"ethereum": "0x6982508145454Ce325dDbE47a25d4ec3d2311933",
	},
}

// StaticLookup checks the built-in table only, preferring ethereum then bsc.
// Used by the scanner to pre-tag opportunities without any network round trip.
func StaticLookup(baseAsset string) (address, chain string, ok bool) {
	chains, found := staticAddresses[NormalizeSymbol(baseAsset)]
	if !found {
		return "", "", false
	}
	for _, c := range chainOrder {
		if addr, has := chains[c]; has {
			return addr, c, true
		}
	}
	return "", "", false
}
