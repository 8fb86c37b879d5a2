package chains

var defaults = []Config{
	evmChain("ethereum", "ETH", 1, "https://ethereum-rpc.publicnode.com", 32),
	evmChain("arbitrum", "ETH", 42161, "https://arbitrum-one-rpc.publicnode.com", 20),
	evmChain("base", "ETH", 8453, "https://base-rpc.publicnode.com", 20),
	evmChain("optimism", "ETH", 10, "https://optimism-rpc.publicnode.com", 20),
	evmChain("polygon", "POL", 137, "https://polygon-bor-rpc.publicnode.com", 128),
	evmChain("bsc", "BNB", 56, "https://bsc-rpc.publicnode.com", 15),
	evmChain("avalanche", "AVAX", 43114, "https://avalanche-c-chain-rpc.publicnode.com", 10),
	{
		Alias:          "solana",
		Ecosystem:      SVM,
		RPCURL:         "https://api.mainnet-beta.solana.com",
		Native:         NativeCurrency{Symbol: "SOL", Decimals: 9},
		Cluster:        "mainnet-beta",
		ReorgThreshold: 32,
	},
	{
		Alias:          "bitcoin",
		Ecosystem:      UTXO,
		RPCURL:         "https://api.blockchair.com",
		Native:         NativeCurrency{Symbol: "BTC", Decimals: 8},
		ReorgThreshold: 6,
		UTXO: &UTXOParams{
			ExplorerSlug:   "bitcoin",
			DustThreshold:  546,
			DefaultFeeRate: 10,
			MinFeeRate:     1,
			SegWit:         true,
		},
	},
	{
		Alias:          "litecoin",
		Ecosystem:      UTXO,
		RPCURL:         "https://api.blockchair.com",
		Native:         NativeCurrency{Symbol: "LTC", Decimals: 8},
		ReorgThreshold: 12,
		UTXO: &UTXOParams{
			ExplorerSlug:   "litecoin",
			DustThreshold:  5460,
			DefaultFeeRate: 10,
			MinFeeRate:     1,
			SegWit:         true,
		},
	},
	{
		Alias:          "dogecoin",
		Ecosystem:      UTXO,
		RPCURL:         "https://api.blockchair.com",
		Native:         NativeCurrency{Symbol: "DOGE", Decimals: 8},
		ReorgThreshold: 40,
		UTXO: &UTXOParams{
			ExplorerSlug:   "dogecoin",
			DustThreshold:  1000000,
			DefaultFeeRate: 1000,
			MinFeeRate:     100,
		},
	},
	{
		Alias:          "dash",
		Ecosystem:      UTXO,
		RPCURL:         "https://api.blockchair.com",
		Native:         NativeCurrency{Symbol: "DASH", Decimals: 8},
		ReorgThreshold: 6,
		UTXO: &UTXOParams{
			ExplorerSlug:   "dash",
			DustThreshold:  5460,
			DefaultFeeRate: 1,
			MinFeeRate:     1,
		},
	},
	{
		Alias:          "tron",
		Ecosystem:      TVM,
		RPCURL:         "https://api.trongrid.io",
		Native:         NativeCurrency{Symbol: "TRX", Decimals: 6},
		ReorgThreshold: 19,
	},
	{
		Alias:     "xrp",
		Ecosystem: XRP,
		RPCURL:    "https://xrplcluster.com",
		Native:    NativeCurrency{Symbol: "XRP", Decimals: 6},
	},
	{
		Alias:          "polkadot",
		Ecosystem:      Substrate,
		RPCURL:         "https://rpc.polkadot.io",
		Native:         NativeCurrency{Symbol: "DOT", Decimals: 10},
		ReorgThreshold: 10,
	},
}

func evmChain(alias, symbol string, chainID int64, rpcURL string, reorg uint64) Config {
	return Config{
		Alias:          alias,
		Ecosystem:      EVM,
		RPCURL:         rpcURL,
		Native:         NativeCurrency{Symbol: symbol, Decimals: 18},
		ChainID:        chainID,
		ReorgThreshold: reorg,
	}
}
