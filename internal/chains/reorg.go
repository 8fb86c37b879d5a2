package chains

// CalculateSafeFromBlock returns the block a re-scan should start from so
// that a reorganisation behind checkpoint is picked up again. Never negative.
func CalculateSafeFromBlock(checkpoint uint64, alias string) (uint64, error) {
	c, ok := lookupDefault(alias)
	if !ok {
		return 0, unknownChain(alias)
	}
	return c.SafeFromBlock(checkpoint), nil
}

func (c Config) SafeFromBlock(checkpoint uint64) uint64 {
	if checkpoint <= c.ReorgThreshold {
		return 0
	}
	return checkpoint - c.ReorgThreshold
}

func lookupDefault(alias string) (Config, bool) {
	alias = normalize(alias)
	for _, c := range defaults {
		if c.Alias == alias {
			return c, true
		}
	}
	return Config{}, false
}
