package helpers

// Floor for the soft heap limit, in MB.
const minMemoryLimitMB = 512

// RecommendedMemoryLimit returns a soft heap limit in bytes for
// runtime/debug.SetMemoryLimit: 75% of physical memory, at least 512MB unless
// the machine has less. Unknown memory yields the floor.
func RecommendedMemoryLimit() int64 {
	return memoryLimitFor(totalSystemMemoryMB())
}

func memoryLimitFor(totalMB int) int64 {
	limitMB := totalMB * 3 / 4
	switch {
	case totalMB <= 0:
		limitMB = minMemoryLimitMB
	case totalMB < minMemoryLimitMB:
		limitMB = totalMB
	case limitMB < minMemoryLimitMB:
		limitMB = minMemoryLimitMB
	}
	return int64(limitMB) << 20
}
