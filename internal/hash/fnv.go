package hash

const (
	fnvOffsetBasis uint32 = 0x811c9dc5
	fnvPrime       uint32 = 0x01000193
)

// Sum32 returns the 32-bit FNV-1a digest of key. The table layout depends on
// every attached process computing the same digest, so this must never change.
// Not collision-resistant; do not use where adversarial keys matter.
func Sum32(key []byte) uint32 {
	h := fnvOffsetBasis
	for _, b := range key {
		h ^= uint32(b)
		h *= fnvPrime
	}
	return h
}

// Sum32String is Sum32 over the raw bytes of s without allocating.
func Sum32String(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
