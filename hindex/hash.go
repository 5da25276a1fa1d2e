package hindex

// HashUint64, HashUint32 and HashUint16 are the pre-built integer hash
// functions. The flow-table engine uses HashUint64 for its flow-id
// index and HashUint32 for its priority index; its match index uses
// HashBytes. Each applies the 64-bit MurmurHash3 finalizer to spread
// the integer's bits before truncating to 32 bits, so HashUint16 and
// HashUint32 return the same hash for the same integer value.
//
// Grounded on hmap_uint64_hash/hmap_uint32_hash/hmap_uint16_hash in
// the original C hash-table implementation.

func murmur3Fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// HashUint64 hashes a 64-bit key, as used by the flow-id index.
func HashUint64(key uint64) uint32 {
	return uint32(murmur3Fmix64(key))
}

// HashUint32 hashes a 32-bit key, as used by the priority index.
func HashUint32(key uint32) uint32 {
	return uint32(murmur3Fmix64(uint64(key)))
}

// HashUint16 hashes a 16-bit key.
func HashUint16(key uint16) uint32 {
	return uint32(murmur3Fmix64(uint64(key)))
}

// HashBytes hashes an arbitrary byte range, as used by the match
// index over an opaque match structure's byte representation.
//
// It is a 32-bit variant of the FNV-1a algorithm mixed through the
// same finalizer used for the integer keys, so that all four hash
// families exhibit comparable probe-distance distributions.
func HashBytes(b []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for _, c := range b {
		h ^= uint32(c)
		h *= prime32
	}
	return uint32(murmur3Fmix64(uint64(h)))
}
