package abi

// NoValue is the packed region returned when a host function has nothing
// to return. No real region can have both fields at their maximum.
const NoValue uint64 = ^uint64(0)

// Pack encodes a guest region as len<<32 | ptr.
func Pack(ptr, length uint32) uint64 {
	return uint64(length)<<32 | uint64(ptr)
}

// Unpack splits a packed region.
func Unpack(v uint64) (ptr, length uint32) {
	return uint32(v), uint32(v >> 32)
}
