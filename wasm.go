package modruntime

// Memory is a view of a guest's linear memory. Every access is bounds
// checked; an out-of-range access returns a boundary fault.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
	Size() uint32
}

// Allocator obtains scratch space inside guest memory through the guest's
// own allocator. The region stays valid for the duration of the host call
// that requested it.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
}
