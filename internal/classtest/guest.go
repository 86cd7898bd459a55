package classtest

// IdentityRemapper is a WebAssembly remapper guest. It exports memory, a
// bump allocator starting at 1024 and a remap that returns its input
// location unchanged.
var IdentityRemapper = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32)->i32, (i32 i32 i32)->i64
	0x01, 0x0d, 0x02, 0x60, 0x01, 0x7f, 0x01, 0x7f, 0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x01, 0x7e,
	// function
	0x03, 0x03, 0x02, 0x00, 0x01,
	// memory: 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// global: mut i32 = 1024
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,
	// export: memory, alloc, remap
	0x07, 0x1a, 0x03,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x05, 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	0x05, 'r', 'e', 'm', 'a', 'p', 0x00, 0x01,
	// code
	0x0a, 0x1a, 0x02,
	// alloc: top; top += size
	0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b,
	// remap: (ptr << 32) | len
	0x0c, 0x00, 0x20, 0x00, 0xad, 0x42, 0x20, 0x86, 0x20, 0x01, 0xad, 0x84, 0x0b,
}
