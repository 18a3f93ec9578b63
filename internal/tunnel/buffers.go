package tunnel

import "sync"

// ChunkSize is the most a relay loop reads before flushing to its destination.
const ChunkSize = 16 * 1024

// chunkPool is a pool of reusable relay buffers.
var chunkPool = sync.Pool{
	New: func() any {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// getChunk retrieves a buffer from the pool
func getChunk() *[]byte {
	return chunkPool.Get().(*[]byte)
}

// putChunk returns a buffer to the pool for reuse
func putChunk(buf *[]byte) {
	chunkPool.Put(buf)
}
