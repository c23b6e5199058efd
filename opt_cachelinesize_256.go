//go:build listmap_opt_cachelinesize_256

package listmap

// CacheLineSize sizes entry arena blocks to whole cache lines.
const CacheLineSize = 256
