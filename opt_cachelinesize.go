//go:build !listmap_opt_cachelinesize_32 && !listmap_opt_cachelinesize_64 && !listmap_opt_cachelinesize_128 && !listmap_opt_cachelinesize_256

package listmap

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize sizes entry arena blocks to whole cache lines.
// It's automatically calculated using the `golang.org/x/sys` package.
//
// Can be overridden with build tags:
//   - listmap_opt_cachelinesize_32
//   - listmap_opt_cachelinesize_64
//   - listmap_opt_cachelinesize_128
//   - listmap_opt_cachelinesize_256
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
