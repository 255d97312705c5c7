package streamjoin

import "sync"

// BoolMask is a pooled boolean slice for per-row scratch (e.g. a
// partition's "has null key" marks); nothing in the package requests one.
// Call Release when done.
type BoolMask struct {
	Data []bool
	pool *sync.Pool
}

func (m *BoolMask) Release() {
	if m.pool == nil || m.Data == nil {
		return
	}
	for i := range m.Data {
		m.Data[i] = false
	}
	m.pool.Put(m)
}

// Int32Slice is a pooled int32 slice, used as per-partition row-index
// scratch in gen_partition_idxs (§4.4 step 3). Call Release when done.
type Int32Slice struct {
	Data []int32
	pool *sync.Pool
}

func (s *Int32Slice) Release() {
	if s.pool == nil || s.Data == nil {
		return
	}
	s.Data = s.Data[:0]
	s.pool.Put(s)
}

var (
	boolPools  [32]*sync.Pool
	int32Pools [32]*sync.Pool
	poolInit   sync.Once
)

func initPools() {
	poolInit.Do(func() {
		for i := range boolPools {
			size := 1 << i
			boolPools[i] = &sync.Pool{
				New: func() interface{} {
					return &BoolMask{Data: make([]bool, size)}
				},
			}
			int32Pools[i] = &sync.Pool{
				New: func() interface{} {
					return &Int32Slice{Data: make([]int32, 0, size)}
				},
			}
		}
	})
}

// getBucket returns the pool bucket index (power-of-2 bound) for size.
func getBucket(size int) int {
	if size <= 0 {
		return 0
	}
	bucket := 0
	n := size - 1
	for n > 0 {
		n >>= 1
		bucket++
	}
	if bucket >= 32 {
		bucket = 31
	}
	return bucket
}

// getBoolMask returns a zeroed BoolMask with at least size capacity.
func getBoolMask(size int) *BoolMask {
	initPools()
	bucket := getBucket(size)
	pool := boolPools[bucket]
	mask := pool.Get().(*BoolMask)
	mask.pool = pool
	if len(mask.Data) != size {
		if cap(mask.Data) >= size {
			mask.Data = mask.Data[:size]
		} else {
			mask.Data = make([]bool, size)
		}
	}
	return mask
}

// getInt32Slice returns an empty Int32Slice with at least capacity cap.
func getInt32Slice(capacity int) *Int32Slice {
	initPools()
	bucket := getBucket(capacity)
	pool := int32Pools[bucket]
	slice := pool.Get().(*Int32Slice)
	slice.pool = pool
	if cap(slice.Data) < capacity {
		slice.Data = make([]int32, 0, capacity)
	} else {
		slice.Data = slice.Data[:0]
	}
	return slice
}
