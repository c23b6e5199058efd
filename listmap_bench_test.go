package listmap

import (
	"testing"
)

var benchSink int

func BenchmarkMapOfLoadSmall(b *testing.B) {
	benchmarkMapOfLoad(b, testDataSmall[:])
}

func BenchmarkMapOfLoad(b *testing.B) {
	benchmarkMapOfLoad(b, testData[:])
}

func BenchmarkMapOfLoadLarge(b *testing.B) {
	benchmarkMapOfLoad(b, testDataLarge[:])
}

func benchmarkMapOfLoad(b *testing.B, data []string) {
	b.ReportAllocs()
	var m MapOf[string, int]
	for i := range data {
		m.LoadOrStore(data[i], i)
	}
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		v, _ := m.Load(data[i])
		benchSink += v
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapOfLoadXXHash(b *testing.B) {
	b.ReportAllocs()
	m := NewMapOfWithHasher[string, int](XXHashString)
	data := testData[:]
	for i := range data {
		m.LoadOrStore(data[i], i)
	}
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		v, _ := m.Load(data[i])
		benchSink += v
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapOfLoadOrStore(b *testing.B) {
	benchmarkMapOfLoadOrStore(b, testData[:])
}

func BenchmarkMapOfLoadOrStoreLarge(b *testing.B) {
	benchmarkMapOfLoadOrStore(b, testDataLarge[:])
}

func benchmarkMapOfLoadOrStore(b *testing.B, data []string) {
	b.ReportAllocs()
	var m MapOf[string, int]
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		_, _ = m.LoadOrStore(data[i], i)
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapOfStore(b *testing.B) {
	benchmarkMapOfStore(b, testData[:])
}

func BenchmarkMapOfStoreLarge(b *testing.B) {
	benchmarkMapOfStore(b, testDataLarge[:])
}

func benchmarkMapOfStore(b *testing.B, data []string) {
	b.ReportAllocs()
	var m MapOf[string, int]
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		m.Store(data[i], i)
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapOfLoadOrStoreIntSmall(b *testing.B) {
	benchmarkMapOfLoadOrStoreInt(b, testDataIntSmall[:])
}

func BenchmarkMapOfLoadOrStoreInt(b *testing.B) {
	benchmarkMapOfLoadOrStoreInt(b, testDataInt[:])
}

func BenchmarkMapOfLoadOrStoreIntLarge(b *testing.B) {
	benchmarkMapOfLoadOrStoreInt(b, testDataIntLarge[:])
}

func benchmarkMapOfLoadOrStoreInt(b *testing.B, data []int) {
	b.ReportAllocs()
	var m MapOf[int, int]
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		_, _ = m.LoadOrStore(data[i], i)
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapOfRef(b *testing.B) {
	b.ReportAllocs()
	var m MapOf[int, int]
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		r := m.Ref(n & 1023)
		*r++
	}
}

func BenchmarkMapOfStoreThenDelete(b *testing.B) {
	b.ReportAllocs()
	var m MapOf[string, int]
	data := testData[:]
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		m.Store(data[i], i)
		m.Delete(data[i])
		i++
		if i >= len(data) {
			i = 0
		}
	}
}

func BenchmarkMapOfRange(b *testing.B) {
	b.ReportAllocs()
	var m MapOf[string, int]
	data := testDataLarge[:]
	for i := range data {
		m.LoadOrStore(data[i], i)
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		m.Range(func(key string, value int) bool {
			benchSink += value
			return true
		})
	}
}

func BenchmarkStdMapLoad(b *testing.B) {
	b.ReportAllocs()
	m := make(map[string]int)
	data := testData[:]
	for i := range data {
		m[data[i]] = i
	}
	b.ResetTimer()
	i := 0
	for n := 0; n < b.N; n++ {
		benchSink += m[data[i]]
		i++
		if i >= len(data) {
			i = 0
		}
	}
}
