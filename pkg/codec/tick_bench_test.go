//go:build bench
// +build bench

package codec

import "testing"

var benchValue = TickValue{Price: 10520, Qty: 300, Channel: 2, Side: 'B', OrderNo: 881234, TickNo: 19}

func BenchmarkPutValue(b *testing.B) {
	dst := make([]byte, ValueSize)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := PutValue(dst, benchValue); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeValue(b *testing.B) {
	v := EncodeValue(benchValue)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeValue(v[:]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeKeyQual(b *testing.B) {
	code := []byte("000001.SZ")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeKeyQual('Z', code, uint64(i)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeQualifier(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = EncodeQualifier(uint32(i), uint16(i))
	}
}
