//go:build fuzz
// +build fuzz

package codec

import (
	"bytes"
	"testing"
)

// FuzzValue_RoundTrip checks decode(encode(v)) == v for arbitrary fields
func FuzzValue_RoundTrip(f *testing.F) {
	f.Add(int32(0), uint32(0), uint8(0), uint8(0), uint64(0), uint64(0))
	f.Add(int32(-2147483648), uint32(1), uint8('B'), uint8(1), uint64(1), uint64(2))
	f.Add(int32(2147483647), ^uint32(0), uint8(255), uint8(255), ^uint64(0), ^uint64(0))

	f.Fuzz(func(t *testing.T, price int32, qty uint32, ch, side uint8, orderNo, tickNo uint64) {
		want := TickValue{Price: price, Qty: qty, Channel: ch, Side: side, OrderNo: orderNo, TickNo: tickNo}

		dst := bytes.Repeat([]byte{0x5A}, ValueSize)
		if err := PutValue(dst, want); err != nil {
			t.Fatalf("PutValue failed: %v", err)
		}

		if !bytes.Equal(dst[26:], make([]byte, ReservedSize)) {
			t.Fatalf("reserved region not zeroed: %x", dst[26:])
		}

		got, err := DecodeValue(dst)
		if err != nil {
			t.Fatalf("DecodeValue failed: %v", err)
		}
		if got != want {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	})
}

// FuzzKeyQual_RoundTrip checks the chunk timestamp survives encoding
func FuzzKeyQual_RoundTrip(f *testing.F) {
	f.Add(byte('S'), []byte("600000   "), uint64(0))
	f.Add(byte('Z'), []byte("000001.SZ"), uint64(1700000000000))

	f.Fuzz(func(t *testing.T, market byte, code []byte, base uint64) {
		k, err := EncodeKeyQual(market, code, base)
		if len(code) != CodeSize {
			if err == nil {
				t.Fatalf("expected length error for code of %d bytes", len(code))
			}
			return
		}
		if err != nil {
			t.Fatalf("EncodeKeyQual failed: %v", err)
		}

		ts, err := DecodeChunkTimestamp(k[:])
		if err != nil {
			t.Fatalf("DecodeChunkTimestamp failed: %v", err)
		}
		if ts != base {
			t.Errorf("chunk timestamp mismatch: got %d, want %d", ts, base)
		}
		if !bytes.Equal(k[1:10], code) {
			t.Errorf("code mismatch: got %q, want %q", k[1:10], code)
		}
	})
}

// FuzzDecode_ArbitraryInput makes sure decoders never panic
func FuzzDecode_ArbitraryInput(f *testing.F) {
	f.Add([]byte{})
	f.Add(make([]byte, QualifierSize))
	f.Add(make([]byte, KeyQualSize))
	f.Add(make([]byte, ValueSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		_, valErr := DecodeValue(data)
		if (len(data) == ValueSize) != (valErr == nil) {
			t.Errorf("DecodeValue len=%d err=%v", len(data), valErr)
		}
		_, keyErr := DecodeChunkTimestamp(data)
		if (len(data) == KeyQualSize) != (keyErr == nil) {
			t.Errorf("DecodeChunkTimestamp len=%d err=%v", len(data), keyErr)
		}
		_, _, qualErr := DecodeQualifier(data)
		if (len(data) == QualifierSize) != (qualErr == nil) {
			t.Errorf("DecodeQualifier len=%d err=%v", len(data), qualErr)
		}
	})
}
