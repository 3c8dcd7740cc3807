// Package codec provides the fixed-width binary encoding for TickDB market ticks.
//
// Every tick is stored as three fixed-size buffers. All multi-byte integers are
// big-endian so that the lexicographic order of encoded keys matches the
// numeric order of their fields.
//
// # Key+Qual (18 bytes)
//
//	[Market(1)][Code(9)][ChunkBaseMs(8)]
//
//   - Market: one ASCII byte identifying the exchange
//   - Code: 9-byte instrument code, copied verbatim
//   - ChunkBaseMs: start of the time chunk in Unix milliseconds (uint64)
//
// # Qualifier (6 bytes)
//
//	[MicroOffset(4)][Seq(2)]
//
//   - MicroOffset: microseconds since ChunkBaseMs (uint32)
//   - Seq: sequence number for ticks sharing the same microsecond (uint16)
//
// # Value (50 bytes)
//
//	[Price(4)][Qty(4)][Channel(1)][Side(1)][OrderNo(8)][TickNo(8)][Reserved(24)]
//
//   - Price: signed 32-bit raw price, no scaling applied
//   - Qty: unsigned 32-bit raw quantity
//   - Channel, Side: single bytes
//   - OrderNo, TickNo: unsigned 64-bit identifiers
//   - Reserved: always written as zero, ignored on decode
//
// # Usage
//
//	code, err := codec.NewCode("600000")
//	if err != nil {
//	    return err
//	}
//	key, err := codec.EncodeKeyQual('S', code[:], chunkBaseMs)
//	if err != nil {
//	    return err
//	}
//	qual := codec.EncodeQualifier(microOffset, seq)
//	val := codec.EncodeValue(codec.TickValue{Price: 1050, Qty: 200})
//
// The Put* variants write into caller-supplied buffers and fail with
// ErrLengthMismatch, without writing anything, when the buffer is not exactly
// the structure size. The decoders apply the same check to their input.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use. Callers sharing a
// destination buffer between goroutines must synchronize access themselves.
package codec
