package codec

import (
	"encoding/binary"
	"fmt"
	"strings"
)

var be = binary.BigEndian

const (
	CodeSize      = 9
	KeyQualSize   = 18
	QualifierSize = 6
	ValueSize     = 50
	ReservedSize  = 24

	marketOffset    = 0
	codeOffset      = marketOffset + 1
	chunkBaseOffset = codeOffset + CodeSize

	microOffsetOffset = 0
	seqOffset         = microOffsetOffset + 4

	priceOffset    = 0
	qtyOffset      = priceOffset + 4
	channelOffset  = qtyOffset + 4
	sideOffset     = channelOffset + 1
	orderNoOffset  = sideOffset + 1
	tickNoOffset   = orderNoOffset + 8
	reservedOffset = tickNoOffset + 8
)

// KeyQual is the 18-byte row key: market, instrument code and chunk base time.
type KeyQual [KeyQualSize]byte

// Qualifier orders ticks within a chunk.
type Qualifier [QualifierSize]byte

// Value is the 50-byte tick payload.
type Value [ValueSize]byte

// Code is a fixed-width ASCII instrument code.
type Code [CodeSize]byte

// TickValue holds the decoded fields of a Value.
type TickValue struct {
	Price   int32  `json:"price"`
	Qty     uint32 `json:"qty"`
	Channel uint8  `json:"channel"`
	Side    uint8  `json:"side"`
	OrderNo uint64 `json:"order_no"`
	TickNo  uint64 `json:"tick_no"`
}

// NewCode builds a Code from a symbol, right-padding it with spaces.
func NewCode(s string) (Code, error) {
	var c Code
	if len(s) > CodeSize {
		return c, &LengthError{Field: "code", Want: CodeSize, Got: len(s)}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return c, fmt.Errorf("%w: %q", ErrInvalidCode, s)
		}
	}
	copy(c[:], s)
	for i := len(s); i < CodeSize; i++ {
		c[i] = ' '
	}
	return c, nil
}

// String returns the code without trailing padding.
func (c Code) String() string {
	return strings.TrimRight(string(c[:]), " \x00")
}

// EncodeKeyQual packs market, code and chunk base into a KeyQual.
func EncodeKeyQual(market byte, code []byte, chunkBaseMs uint64) (KeyQual, error) {
	var k KeyQual
	if err := PutKeyQual(k[:], market, code, chunkBaseMs); err != nil {
		return KeyQual{}, err
	}
	return k, nil
}

// PutKeyQual writes a Key+Qual record into dst, which must be KeyQualSize bytes.
func PutKeyQual(dst []byte, market byte, code []byte, chunkBaseMs uint64) error {
	if err := checkLen("key", dst, KeyQualSize); err != nil {
		return err
	}
	if err := checkLen("code", code, CodeSize); err != nil {
		return err
	}
	dst[marketOffset] = market
	copy(dst[codeOffset:chunkBaseOffset], code)
	be.PutUint64(dst[chunkBaseOffset:], chunkBaseMs)
	return nil
}

// DecodeKeyQual unpacks all fields of a Key+Qual record.
func DecodeKeyQual(src []byte) (market byte, code Code, chunkBaseMs uint64, err error) {
	if err = checkLen("key", src, KeyQualSize); err != nil {
		return 0, Code{}, 0, err
	}
	copy(code[:], src[codeOffset:chunkBaseOffset])
	return src[marketOffset], code, be.Uint64(src[chunkBaseOffset:]), nil
}

// DecodeChunkTimestamp reads only the chunk base time from a Key+Qual record.
func DecodeChunkTimestamp(src []byte) (uint64, error) {
	if err := checkLen("key", src, KeyQualSize); err != nil {
		return 0, err
	}
	return be.Uint64(src[chunkBaseOffset:]), nil
}

// ChunkTimestamp returns the chunk base time in milliseconds.
func (k KeyQual) ChunkTimestamp() uint64 {
	return be.Uint64(k[chunkBaseOffset:])
}

// EncodeQualifier packs a micro offset and sequence number.
func EncodeQualifier(microOffset uint32, seq uint16) Qualifier {
	var q Qualifier
	putQualifier(q[:], microOffset, seq)
	return q
}

// PutQualifier writes a Qualifier into dst, which must be QualifierSize bytes.
func PutQualifier(dst []byte, microOffset uint32, seq uint16) error {
	if err := checkLen("qualifier", dst, QualifierSize); err != nil {
		return err
	}
	putQualifier(dst, microOffset, seq)
	return nil
}

func putQualifier(dst []byte, microOffset uint32, seq uint16) {
	be.PutUint32(dst[microOffsetOffset:], microOffset)
	be.PutUint16(dst[seqOffset:], seq)
}

// DecodeQualifier unpacks a Qualifier.
func DecodeQualifier(src []byte) (microOffset uint32, seq uint16, err error) {
	if err = checkLen("qualifier", src, QualifierSize); err != nil {
		return 0, 0, err
	}
	return be.Uint32(src[microOffsetOffset:]), be.Uint16(src[seqOffset:]), nil
}

// EncodeValue packs v into a Value with a zeroed reserved region.
func EncodeValue(v TickValue) Value {
	var out Value
	putValue(out[:], v)
	return out
}

// PutValue writes v into dst, which must be ValueSize bytes. The reserved
// region is cleared even if dst held other data.
func PutValue(dst []byte, v TickValue) error {
	if err := checkLen("value", dst, ValueSize); err != nil {
		return err
	}
	putValue(dst, v)
	return nil
}

func putValue(dst []byte, v TickValue) {
	be.PutUint32(dst[priceOffset:], uint32(v.Price))
	be.PutUint32(dst[qtyOffset:], v.Qty)
	dst[channelOffset] = v.Channel
	dst[sideOffset] = v.Side
	be.PutUint64(dst[orderNoOffset:], v.OrderNo)
	be.PutUint64(dst[tickNoOffset:], v.TickNo)
	clear(dst[reservedOffset:ValueSize])
}

// DecodeValue unpacks a Value. Reserved bytes are not inspected.
func DecodeValue(src []byte) (TickValue, error) {
	if err := checkLen("value", src, ValueSize); err != nil {
		return TickValue{}, err
	}
	return decodeValue(src), nil
}

// Decode unpacks the fixed-size value.
func (v *Value) Decode() TickValue {
	return decodeValue(v[:])
}

func decodeValue(src []byte) TickValue {
	return TickValue{
		Price:   int32(be.Uint32(src[priceOffset:])),
		Qty:     be.Uint32(src[qtyOffset:]),
		Channel: src[channelOffset],
		Side:    src[sideOffset],
		OrderNo: be.Uint64(src[orderNoOffset:]),
		TickNo:  be.Uint64(src[tickNoOffset:]),
	}
}
