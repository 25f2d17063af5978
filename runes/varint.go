package runes

import (
	"github.com/holiman/uint256"
	"github.com/runestake/settlement/errors"
)

// maxVarintLen is the longest LEB128 encoding of a 128 bit integer.
const maxVarintLen = 19

var maxU128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// EncodeVarint appends the LEB128 encoding of n. n must fit in 128 bits.
func EncodeVarint(buf []byte, n *uint256.Int) []byte {
	v := new(uint256.Int).Set(n)

	for {
		b := byte(v.Uint64() & 0x7f)
		v.Rsh(v, 7)

		if v.IsZero() {
			return append(buf, b)
		}

		buf = append(buf, b|0x80)
	}
}

// DecodeVarint reads one LEB128 integer, returning it and the number of bytes consumed.
func DecodeVarint(buf []byte) (*uint256.Int, int, error) {
	n := new(uint256.Int)

	for i := 0; i < len(buf); i++ {
		if i >= maxVarintLen {
			return nil, 0, errors.NewInvalidRunestoneError("varint overlong")
		}

		b := buf[i]
		part := uint256.NewInt(uint64(b & 0x7f))
		part.Lsh(part, uint(7*i))
		n.Or(n, part)

		if b&0x80 == 0 {
			if n.Gt(maxU128) {
				return nil, 0, errors.NewInvalidRunestoneError("varint overflows 128 bits")
			}

			return n, i + 1, nil
		}
	}

	return nil, 0, errors.NewInvalidRunestoneError("varint truncated")
}
