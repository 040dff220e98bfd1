package omron

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeValue lays a Go value for the given Kind out into 16-bit words
// ready for a Memory Area Write, per the high-word-first rule of §4.8.
// stringLen is only consulted for KindString.
func encodeValue(kind Kind, value any, stringLen int) ([]uint16, error) {
	switch kind {
	case KindBool:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: want bool, got %T", ErrTypeMismatch, value)
		}
		if v {
			return []uint16{0x0001}, nil
		}
		return []uint16{0x0000}, nil

	case KindByte:
		v, ok := value.(byte)
		if !ok {
			return nil, fmt.Errorf("%w: want byte, got %T", ErrTypeMismatch, value)
		}
		return []uint16{uint16(v)}, nil

	case KindInt16:
		v, ok := value.(int16)
		if !ok {
			return nil, fmt.Errorf("%w: want int16, got %T", ErrTypeMismatch, value)
		}
		return []uint16{uint16(v)}, nil

	case KindUint16:
		v, ok := value.(uint16)
		if !ok {
			return nil, fmt.Errorf("%w: want uint16, got %T", ErrTypeMismatch, value)
		}
		return []uint16{v}, nil

	case KindInt32:
		v, ok := value.(int32)
		if !ok {
			return nil, fmt.Errorf("%w: want int32, got %T", ErrTypeMismatch, value)
		}
		u := uint32(v)
		return []uint16{uint16(u >> 16), uint16(u)}, nil

	case KindUint32:
		v, ok := value.(uint32)
		if !ok {
			return nil, fmt.Errorf("%w: want uint32, got %T", ErrTypeMismatch, value)
		}
		return []uint16{uint16(v >> 16), uint16(v)}, nil

	case KindFloat32:
		v, ok := value.(float32)
		if !ok {
			return nil, fmt.Errorf("%w: want float32, got %T", ErrTypeMismatch, value)
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
		return []uint16{binary.BigEndian.Uint16(b[0:2]), binary.BigEndian.Uint16(b[2:4])}, nil

	case KindFloat64:
		v, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: want float64, got %T", ErrTypeMismatch, value)
		}
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
		words := make([]uint16, 4)
		for i := range words {
			words[i] = binary.BigEndian.Uint16(b[i*2 : i*2+2])
		}
		return words, nil

	case KindString:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want string, got %T", ErrTypeMismatch, value)
		}
		if stringLen <= 0 {
			stringLen = defaultStringLength
		}
		padded := make([]byte, stringLen)
		copy(padded, v)
		if stringLen%2 != 0 {
			padded = append(padded, 0)
		}
		words := make([]uint16, len(padded)/2)
		for i := range words {
			words[i] = binary.BigEndian.Uint16(padded[i*2 : i*2+2])
		}
		return words, nil

	case KindBCD16:
		v, ok := value.(int16)
		if !ok {
			return nil, fmt.Errorf("%w: want int16, got %T", ErrTypeMismatch, value)
		}
		packed, err := Int16ToBCD(v)
		if err != nil {
			return nil, err
		}
		return []uint16{binary.BigEndian.Uint16(packed)}, nil

	case KindUBCD16:
		v, ok := value.(uint16)
		if !ok {
			return nil, fmt.Errorf("%w: want uint16, got %T", ErrTypeMismatch, value)
		}
		packed, err := Uint16ToBCD(v)
		if err != nil {
			return nil, err
		}
		return []uint16{binary.BigEndian.Uint16(packed)}, nil

	case KindBCD32:
		v, ok := value.(int32)
		if !ok {
			return nil, fmt.Errorf("%w: want int32, got %T", ErrTypeMismatch, value)
		}
		packed, err := Int32ToBCD(v)
		if err != nil {
			return nil, err
		}
		return []uint16{binary.BigEndian.Uint16(packed[0:2]), binary.BigEndian.Uint16(packed[2:4])}, nil

	case KindUBCD32:
		v, ok := value.(uint32)
		if !ok {
			return nil, fmt.Errorf("%w: want uint32, got %T", ErrTypeMismatch, value)
		}
		packed, err := Uint32ToBCD(v)
		if err != nil {
			return nil, err
		}
		return []uint16{binary.BigEndian.Uint16(packed[0:2]), binary.BigEndian.Uint16(packed[2:4])}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %v", ErrTypeMismatch, kind)
	}
}

// decodeValue reconstructs a Go value of the given Kind from words read off
// the wire, the dual of encodeValue.
func decodeValue(kind Kind, words []uint16) (any, error) {
	need := kind.wordCount(defaultStringLength)
	if kind != KindString && len(words) < need {
		return nil, fmt.Errorf("%w: %v needs %d words, got %d", ErrProtocolFraming, kind, need, len(words))
	}

	switch kind {
	case KindBool:
		return words[0] != 0, nil
	case KindByte:
		return byte(words[0] & 0xFF), nil
	case KindInt16:
		return int16(words[0]), nil
	case KindUint16:
		return words[0], nil
	case KindInt32:
		return int32(uint32(words[0])<<16 | uint32(words[1])), nil
	case KindUint32:
		return uint32(words[0])<<16 | uint32(words[1]), nil
	case KindFloat32:
		var b [4]byte
		binary.BigEndian.PutUint16(b[0:2], words[0])
		binary.BigEndian.PutUint16(b[2:4], words[1])
		return math.Float32frombits(binary.BigEndian.Uint32(b[:])), nil
	case KindFloat64:
		var b [8]byte
		for i := 0; i < 4; i++ {
			binary.BigEndian.PutUint16(b[i*2:i*2+2], words[i])
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
	case KindString:
		b := make([]byte, len(words)*2)
		for i, w := range words {
			binary.BigEndian.PutUint16(b[i*2:i*2+2], w)
		}
		return nulTerminated(b), nil
	case KindBCD16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], words[0])
		return BCDToInt16(b[:])
	case KindUBCD16:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], words[0])
		return BCDToUint16(b[:])
	case KindBCD32:
		var b [4]byte
		binary.BigEndian.PutUint16(b[0:2], words[0])
		binary.BigEndian.PutUint16(b[2:4], words[1])
		return BCDToInt32(b[:])
	case KindUBCD32:
		var b [4]byte
		binary.BigEndian.PutUint16(b[0:2], words[0])
		binary.BigEndian.PutUint16(b[2:4], words[1])
		return BCDToUint32(b[:])
	default:
		return nil, fmt.Errorf("%w: unknown kind %v", ErrTypeMismatch, kind)
	}
}
