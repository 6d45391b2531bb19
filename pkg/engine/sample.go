package engine

// decodeSample and encodeSample mirror stage's own sample packing
// helpers (unexported there, so duplicated here rather than exported
// solely for this one caller) — used by applyVolume to scale PCM
// samples around silence level before writing to the sink.

func decodeSample(b []byte, n int) int64 {
	switch n {
	case 1:
		return int64(b[0]) - 128
	case 2:
		return int64(int16(uint16(b[0]) | uint16(b[1])<<8))
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= -1 << 24
		}
		return int64(v)
	default:
		return int64(int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
	}
}

// fillSilence writes silence-encoded samples across buf, bytesPerSample
// bytes per sample, used to pad a short read out to a full sink
// period. encodeSample(_, 0, _) already lands on silenceLevel for
// every bit depth (128 for 8-bit unsigned via its +128 offset, 0 for
// the signed formats).
func fillSilence(buf []byte, bytesPerSample int) {
	for off := 0; off+bytesPerSample <= len(buf); off += bytesPerSample {
		encodeSample(buf[off:], 0, bytesPerSample)
	}
}

func encodeSample(b []byte, v int64, n int) {
	switch n {
	case 1:
		b[0] = byte(v + 128)
	case 2:
		u := uint16(int16(v))
		b[0] = byte(u)
		b[1] = byte(u >> 8)
	case 3:
		u := uint32(v)
		b[0] = byte(u)
		b[1] = byte(u >> 8)
		b[2] = byte(u >> 16)
	default:
		u := uint32(v)
		b[0] = byte(u)
		b[1] = byte(u >> 8)
		b[2] = byte(u >> 16)
		b[3] = byte(u >> 24)
	}
}
