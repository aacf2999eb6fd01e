package abi

import "encoding/binary"

// EncodeMessageMeta packs m into a 40-byte little-endian buffer, the
// wire format expected on the FFI surface so that a non-Go caller
// mapping the same region can decode it without depending on Go's
// in-memory struct layout.
func EncodeMessageMeta(m MessageMeta, dst []byte) {
	_ = dst[39]
	binary.LittleEndian.PutUint64(dst[0:8], m.MessageID)
	binary.LittleEndian.PutUint64(dst[8:16], m.TimestampNs)
	binary.LittleEndian.PutUint32(dst[16:20], m.ChannelID)
	binary.LittleEndian.PutUint32(dst[20:24], m.MessageType)
	binary.LittleEndian.PutUint32(dst[24:28], m.SenderPID)
	binary.LittleEndian.PutUint16(dst[28:30], m.SenderRuntime)
	binary.LittleEndian.PutUint16(dst[30:32], m.Flags)
	binary.LittleEndian.PutUint32(dst[32:36], m.PayloadLen)
	dst[36], dst[37], dst[38], dst[39] = 0, 0, 0, 0
}

// DecodeMessageMeta reverses EncodeMessageMeta.
func DecodeMessageMeta(src []byte) MessageMeta {
	_ = src[39]
	return MessageMeta{
		MessageID:     binary.LittleEndian.Uint64(src[0:8]),
		TimestampNs:   binary.LittleEndian.Uint64(src[8:16]),
		ChannelID:     binary.LittleEndian.Uint32(src[16:20]),
		MessageType:   binary.LittleEndian.Uint32(src[20:24]),
		SenderPID:     binary.LittleEndian.Uint32(src[24:28]),
		SenderRuntime: binary.LittleEndian.Uint16(src[28:30]),
		Flags:         binary.LittleEndian.Uint16(src[30:32]),
		PayloadLen:    binary.LittleEndian.Uint32(src[32:36]),
	}
}
