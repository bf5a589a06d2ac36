// Copyright (c) 2024-2026 HireVox Labs
//
// Licensed under the Apache License, Version 2.0.
// See LICENSE for details.

package internal_audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	wavPCMFormat   = 1
	wavHeaderBytes = 44
)

// EncodeWAV wraps raw LINEAR16 PCM at the internal audio format in a RIFF
// container.
func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	bps := InternalSampleRate * InternalChannels * BytesPerSample

	buf.Write([]byte("RIFF"))
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.Write([]byte("WAVE"))

	buf.Write([]byte("fmt "))
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavPCMFormat))
	binary.Write(&buf, binary.LittleEndian, uint16(InternalChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(InternalSampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(bps))
	binary.Write(&buf, binary.LittleEndian, uint16(BytesPerSample*InternalChannels))
	binary.Write(&buf, binary.LittleEndian, uint16(8*BytesPerSample))

	buf.Write([]byte("data"))
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodePCM extracts LINEAR16 samples from a clip. Clips arriving as RIFF/WAVE
// are unwrapped to the data chunk; anything else is assumed to already be raw
// PCM at the internal format.
func DecodePCM(clip []byte) ([]byte, error) {
	if len(clip) < wavHeaderBytes || !bytes.Equal(clip[:4], []byte("RIFF")) {
		return clip, nil
	}
	if !bytes.Equal(clip[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("malformed RIFF clip: missing WAVE marker")
	}

	// Walk the chunk list to the data chunk; fmt ordering varies between
	// encoders so the fixed 44-byte assumption does not hold everywhere.
	off := 12
	for off+8 <= len(clip) {
		id := clip[off : off+4]
		size := int(binary.LittleEndian.Uint32(clip[off+4 : off+8]))
		off += 8
		if bytes.Equal(id, []byte("data")) {
			if off+size > len(clip) {
				size = len(clip) - off
			}
			return clip[off : off+size], nil
		}
		off += size
		if size%2 == 1 {
			off++
		}
	}
	return nil, fmt.Errorf("malformed RIFF clip: no data chunk")
}
