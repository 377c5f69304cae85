package snd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const (
	// IEEE float PCM, the format the capture device delivers.
	formatIEEEFloat = 3
	bitsPerSample   = 32
	headerSize      = 44
)

// wavHeader is the canonical 44-byte RIFF/WAVE header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV serializes float32 samples into a self-contained WAV
// payload at the given sample rate and channel count.
func EncodeWAV(samples []float32, channels, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 4)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   formatIEEEFloat,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * bitsPerSample / 8,
		BlockAlign:    uint16(channels) * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+len(samples)*4))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// Duration reads the header of an encoded WAV payload and returns the
// audio duration it describes.
func Duration(data []byte) (time.Duration, error) {
	if len(data) < headerSize {
		return 0, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", headerSize, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, fmt.Errorf("invalid WAV payload: missing RIFF/WAVE header")
	}

	channels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bits := binary.LittleEndian.Uint16(data[34:36])
	dataSize := binary.LittleEndian.Uint32(data[40:44])

	if sampleRate == 0 || channels == 0 || bits == 0 {
		return 0, fmt.Errorf("invalid WAV payload: zero sample rate, channels, or bit depth")
	}

	frames := float64(dataSize) / float64(uint32(channels)*uint32(bits)/8)
	seconds := frames / float64(sampleRate)
	return time.Duration(seconds * float64(time.Second)), nil
}
