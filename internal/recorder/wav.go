package recorder

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeaderSize is the byte length of a canonical PCM WAV header. A capture
// whose file is at or below this size carries no samples and is treated as
// empty audio.
const wavHeaderSize = 44

// wavWriter streams 16-bit PCM samples into a WAV container. The header is
// written up front with zero lengths and patched on Close once the data size
// is known.
type wavWriter struct {
	f          *os.File
	sampleRate int
	channels   int
	dataBytes  int64
}

func newWAVWriter(path string, sampleRate, channels int) (*wavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}
	w := &wavWriter{f: f, sampleRate: sampleRate, channels: channels}
	if err := w.writeHeader(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

func (w *wavWriter) writeHeader() error {
	const bitsPerSample = 16
	byteRate := w.sampleRate * w.channels * bitsPerSample / 8
	blockAlign := w.channels * bitsPerSample / 8

	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+w.dataBytes))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(w.channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(w.dataBytes))

	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	return nil
}

func (w *wavWriter) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, wavHeaderSize+w.dataBytes)
	w.dataBytes += int64(n)
	return n, err
}

// Close patches the RIFF and data chunk sizes and closes the file.
func (w *wavWriter) Close() error {
	if err := w.writeHeader(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
