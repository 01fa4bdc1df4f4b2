package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
)

// Pump decodes PCM s16le from r into w until EOF, a read error or ctx cancellation.
// EOF is reported as nil.
func Pump(ctx context.Context, r io.Reader, w *Window) error {
	buf := make([]byte, 3200) // 100ms of 16kHz 16-bit mono
	samples := make([]int16, 0, len(buf)/2)
	var carry []byte // odd trailing byte of the previous read

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			data := buf[:n]
			if len(carry) > 0 {
				data = append(carry, data...)
				carry = nil
			}
			if len(data)%2 == 1 {
				carry = []byte{data[len(data)-1]}
				data = data[:len(data)-1]
			}

			samples = samples[:0]
			for i := 0; i+1 < len(data); i += 2 {
				samples = append(samples, int16(binary.LittleEndian.Uint16(data[i:i+2])))
			}
			w.Write(samples)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
