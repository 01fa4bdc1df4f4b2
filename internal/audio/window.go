package audio

import "sync"

// Window is a ring buffer holding the most recent samples of a stream.
type Window struct {
	mu    sync.Mutex
	buf   []int16
	pos   int // next write index
	count int // valid samples, capped at len(buf)
}

func NewWindow(size int) *Window {
	return &Window{buf: make([]int16, size)}
}

// Size is the ring capacity in samples.
func (w *Window) Size() int { return len(w.buf) }

func (w *Window) Write(samples []int16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	size := len(w.buf)
	if size == 0 {
		return
	}
	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}
	for _, s := range samples {
		w.buf[w.pos] = s
		w.pos = (w.pos + 1) % size
	}
	w.count = min(w.count+len(samples), size)
}

// Latest fills dst with the most recent samples in chronological order,
// ending at dst's last element. The front of dst is zeroed when less audio
// has arrived, or when dst is longer than Size. It returns the number of
// real samples copied.
func (w *Window) Latest(dst []int16) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	size := len(w.buf)
	real := min(len(dst), w.count)
	pad := len(dst) - real

	clear(dst[:pad])
	start := (w.pos - real + size) % max(size, 1)
	for i := 0; i < real; i++ {
		dst[pad+i] = w.buf[(start+i)%size]
	}
	return real
}

// Reset discards all buffered audio.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	clear(w.buf)
	w.pos = 0
	w.count = 0
}
