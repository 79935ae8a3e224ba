package charts

import (
	"strconv"
	"sync"
)

// Recorder is a Library that keeps chart configurations instead of drawing
// them. The dashboard API uses it to ship configs to the browser.
type Recorder struct {
	mu      sync.Mutex
	next    int
	live    map[string]recorded
	created int
}

type recorded struct {
	seq     int
	surface string
	cfg     Config
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{live: make(map[string]recorded)}
}

// Create implements Library.
func (r *Recorder) Create(target Surface, cfg Config) Handle {
	if target == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.created++
	id := "rec-" + strconv.Itoa(r.next)
	r.live[id] = recorded{seq: r.next, surface: target.ID(), cfg: cfg}
	return &recordedHandle{rec: r, id: id, kind: cfg.Type}
}

// Configs returns the newest live configuration per surface id.
func (r *Recorder) Configs() map[string]Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Config, len(r.live))
	newest := make(map[string]int, len(r.live))
	for _, entry := range r.live {
		if entry.seq > newest[entry.surface] {
			newest[entry.surface] = entry.seq
			out[entry.surface] = entry.cfg
		}
	}
	return out
}

// Live returns the number of handles not yet destroyed.
func (r *Recorder) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// LiveOn returns the number of live handles drawn on a surface.
func (r *Recorder) LiveOn(surface string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, entry := range r.live {
		if entry.surface == surface {
			n++
		}
	}
	return n
}

// Created returns the number of charts ever created.
func (r *Recorder) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

type recordedHandle struct {
	rec  *Recorder
	id   string
	kind Kind
	once sync.Once
}

func (h *recordedHandle) ID() string { return h.id }

func (h *recordedHandle) Kind() Kind { return h.kind }

func (h *recordedHandle) Destroy() {
	h.once.Do(func() {
		h.rec.mu.Lock()
		delete(h.rec.live, h.id)
		h.rec.mu.Unlock()
	})
}
