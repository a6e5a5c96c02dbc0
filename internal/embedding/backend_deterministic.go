package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// deterministicBackend hashes 3-grams of the input text into a fixed-size
// vector. It never calls out to anything, making it a safe degraded-mode
// fallback when every real backend has failed. Grounded on the teacher's
// internal/rag/embedder/embedder.go NewDeterministic.
type deterministicBackend struct {
	dim       int
	normalize bool
	seed      uint64
}

// NewDeterministic returns a Backend that derives vectors purely from
// input bytes, with no network calls.
func NewDeterministic(dim int, normalize bool, seed uint64) Backend {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicBackend{dim: dim, normalize: normalize, seed: seed}
}

func (d *deterministicBackend) Name() string  { return "deterministic" }
func (d *deterministicBackend) Dimension() int { return d.dim }
func (d *deterministicBackend) Ping(context.Context) error { return nil }

func (d *deterministicBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

func (d *deterministicBackend) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) < 3 {
		addGram(d.seed, b, v)
	} else {
		for i := 0; i+3 <= len(b); i++ {
			addGram(d.seed, b[i:i+3], v)
		}
	}
	if d.normalize {
		normalize(v)
	}
	return v
}

func addGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	var seedBytes [8]byte
	for i := 0; i < 8; i++ {
		seedBytes[i] = byte(seed >> (8 * i))
	}
	h.Write(seedBytes[:])
	h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}
