// Package vector rescales embedding vectors to a fixed target dimensionality
// so heterogeneous embedding models can share one storage schema.
package vector

import "fmt"

// Normalizer modes selectable by configuration.
const (
	ModePooling    = "pooling"
	ModeProjection = "projection"
)

// Normalizer rescales vectors to the configured target dimension. Output
// vectors always have exactly TargetDim elements; an empty input list returns
// an empty list and a single empty vector stays empty rather than being
// zero-padded.
type Normalizer interface {
	Normalize(vectors [][]float32) ([][]float32, error)
	TargetDim() int
}

// New selects a Normalizer implementation by mode name.
func New(mode string, targetDim int) (Normalizer, error) {
	switch mode {
	case ModePooling, "":
		return NewPoolingNormalizer(targetDim)
	case ModeProjection:
		return NewProjectionNormalizer(targetDim)
	default:
		return nil, fmt.Errorf("vector: unknown normalizer mode %q", mode)
	}
}

// PoolingNormalizer compresses vectors by windowed averaging. When the source
// dimension exceeds the target, the vector is partitioned into targetDim
// contiguous windows of size floor(src/target) which are averaged; remainder
// elements past the last full window are averaged into one trailing value,
// and the result is trimmed or padded to exactly targetDim. Sources at or
// below the target dimension are right-padded with zeros.
type PoolingNormalizer struct {
	targetDim int
}

func NewPoolingNormalizer(targetDim int) (*PoolingNormalizer, error) {
	if targetDim <= 0 {
		return nil, fmt.Errorf("vector: target dimension must be positive, got %d", targetDim)
	}
	return &PoolingNormalizer{targetDim: targetDim}, nil
}

func (n *PoolingNormalizer) TargetDim() int {
	return n.targetDim
}

func (n *PoolingNormalizer) Normalize(vectors [][]float32) ([][]float32, error) {
	if len(vectors) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(vectors))
	for i, vec := range vectors {
		out[i] = n.pool(vec)
	}
	return out, nil
}

func (n *PoolingNormalizer) pool(vec []float32) []float32 {
	if len(vec) == 0 {
		return []float32{}
	}

	srcDim := len(vec)
	if srcDim <= n.targetDim {
		padded := make([]float32, n.targetDim)
		copy(padded, vec)
		return padded
	}

	windowSize := srcDim / n.targetDim
	remainder := srcDim % n.targetDim

	pooled := make([]float32, 0, n.targetDim+1)
	for start := 0; start+windowSize <= srcDim-remainder; start += windowSize {
		var sum float64
		for _, v := range vec[start : start+windowSize] {
			sum += float64(v)
		}
		pooled = append(pooled, float32(sum/float64(windowSize)))
	}

	if remainder > 0 {
		var sum float64
		for _, v := range vec[srcDim-remainder:] {
			sum += float64(v)
		}
		pooled = append(pooled, float32(sum/float64(remainder)))
	}

	if len(pooled) > n.targetDim {
		pooled = pooled[:n.targetDim]
	}
	for len(pooled) < n.targetDim {
		pooled = append(pooled, 0)
	}
	return pooled
}
