package vector

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ProjectionNormalizer reduces dimensionality with a linear projection learned
// by principal component analysis. The projection is fitted on the first batch
// it observes and reused for every later call; a change in the observed input
// dimension triggers an automatic refit. Each Normalize call projects with the
// fit state it resolved under the lock, so a concurrent refit never applies a
// mismatched projection to an in-flight batch.
type ProjectionNormalizer struct {
	targetDim int

	mu  sync.Mutex
	fit *fitState
}

// fitState is an immutable snapshot of one learned projection. A refit
// installs a new snapshot; it never mutates an existing one.
type fitState struct {
	sourceDim  int
	mean       []float64
	components *mat.Dense // sourceDim x projectedDim
}

func NewProjectionNormalizer(targetDim int) (*ProjectionNormalizer, error) {
	if targetDim <= 0 {
		return nil, fmt.Errorf("vector: target dimension must be positive, got %d", targetDim)
	}
	return &ProjectionNormalizer{targetDim: targetDim}, nil
}

func (n *ProjectionNormalizer) TargetDim() int {
	return n.targetDim
}

func (n *ProjectionNormalizer) Normalize(vectors [][]float32) ([][]float32, error) {
	if len(vectors) == 0 {
		return [][]float32{}, nil
	}

	sourceDim := 0
	for _, vec := range vectors {
		if len(vec) > 0 {
			sourceDim = len(vec)
			break
		}
	}
	// All vectors empty: empty stays empty.
	if sourceDim == 0 {
		out := make([][]float32, len(vectors))
		for i := range out {
			out[i] = []float32{}
		}
		return out, nil
	}

	for i, vec := range vectors {
		if len(vec) != 0 && len(vec) != sourceDim {
			return nil, fmt.Errorf("vector: inconsistent dimensions in batch: %d and %d (vector %d)", sourceDim, len(vec), i)
		}
	}

	// A source at or below the target needs no projection, only padding.
	if sourceDim <= n.targetDim {
		out := make([][]float32, len(vectors))
		for i, vec := range vectors {
			if len(vec) == 0 {
				out[i] = []float32{}
				continue
			}
			padded := make([]float32, n.targetDim)
			copy(padded, vec)
			out[i] = padded
		}
		return out, nil
	}

	fit, err := n.fitFor(vectors, sourceDim)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if len(vec) == 0 {
			out[i] = []float32{}
			continue
		}
		out[i] = fit.project(vec, n.targetDim)
	}
	return out, nil
}

// fitFor returns the snapshot matching sourceDim, refitting on the given batch
// when the current fit is absent or has a different dimension.
func (n *ProjectionNormalizer) fitFor(vectors [][]float32, sourceDim int) (*fitState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fit == nil || n.fit.sourceDim != sourceDim {
		fit, err := learnProjection(vectors, sourceDim)
		if err != nil {
			return nil, err
		}
		n.fit = fit
	}
	return n.fit, nil
}

// learnProjection learns a projection from a reference batch.
func learnProjection(vectors [][]float32, sourceDim int) (*fitState, error) {
	samples := make([][]float32, 0, len(vectors))
	for _, vec := range vectors {
		if len(vec) == sourceDim {
			samples = append(samples, vec)
		}
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("vector: projection fit needs at least 2 reference vectors of dimension %d, got %d", sourceDim, len(samples))
	}

	data := make([]float64, 0, len(samples)*sourceDim)
	for _, vec := range samples {
		for _, v := range vec {
			data = append(data, float64(v))
		}
	}
	observations := mat.NewDense(len(samples), sourceDim, data)

	mean := make([]float64, sourceDim)
	for j := 0; j < sourceDim; j++ {
		var sum float64
		for i := 0; i < len(samples); i++ {
			sum += observations.At(i, j)
		}
		mean[j] = sum / float64(len(samples))
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(observations, nil); !ok {
		return nil, fmt.Errorf("vector: principal component analysis failed for %dx%d batch", len(samples), sourceDim)
	}

	var components mat.Dense
	pc.VectorsTo(&components)

	return &fitState{
		sourceDim:  sourceDim,
		mean:       mean,
		components: &components,
	}, nil
}

// project applies this snapshot's projection to one vector of sourceDim
// elements and pads or truncates to exactly the target dimension.
func (f *fitState) project(vec []float32, targetDim int) []float32 {
	_, available := f.components.Dims()
	projectedDim := targetDim
	if available < projectedDim {
		// Fewer components than requested (small reference batch); the
		// missing trailing dimensions stay zero.
		projectedDim = available
	}

	out := make([]float32, targetDim)
	for j := 0; j < projectedDim; j++ {
		var sum float64
		for i := 0; i < f.sourceDim; i++ {
			sum += (float64(vec[i]) - f.mean[i]) * f.components.At(i, j)
		}
		out[j] = float32(sum)
	}
	return out
}
