package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"match-predictor/internal/common"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
)

// ErrFeatureLength is returned for input vectors of the wrong size.
var ErrFeatureLength = errors.New("feature vector length mismatch")

type activation int

const (
	relu activation = iota
	sigmoid
)

// LayerSpec describes one dense layer. Dropout is applied to the layer
// output during training only.
type LayerSpec struct {
	Units   int
	Dropout float64
	act     activation
}

// Config holds classifier hyperparameters.
type Config struct {
	InputSize    int
	Layers       []LayerSpec
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	Seed         int64 // 0 seeds from the clock
}

// DefaultConfig is 28 -> 128 -> 64 -> 32 -> 1 with dropout after the first
// two hidden layers and Adam at 0.001.
func DefaultConfig() Config {
	return Config{
		InputSize: common.FeatureCount,
		Layers: []LayerSpec{
			{Units: 128, Dropout: 0.2, act: relu},
			{Units: 64, Dropout: 0.1, act: relu},
			{Units: 32, act: relu},
			{Units: 1, act: sigmoid},
		},
		LearningRate: common.DefaultLearningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

type layer struct {
	spec LayerSpec
	w    *mat.Dense    // units x inputs
	b    *mat.VecDense // units

	// Adam moments
	mw, vw *mat.Dense
	mb, vb *mat.VecDense
}

// Classifier is a binary feed-forward network trained online with Adam.
// Predict and Update on one instance are serialized.
type Classifier struct {
	cfg     Config
	layers  []*layer
	step    int
	rng     *rand.Rand
	ready   bool
	pool    sync.Pool
	metrics MetricsInterface
	mu      sync.Mutex
}

// New builds a classifier with Glorot-uniform weights and zero biases.
func New(cfg Config, metrics MetricsInterface) (*Classifier, error) {
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", cfg.InputSize)
	}
	if len(cfg.Layers) == 0 || cfg.Layers[len(cfg.Layers)-1].Units != 1 {
		return nil, fmt.Errorf("classifier needs a single-unit output layer")
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", cfg.LearningRate)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	c := &Classifier{cfg: cfg, rng: rng, metrics: metrics}
	in := cfg.InputSize
	for i, spec := range cfg.Layers {
		if spec.Units <= 0 {
			return nil, fmt.Errorf("layer %d: units must be positive", i)
		}
		if spec.Dropout < 0 || spec.Dropout >= 1 {
			return nil, fmt.Errorf("layer %d: dropout must be in [0, 1), got %f", i, spec.Dropout)
		}
		if i == len(cfg.Layers)-1 {
			spec.act = sigmoid
		}

		limit := math.Sqrt(6 / float64(in+spec.Units))
		weights := make([]float64, spec.Units*in)
		for j := range weights {
			weights[j] = (rng.Float64()*2 - 1) * limit
		}

		c.layers = append(c.layers, &layer{
			spec: spec,
			w:    mat.NewDense(spec.Units, in, weights),
			b:    mat.NewVecDense(spec.Units, nil),
			mw:   mat.NewDense(spec.Units, in, nil),
			vw:   mat.NewDense(spec.Units, in, nil),
			mb:   mat.NewVecDense(spec.Units, nil),
			vb:   mat.NewVecDense(spec.Units, nil),
		})
		in = spec.Units
	}

	c.pool.New = func() any { return c.newWorkspace() }
	c.ready = true

	log.Info().
		Int("inputs", cfg.InputSize).
		Int("layers", len(cfg.Layers)).
		Float64("learning_rate", cfg.LearningRate).
		Int64("seed", seed).
		Msg("classifier initialized with untrained weights")

	return c, nil
}

// workspace holds per-call activations, gradients and dropout masks.
type workspace struct {
	z     []*mat.VecDense // pre-activation
	a     []*mat.VecDense // post-activation, after dropout
	mask  []*mat.VecDense
	delta []*mat.VecDense
	back  []*mat.VecDense // W^T * delta, sized to the layer input
	gw    []*mat.Dense
	input *mat.VecDense
}

func (c *Classifier) newWorkspace() *workspace {
	ws := &workspace{input: mat.NewVecDense(c.cfg.InputSize, nil)}
	in := c.cfg.InputSize
	for _, l := range c.layers {
		n := l.spec.Units
		ws.z = append(ws.z, mat.NewVecDense(n, nil))
		ws.a = append(ws.a, mat.NewVecDense(n, nil))
		ws.mask = append(ws.mask, mat.NewVecDense(n, nil))
		ws.delta = append(ws.delta, mat.NewVecDense(n, nil))
		ws.back = append(ws.back, mat.NewVecDense(in, nil))
		ws.gw = append(ws.gw, mat.NewDense(n, in, nil))
		in = n
	}
	return ws
}

func (c *Classifier) acquire() *workspace {
	return c.pool.Get().(*workspace)
}

func (c *Classifier) release(ws *workspace) {
	c.pool.Put(ws)
}

// Ready reports whether the classifier can serve predictions.
func (c *Classifier) Ready() bool {
	return c != nil && c.ready
}

func (c *Classifier) checkInput(features []float64) error {
	if !c.Ready() {
		return common.ErrModelNotReady
	}
	if len(features) != c.cfg.InputSize {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureLength, len(features), c.cfg.InputSize)
	}
	return nil
}

// Predict runs one inference pass with dropout disabled.
func (c *Classifier) Predict(features []float64) (float64, error) {
	if err := c.checkInput(features); err != nil {
		if c != nil && c.metrics != nil {
			c.metrics.MLFailuresInc()
		}
		return 0, err
	}

	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.acquire()
	defer c.release(ws)

	p := c.forward(ws, features, false)

	if c.metrics != nil {
		c.metrics.MLPredictionsInc()
		c.metrics.MLLatencyObserve(time.Since(start).Seconds())
		c.metrics.MLPredictionScoresObserve(p)
	}
	return p, nil
}

// Update performs exactly one Adam step on a single example with dropout
// active. label is 1 for a home win and 0 otherwise.
func (c *Classifier) Update(features []float64, label float64) (float64, error) {
	if err := c.checkInput(features); err != nil {
		if c != nil && c.metrics != nil {
			c.metrics.MLFailuresInc()
		}
		return 0, err
	}
	if label != 0 && label != 1 {
		return 0, fmt.Errorf("label must be 0 or 1, got %f", label)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ws := c.acquire()
	defer c.release(ws)

	p := c.forward(ws, features, true)
	loss := binaryCrossEntropy(p, label)
	c.backward(ws, p, label)
	c.applyAdam(ws)

	if c.metrics != nil {
		c.metrics.MLUpdatesInc()
		c.metrics.MLLossObserve(loss)
	}
	return loss, nil
}

func (c *Classifier) forward(ws *workspace, features []float64, train bool) float64 {
	copy(ws.input.RawVector().Data, features)

	var in mat.Vector = ws.input
	for i, l := range c.layers {
		z, a, mask := ws.z[i], ws.a[i], ws.mask[i]
		z.MulVec(l.w, in)
		z.AddVec(z, l.b)

		for j := 0; j < z.Len(); j++ {
			v := z.AtVec(j)
			if l.spec.act == sigmoid {
				a.SetVec(j, sigmoidFn(v))
			} else {
				a.SetVec(j, math.Max(0, v))
			}

			keep := 1.0
			if train && l.spec.Dropout > 0 {
				keep = 0
				if c.rng.Float64() >= l.spec.Dropout {
					keep = 1 / (1 - l.spec.Dropout)
				}
			}
			mask.SetVec(j, keep)
		}
		a.MulElemVec(a, mask)
		in = a
	}

	return ws.a[len(c.layers)-1].AtVec(0)
}

// backward fills ws.gw and ws.delta with gradients of the BCE loss. With a
// sigmoid output the output delta is simply p - y.
func (c *Classifier) backward(ws *workspace, p, label float64) {
	last := len(c.layers) - 1
	ws.delta[last].SetVec(0, p-label)

	for i := last; i >= 0; i-- {
		var in mat.Vector = ws.input
		if i > 0 {
			in = ws.a[i-1]
		}
		ws.gw[i].Outer(1, ws.delta[i], in)

		if i == 0 {
			break
		}

		prev := ws.delta[i-1]
		ws.back[i].MulVec(c.layers[i].w.T(), ws.delta[i])
		for j := 0; j < prev.Len(); j++ {
			g := ws.back[i].AtVec(j) * ws.mask[i-1].AtVec(j)
			if ws.z[i-1].AtVec(j) <= 0 {
				g = 0
			}
			prev.SetVec(j, g)
		}
	}
}

func (c *Classifier) applyAdam(ws *workspace) {
	c.step++
	b1, b2 := c.cfg.Beta1, c.cfg.Beta2
	corr1 := 1 - math.Pow(b1, float64(c.step))
	corr2 := 1 - math.Pow(b2, float64(c.step))
	lr := c.cfg.LearningRate

	update := func(param, m, v, grad []float64) {
		for k, g := range grad {
			m[k] = b1*m[k] + (1-b1)*g
			v[k] = b2*v[k] + (1-b2)*g*g
			mHat := m[k] / corr1
			vHat := v[k] / corr2
			param[k] -= lr * mHat / (math.Sqrt(vHat) + c.cfg.Epsilon)
		}
	}

	for i, l := range c.layers {
		update(l.w.RawMatrix().Data, l.mw.RawMatrix().Data, l.vw.RawMatrix().Data, ws.gw[i].RawMatrix().Data)
		update(l.b.RawVector().Data, l.mb.RawVector().Data, l.vb.RawVector().Data, ws.delta[i].RawVector().Data)
	}
}

// Steps returns the number of training updates applied so far.
func (c *Classifier) Steps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func sigmoidFn(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func binaryCrossEntropy(p, y float64) float64 {
	const eps = 1e-7
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
