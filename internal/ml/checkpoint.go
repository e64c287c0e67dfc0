package ml

import (
	"encoding/json"
	"fmt"
	"os"

	"match-predictor/internal/common"
)

// LayerState is the serialized form of one dense layer and its Adam moments.
type LayerState struct {
	Units   int       `json:"units"`
	Inputs  int       `json:"inputs"`
	Dropout float64   `json:"dropout"`
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
	MW      []float64 `json:"m_w"`
	VW      []float64 `json:"v_w"`
	MB      []float64 `json:"m_b"`
	VB      []float64 `json:"v_b"`
}

// Snapshot captures classifier parameters and optimizer state.
type Snapshot struct {
	InputSize    int          `json:"input_size"`
	LearningRate float64      `json:"learning_rate"`
	Step         int          `json:"step"`
	Layers       []LayerState `json:"layers"`
}

func cloneData(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// Snapshot returns a deep copy of the current parameters.
func (c *Classifier) Snapshot() (Snapshot, error) {
	if !c.Ready() {
		return Snapshot{}, fmt.Errorf("snapshot: %w", common.ErrModelNotReady)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		InputSize:    c.cfg.InputSize,
		LearningRate: c.cfg.LearningRate,
		Step:         c.step,
	}
	for _, l := range c.layers {
		rows, cols := l.w.Dims()
		s.Layers = append(s.Layers, LayerState{
			Units:   rows,
			Inputs:  cols,
			Dropout: l.spec.Dropout,
			Weights: cloneData(l.w.RawMatrix().Data),
			Bias:    cloneData(l.b.RawVector().Data),
			MW:      cloneData(l.mw.RawMatrix().Data),
			VW:      cloneData(l.vw.RawMatrix().Data),
			MB:      cloneData(l.mb.RawVector().Data),
			VB:      cloneData(l.vb.RawVector().Data),
		})
	}
	return s, nil
}

// Restore replaces parameters with a snapshot of the same architecture.
func (c *Classifier) Restore(s Snapshot) error {
	if !c.Ready() {
		return fmt.Errorf("restore: %w", common.ErrModelNotReady)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s.InputSize != c.cfg.InputSize || len(s.Layers) != len(c.layers) {
		return fmt.Errorf("restore: architecture mismatch: snapshot %d inputs/%d layers, model %d inputs/%d layers",
			s.InputSize, len(s.Layers), c.cfg.InputSize, len(c.layers))
	}
	for i, ls := range s.Layers {
		rows, cols := c.layers[i].w.Dims()
		size := rows * cols
		if ls.Units != rows || ls.Inputs != cols ||
			len(ls.Weights) != size || len(ls.MW) != size || len(ls.VW) != size ||
			len(ls.Bias) != rows || len(ls.MB) != rows || len(ls.VB) != rows {
			return fmt.Errorf("restore: layer %d shape mismatch", i)
		}
	}

	for i, ls := range s.Layers {
		l := c.layers[i]
		copy(l.w.RawMatrix().Data, ls.Weights)
		copy(l.b.RawVector().Data, ls.Bias)
		copy(l.mw.RawMatrix().Data, ls.MW)
		copy(l.vw.RawMatrix().Data, ls.VW)
		copy(l.mb.RawVector().Data, ls.MB)
		copy(l.vb.RawVector().Data, ls.VB)
	}
	c.step = s.Step
	return nil
}

// SaveFile writes a JSON snapshot to path.
func (c *Classifier) SaveFile(path string) error {
	s, err := c.Snapshot()
	if err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadFile restores a JSON snapshot from path.
func (c *Classifier) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return c.Restore(s)
}
