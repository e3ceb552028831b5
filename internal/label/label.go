// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package label

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/mlnoga/spotlight/internal/grid"
	"github.com/mlnoga/spotlight/internal/pass"
)

// Default threshold, normalized to [0,1]
const DefaultThreshold = float32(64.3 / 255)

// Labeling parameters
type Config struct {
	Threshold float32 `json:"threshold" yaml:"threshold"` // intensity threshold in [0,1]

	// Merge and consolidation passes beyond bitlen(height). Tuned for small near-elliptical spots,
	// larger or irregular blobs may need more
	ExtraIterations int `json:"extraIterations" yaml:"extraIterations"`
}

func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold, ExtraIterations: 10}
}

func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold %g outside [0,1]", c.Threshold)
	}
	if c.ExtraIterations < 0 {
		return fmt.Errorf("negative extra iterations %d", c.ExtraIterations)
	}
	return nil
}

// Returns the programs run after thresholding for an image of the given height.
// Merges alternate between forward and backward masks, interleaved with consolidations,
// and the sequence always ends with a consolidation.
func (c Config) Schedule(height int) []pass.Program {
	var progs []pass.Program
	forward := true
	last := bits.Len(uint(height)) + c.ExtraIterations
	for i := 1; i < last; i++ {
		if i%2 == 1 {
			progs = append(progs, mergeProgram{Forward: forward})
			forward = !forward
		} else {
			progs = append(progs, consolidateProgram{})
		}
	}
	if len(progs) == 0 || progs[len(progs)-1].Name() != (consolidateProgram{}).Name() {
		progs = append(progs, consolidateProgram{})
	}
	return progs
}

// Computes connected component labels from an intensity image
type Engine struct {
	Config Config
	Exec   pass.Executor
}

func NewEngine(c Config, exec pass.Executor) *Engine {
	return &Engine{Config: c, Exec: exec}
}

// Labels the given intensity grid. Returns the label grid and a free grid of the same size,
// both owned by the caller from now on.
func (e *Engine) Run(img *grid.Grid) (labels, free *grid.Grid, err error) {
	if img == nil {
		return nil, nil, errors.New("label: nil image")
	}
	if err := pass.CheckDimensions(img.Width, img.Height); err != nil {
		return nil, nil, fmt.Errorf("label: %w", err)
	}
	if err := e.Config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("label: %w", err)
	}
	a, err := e.Exec.CreateGrid(img.Width, img.Height, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("label: %w", err)
	}
	b, err := e.Exec.CreateGrid(img.Width, img.Height, nil)
	if err != nil {
		e.Exec.Release(a)
		return nil, nil, fmt.Errorf("label: %w", err)
	}
	pp := grid.NewPingPong(a, b)

	steps := append([]pass.Program{thresholdProgram{Threshold: e.Config.Threshold}}, e.Config.Schedule(img.Height)...)
	for i, p := range steps {
		src := pp.Read()
		if i == 0 {
			src = img
		}
		if err := e.Exec.RunPass(p, []*grid.Grid{src}, pp.Write()); err != nil {
			e.Exec.Release(a)
			e.Exec.Release(b)
			return nil, nil, fmt.Errorf("label: pass %d (%s): %w", i, p.Name(), err)
		}
		pp.Swap()
	}
	labels, free = pp.Handoff()
	return labels, free, nil
}
