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

package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mlnoga/spotlight/internal/debug"
	"github.com/mlnoga/spotlight/internal/grid"
	"github.com/mlnoga/spotlight/internal/label"
	"github.com/mlnoga/spotlight/internal/median"
	"github.com/mlnoga/spotlight/internal/pass"
	"github.com/mlnoga/spotlight/internal/reduce"
	"github.com/mlnoga/spotlight/internal/spot"
	"github.com/mlnoga/spotlight/internal/spotstats"
	"github.com/mlnoga/spotlight/internal/stats"
)

// Spot extraction settings
type Config struct {
	Label label.Config     `json:"label" yaml:"label"`
	Stats spotstats.Config `json:"stats" yaml:"stats"`

	Median    bool                  `json:"median" yaml:"median"`       // apply a 3x3 median filter before labeling
	AutoSigma float32               `json:"autoSigma" yaml:"autoSigma"` // if >0, threshold this many background scales above the background location
	Estimator stats.LSEstimatorMode `json:"estimator" yaml:"estimator"` // background estimator for the automatic threshold

	LabelImage string `json:"labelImage" yaml:"labelImage"` // write false color labels to this file, %d expands to the image ID
	Palette    string `json:"palette" yaml:"palette"`       // false color palette, hcl or hash
	DumpGrids  bool   `json:"dumpGrids" yaml:"dumpGrids"`   // print label and table grids to the log
}

func DefaultConfig() Config {
	return Config{
		Label:     label.DefaultConfig(),
		Stats:     spotstats.DefaultConfig(),
		Estimator: stats.LSESampledMedian,
		Palette:   "hcl",
	}
}

// Wall clock durations of the pipeline phases
type Timings struct {
	Label  time.Duration `json:"label"`
	Reduce time.Duration `json:"reduce"`
	Stats  time.Duration `json:"stats"`
	Total  time.Duration `json:"total"`
}

func (t Timings) String() string {
	return fmt.Sprintf("label %.3f ms, reduce %.3f ms, stats %.3f ms, total %.3f ms",
		ms(t.Label), ms(t.Reduce), ms(t.Stats), ms(t.Total))
}

// Outcome of one pipeline run
type Result struct {
	Spots      []spot.Spot       `json:"spots"`
	Threshold  float32           `json:"threshold"`
	Background *stats.Background `json:"background,omitempty"`
	Timings    Timings           `json:"timings"`
	Dropped    int               `json:"dropped"` // spots lost to table row overflow
}

// Sequences labeling, reduction and statistics on one executor
type Pipeline struct {
	Config Config
	Exec   pass.Executor
	Log    io.Writer
}

func New(c Config, exec pass.Executor, log io.Writer) *Pipeline {
	if log == nil {
		log = io.Discard
	}
	return &Pipeline{Config: c, Exec: exec, Log: log}
}

// Extracts spots from an 8-bit intensity image. The id prefixes log output.
func (p *Pipeline) Run(id, width, height int, pixels []uint8) (res *Result, err error) {
	start := time.Now()
	if err := pass.CheckDimensions(width, height); err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}
	if len(pixels) != width*height {
		return nil, fmt.Errorf("%d: %w: %d pixels for %dx%d image", id, pass.ErrDimensions, len(pixels), width, height)
	}

	res = &Result{}
	labelConfig := p.Config.Label
	if p.Config.AutoSigma > 0 {
		bg, err := stats.EstimateBackground(pixels, p.Config.Estimator, uint32(id)+1)
		if err != nil {
			return nil, fmt.Errorf("%d: threshold: %w", id, err)
		}
		labelConfig.Threshold = bg.Threshold(p.Config.AutoSigma)
		res.Background = &bg
		fmt.Fprintf(p.Log, "%d: Background %v via %v, threshold %.4g\n", id, bg, p.Config.Estimator, labelConfig.Threshold)
	}
	res.Threshold = labelConfig.Threshold

	cells := make([]grid.Cell, len(pixels))
	for i, v := range pixels {
		cells[i] = grid.Intensity(v).Cell()
	}
	orig, err := p.Exec.CreateGrid(width, height, cells)
	if err != nil {
		return nil, fmt.Errorf("%d: image: %w", id, err)
	}
	defer p.Exec.Release(orig)

	labelInput := orig
	if p.Config.Median {
		filtered, err := p.Exec.CreateGrid(width, height, nil)
		if err != nil {
			return nil, fmt.Errorf("%d: median: %w", id, err)
		}
		defer p.Exec.Release(filtered)
		if err := p.Exec.RunPass(median.Filter3x3{}, []*grid.Grid{orig}, filtered); err != nil {
			return nil, fmt.Errorf("%d: median: %w", id, err)
		}
		labelInput = filtered
	}

	fmt.Fprintf(p.Log, "%d: *** LABEL PHASE START\n", id)
	t := time.Now()
	labels, free, err := label.NewEngine(labelConfig, p.Exec).Run(labelInput)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}
	defer p.Exec.Release(labels)
	p.Exec.Release(free)
	res.Timings.Label = time.Since(t)
	fmt.Fprintf(p.Log, "%d: *** LABEL PHASE END after %.3f ms\n", id, ms(res.Timings.Label))

	fmt.Fprintf(p.Log, "%d: *** REDUCTION PHASE START\n", id)
	t = time.Now()
	compacted, free1, free2, err := reduce.NewEngine(p.Exec).Run(labels)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}
	defer p.Exec.Release(compacted)
	p.Exec.Release(free1)
	p.Exec.Release(free2)
	res.Timings.Reduce = time.Since(t)
	fmt.Fprintf(p.Log, "%d: *** REDUCTION PHASE END after %.3f ms\n", id, ms(res.Timings.Reduce))

	fmt.Fprintf(p.Log, "%d: *** STATS PHASE START\n", id)
	t = time.Now()
	statsEngine := spotstats.NewEngine(p.Config.Stats, p.Exec)
	table, err := statsEngine.RunTable(orig, labels, compacted)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}
	c := p.Config.Stats
	res.Spots = spotstats.Extract(table, c.TableWidth(), height, c.Offset, c.MinArea)
	if res.Dropped = statsEngine.Dropped; res.Dropped > 0 {
		fmt.Fprintf(p.Log, "%d: Warning: %d spots beyond %d per table row dropped\n", id, res.Dropped, c.Offset)
	}
	res.Timings.Stats = time.Since(t)
	fmt.Fprintf(p.Log, "%d: *** STATS PHASE END after %.3f ms\n", id, ms(res.Timings.Stats))

	if err := p.dump(id, labels, compacted, table, height); err != nil {
		return nil, fmt.Errorf("%d: debug output: %w", id, err)
	}

	res.Timings.Total = time.Since(start)
	fmt.Fprintf(p.Log, "%d: Found %d spots in %dx%d image, %v\n", id, len(res.Spots), width, height, res.Timings)
	return res, nil
}

// Writes the optional debug output of a run
func (p *Pipeline) dump(id int, labels, compacted *grid.Grid, table []byte, height int) error {
	if p.Config.DumpGrids {
		fmt.Fprintf(p.Log, "%d: Labels:\n", id)
		debug.PrintLabels(p.Log, labels)
		fmt.Fprintf(p.Log, "%d: Compacted roots:\n", id)
		debug.PrintLabels(p.Log, compacted)

		off := p.Config.Stats.Offset
		slot := func(i int) *grid.Grid {
			g := grid.NewGrid(off, height)
			for y := 0; y < height; y++ {
				for x := 0; x < off; x++ {
					g.Set(x, y, grid.CellFromBytes(table, 4*off, i*off+x, y))
				}
			}
			return g
		}
		fmt.Fprintf(p.Log, "%d: Result table labels:\n", id)
		debug.PrintLabels(p.Log, slot(0))
		fmt.Fprintf(p.Log, "%d: Result table area and luminance:\n", id)
		debug.PrintLabels(p.Log, slot(1))
		fmt.Fprintf(p.Log, "%d: Result table centroid sums x:\n", id)
		debug.PrintSigned(p.Log, slot(2))
		fmt.Fprintf(p.Log, "%d: Result table centroid sums y:\n", id)
		debug.PrintSigned(p.Log, slot(3))
	}
	if p.Config.LabelImage != "" {
		palette, err := debug.ParsePalette(p.Config.Palette)
		if err != nil {
			return err
		}
		fileName := ExpandID(p.Config.LabelImage, id)
		fmt.Fprintf(p.Log, "%d: Writing false color labels to %s\n", id, fileName)
		return debug.WriteLabelImage(fileName, labels, palette)
	}
	return nil
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// Expands %d in a file name pattern to the image ID
func ExpandID(pattern string, id int) string {
	if strings.Contains(pattern, "%d") {
		return fmt.Sprintf(pattern, id)
	}
	return pattern
}
