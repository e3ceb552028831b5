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

package ops

import (
	"fmt"

	"github.com/mlnoga/spotlight/internal/fits"
	"github.com/mlnoga/spotlight/internal/pipeline"
	"github.com/mlnoga/spotlight/internal/spot"
)

// Extracts spots from each input image. Takes n inputs, produces n outputs with spots attached
type OpExtract struct {
	OpUnaryBase
	Config          pipeline.Config `json:"config"`
	SortByLuminance bool            `json:"sortByLuminance"` // brightest first, else in table order
	MaxSpots        int             `json:"maxSpots"`        // keep only the brightest spots, if >0
	MatchRadius     float32         `json:"matchRadius"`     // match against known positions within this radius, if >0
}

func init() { SetOperatorFactory(func() Operator { return NewOpExtractDefault() }) } // register the operator for JSON decoding

func NewOpExtractDefault() *OpExtract { return NewOpExtract(pipeline.DefaultConfig()) }

func NewOpExtract(c pipeline.Config) *OpExtract {
	op := OpExtract{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "extract", Active: true}},
		Config:      c,
		MatchRadius: 1.5,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpExtract) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	if c.Exec == nil {
		return nil, fmt.Errorf("%d: no pass executor in context", f.ID)
	}
	if f.Channels() != 1 {
		fmt.Fprintf(c.Log, "%d: Extracting from the luminance of a %d channel image\n", f.ID, f.Channels())
	}
	pixels := f.ToIntensity()
	res, err := pipeline.New(op.Config, c.Exec, c.Log).Run(f.ID, f.Width(), f.Height(), pixels)
	if err != nil {
		return nil, err
	}

	spots := res.Spots
	if op.SortByLuminance || op.MaxSpots > 0 {
		spot.QSortSpotsDesc(spots)
	}
	if op.MaxSpots > 0 && len(spots) > op.MaxSpots {
		spots = spots[:op.MaxSpots]
	}
	f.Spots = spots
	fmt.Fprintf(c.Log, "%d: %v\n", f.ID, spot.Summarize(spots))

	if len(f.Truth) > 0 && op.MatchRadius > 0 {
		m := spot.Match(spots, f.Truth, op.MatchRadius)
		fmt.Fprintf(c.Log, "%d: Matched %d of %d known positions, %d missed, %d spurious, RMS error %.3f max %.3f pixels\n",
			f.ID, m.Matched, len(f.Truth), m.Missed, m.Spurious, m.RMSError, m.MaxError)
	}
	return f, nil
}
