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
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mlnoga/spotlight/internal/fits"
	"github.com/mlnoga/spotlight/internal/pipeline"
	"github.com/mlnoga/spotlight/internal/spot"
	"github.com/mlnoga/spotlight/internal/synth"
)

// Load a single image from a single filename. Takes zero inputs, produces one output
type OpLoad struct {
	OpBase
	ID       int    `json:"id"`
	FileName string `json:"fileName"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadDefault() }) } // register the operator for JSON decoding

func NewOpLoadDefault() *OpLoad { return NewOpLoad(0, "") }

func NewOpLoad(id int, fileName string) *OpLoad {
	return &OpLoad{
		OpBase:   OpBase{Type: "load", Active: true},
		ID:       id,
		FileName: fileName,
	}
}

// Load image from a file
func (op *OpLoad) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	if !isPathAllowed(op.FileName) {
		return nil, fmt.Errorf("Filename %s outside current directory tree, aborting", op.FileName)
	}
	out := func() (f *fits.Image, err error) {
		return op.Apply(c)
	}
	return []Promise{out}, nil
}

// Returns true if a path is considered safe, i.e. not an absolute path,
// and doesn't contain the ".." characters to change to a parent directory
func isPathAllowed(p string) bool {
	if filepath.IsAbs(p) {
		return false
	}
	if strings.Contains(p, "..") {
		return false
	}
	return true
}

func (op *OpLoad) Apply(c *Context) (result *fits.Image, err error) {
	f, err := fits.NewImageFromFile(op.FileName, op.ID, c.Log)
	if err != nil {
		return nil, err
	}

	warning := ""
	if f.Stats.Max-f.Stats.Min < 1e-8 {
		warning = "; WARNING low dynamic range"
	}
	fmt.Fprintf(c.Log, "%d: Loaded %s image with %v from %s%s\n",
		f.ID, f.DimensionsToString(), f.Stats, f.FileName, warning)
	return f, nil
}

// Load many images from a slice of filename patterns with wildcards.
// Takes zero inputs, produces n outputs
type OpLoadMany struct {
	OpBase
	FilePatterns []string `json:"filePatterns"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadManyDefault() }) } // register the operator for JSON decoding

func NewOpLoadManyDefault() *OpLoadMany { return NewOpLoadMany(nil) }

func NewOpLoadMany(filePatterns []string) *OpLoadMany {
	return &OpLoadMany{
		OpBase:       OpBase{Type: "loadMany", Active: true},
		FilePatterns: filePatterns,
	}
}

// Turn filename wildcards into list of file load operators
func (op *OpLoadMany) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	for _, pattern := range op.FilePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if !isPathAllowed(match) {
				fmt.Fprintf(c.Log, "Pattern match outside current directory tree, skipping\n")
				continue
			}
			promises, err := NewOpLoad(len(outs), match).MakePromises(nil, c)
			if err != nil {
				return nil, err
			}
			outs = append(outs, promises...)
		}
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("%s operator with no files to load from pattern %v", op.Type, op.FilePatterns)
	}
	fmt.Fprintf(c.Log, "Found %d files.\n", len(outs))
	return outs, nil
}

// Generates synthetic star fields with known spot positions. Takes zero inputs, produces Count outputs
// with consecutive seeds
type OpSynth struct {
	OpBase
	Count  int          `json:"count"`
	Config synth.Config `json:"config"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSynthDefault() }) } // register the operator for JSON decoding

func NewOpSynthDefault() *OpSynth { return NewOpSynth(1, synth.DefaultConfig()) }

func NewOpSynth(count int, c synth.Config) *OpSynth {
	return &OpSynth{
		OpBase: OpBase{Type: "synth", Active: true},
		Count:  count,
		Config: c,
	}
}

func (op *OpSynth) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	for i := 0; i < op.Count; i++ {
		id, conf := i, op.Config
		conf.Seed += uint32(i)
		outs = append(outs, func() (*fits.Image, error) {
			return NewImageFromSynth(id, conf, c)
		})
	}
	return outs, nil
}

// Generates one synthetic frame as an 8-bit FITS image, with the star centers as known positions
func NewImageFromSynth(id int, conf synth.Config, c *Context) (*fits.Image, error) {
	frame, err := synth.Generate(conf)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", id, err)
	}
	data := make([]float32, len(frame.Pixels))
	for i, p := range frame.Pixels {
		data[i] = float32(p)
	}
	f := fits.NewImageFromNaxisn([]int32{int32(frame.Width), int32(frame.Height)}, data)
	f.ID, f.Bitpix = id, 8
	f.FileName = fmt.Sprintf("synth-%d", conf.Seed)
	for i, s := range frame.Stars {
		f.Truth = append(f.Truth, spot.Point2D{X: s.X, Y: s.Y, Index: i})
	}
	fmt.Fprintf(c.Log, "%d: Generated %s image with %d stars and %d hot pixels, %v\n",
		f.ID, f.DimensionsToString(), len(frame.Stars), len(frame.HotPixels), f.Stats)
	return f, nil
}

// Saves a preview with marked spots under a given filename, with pattern expansion for %d based on the image id.
// Takes one input, produces one output (the materialized but unchanged input)
type OpSave struct {
	OpUnaryBase
	FilePattern string  `json:"filePattern"`
	Gamma       float32 `json:"gamma"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filenamePattern string) *OpSave {
	op := OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: filenamePattern != ""}},
		FilePattern: filenamePattern,
		Gamma:       1,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpSave) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	if op.FilePattern == "" {
		return f, nil
	}
	fileName := pipeline.ExpandID(op.FilePattern, f.ID)
	gamma := op.Gamma
	if gamma <= 0 {
		gamma = 1
	}
	fmt.Fprintf(c.Log, "%d: Writing %s pixel preview with %d spots to %s\n", f.ID, f.DimensionsToString(), len(f.Spots), fileName)
	if err := f.WritePreviewToFile(fileName, gamma, 95); err != nil {
		return nil, fmt.Errorf("%d: Error writing to file %s: %w", f.ID, fileName, err)
	}
	return f, nil
}

// Saves the spots of an image as CSV or JSON, depending on the file extension.
// Takes one input, produces one output (the materialized but unchanged input)
type OpSaveSpots struct {
	OpUnaryBase
	FilePattern string `json:"filePattern"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveSpotsDefault() }) } // register the operator for JSON decoding

func NewOpSaveSpotsDefault() *OpSaveSpots { return NewOpSaveSpots("") }

func NewOpSaveSpots(filenamePattern string) *OpSaveSpots {
	op := OpSaveSpots{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "saveSpots", Active: filenamePattern != ""}},
		FilePattern: filenamePattern,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Spot file contents in JSON format
type SpotFile struct {
	ID       int         `json:"id"`
	FileName string      `json:"fileName"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Spots    []spot.Spot `json:"spots"`
}

func (op *OpSaveSpots) Apply(f *fits.Image, c *Context) (result *fits.Image, err error) {
	if op.FilePattern == "" {
		return f, nil
	}
	fileName := pipeline.ExpandID(op.FilePattern, f.ID)
	var write func(w io.Writer) error
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv":
		write = func(w io.Writer) error {
			spot.PrintSpots(w, f.Spots)
			return nil
		}
	case ".json":
		write = func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(SpotFile{ID: f.ID, FileName: f.FileName, Width: f.Width(), Height: f.Height(), Spots: f.Spots})
		}
	default:
		return nil, fmt.Errorf("%d: unknown spot file format %s", f.ID, ext)
	}

	fmt.Fprintf(c.Log, "%d: Writing %d spots to %s\n", f.ID, len(f.Spots), fileName)
	if err := fits.WriteFile(fileName, write); err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	return f, nil
}
