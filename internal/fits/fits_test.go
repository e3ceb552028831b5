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

package fits

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Builds a FITS header block from the given cards
func header(cards ...string) []byte {
	var b bytes.Buffer
	for _, c := range append(cards, "END") {
		fmt.Fprintf(&b, "%-80s", c)
	}
	for b.Len()%fitsBlockSize != 0 {
		b.WriteByte(' ')
	}
	return b.Bytes()
}

func TestReadFITS(t *testing.T) {
	data := header(
		"SIMPLE  =                    T",
		"BITPIX  =                   16",
		"NAXIS   =                    2",
		"NAXIS1  =                    3",
		"NAXIS2  =                    2",
		"BZERO   =                32768",
		"EXPTIME =                  2.5",
		"OBJECT  = 'M42'",
		"COMMENT synthetic test frame",
	)
	// int16 values -32768, -32767, ... offset by BZERO to 0, 1, ...
	for i := 0; i < 6; i++ {
		v := uint16(int16(-32768 + 100*i))
		data = append(data, byte(v>>8), byte(v))
	}

	f := NewImage()
	if err := f.Read(bytes.NewReader(data), io.Discard); err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Width() != 3 || f.Height() != 2 || f.Channels() != 1 {
		t.Errorf("got %s; want 3x2", f.DimensionsToString())
	}
	if f.Exposure != 2.5 {
		t.Errorf("got exposure %g; want 2.5", f.Exposure)
	}
	if f.Header.Strings["OBJECT"] != "M42" {
		t.Errorf("got object %q; want M42", f.Header.Strings["OBJECT"])
	}
	if len(f.Header.Comments) != 1 {
		t.Errorf("got %d comments; want 1", len(f.Header.Comments))
	}
	for i, v := range f.Data {
		if want := float32(100 * i); v != want {
			t.Errorf("pixel %d: got %g; want %g", i, v, want)
		}
	}
	if f.Stats.Min != 0 || f.Stats.Max != 500 {
		t.Errorf("got stats %v; want min 0 max 500", f.Stats)
	}

	pixels := f.ToIntensity()
	if pixels[0] != 0 || pixels[5] != 255 || pixels[1] != 51 {
		t.Errorf("got intensities %v; want 0 51 ... 255", pixels)
	}
}

func TestReadFITSErrors(t *testing.T) {
	tests := []struct {
		name  string
		cards []string
		want  string
	}{
		{"no simple", []string{"BITPIX  =                    8"}, "SIMPLE"},
		{"no bitpix", []string{"SIMPLE  =                    T", "NAXIS   =                    0"}, "BITPIX"},
		{"bad bitpix", []string{"SIMPLE  =                    T", "BITPIX  =                   12",
			"NAXIS   =                    2", "NAXIS1  =                    1", "NAXIS2  =                    1"}, "BITPIX"},
		{"cube", []string{"SIMPLE  =                    T", "BITPIX  =                    8", "NAXIS   =                    3",
			"NAXIS1  =                    1", "NAXIS2  =                    1", "NAXIS3  =                    4"}, "channels"},
	}
	for _, test := range tests {
		f := NewImage()
		data := append(header(test.cards...), make([]byte, fitsBlockSize)...)
		err := f.Read(bytes.NewReader(data), io.Discard)
		if err == nil || !strings.Contains(err.Error(), test.want) {
			t.Errorf("%s: got %v; want error mentioning %s", test.name, err, test.want)
		}
	}
}

func TestReadRasterAndPreview(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 2, color.Gray{200})
	fileName := filepath.Join(dir, "in.png")
	file, err := os.Create(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(file, img); err != nil {
		t.Fatal(err)
	}
	file.Close()

	f, err := NewImageFromFile(fileName, 7, io.Discard)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Bitpix != 8 || f.Channels() != 1 {
		t.Errorf("got bitpix %d channels %d; want 8 1", f.Bitpix, f.Channels())
	}
	pixels := f.ToIntensity()
	if pixels[2*4+1] != 200 || pixels[0] != 0 {
		t.Errorf("got %v; want 200 at (1,2)", pixels)
	}

	for _, name := range []string{"out.jpg", "out.png", "out.tif"} {
		if err := f.WritePreviewToFile(filepath.Join(dir, name), 1, 90); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if err := f.WritePreviewToFile(filepath.Join(dir, "out.xyz"), 1, 90); err == nil {
		t.Errorf("got no error for unknown format")
	}
}

// Returns a path in a temporary directory that links to /dev/full, where every write fails
func fullDevice(t *testing.T, name string) string {
	t.Helper()
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full")
	}
	fileName := filepath.Join(t.TempDir(), name)
	if err := os.Symlink("/dev/full", fileName); err != nil {
		t.Skip(err)
	}
	return fileName
}

func TestWriteFileReportsFlushError(t *testing.T) {
	fileName := fullDevice(t, "out.png")
	err := WriteFile(fileName, func(w io.Writer) error {
		_, err := w.Write([]byte("buffered"))
		return err
	})
	if err == nil {
		t.Errorf("got no error writing to a full device")
	}

	f := NewImageFromNaxisn([]int32{4, 4}, nil)
	if err := f.WritePreviewToFile(fileName, 1, 90); err == nil {
		t.Errorf("got no error writing a preview to a full device")
	}
}
