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
	"bufio"
	"io"
	"os"
)

// Creates the named file and writes it through a buffer. Returns the first error of
// writing, flushing or closing, so a truncated file is never reported as written.
func WriteFile(fileName string, write func(w io.Writer) error) (err error) {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)
	err = write(writer)
	if err == nil {
		err = writer.Flush()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}
