/*
Copyright © 2018 the pismrun authors.
This file is part of pismrun.

pismrun is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

pismrun is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with pismrun.  If not, see <http://www.gnu.org/licenses/>.
*/

package analysis

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/ctessum/cdf"
)

// ncVar describes a variable of a test file. data is one of []float64,
// []float32, []int32 or string; nil leaves the variable unwritten.
type ncVar struct {
	name  string
	dims  []string
	data  interface{}
	attrs [][2]interface{}
}

// ncFile describes a test NetCDF file. A dimension of length zero is
// the record dimension, with nrec records.
type ncFile struct {
	dims    []string
	lengths []int
	nrec    int
	vars    []ncVar
	global  [][2]interface{}
}

func zeroValue(data interface{}) interface{} {
	switch data.(type) {
	case []float64:
		return []float64{0}
	case []float32:
		return []float32{0}
	case []int32:
		return []int32{0}
	case string:
		return ""
	}
	return []int32{0}
}

func (nf ncFile) write(t *testing.T, path string) {
	t.Helper()
	h := cdf.NewHeader(nf.dims, nf.lengths)
	length := make(map[string]int)
	for i, d := range nf.dims {
		length[d] = nf.lengths[i]
		if nf.lengths[i] == 0 {
			length[d] = nf.nrec
		}
	}
	for _, v := range nf.vars {
		h.AddVariable(v.name, v.dims, zeroValue(v.data))
		for _, a := range v.attrs {
			h.AddAttribute(v.name, a[0].(string), a[1])
		}
	}
	for _, a := range nf.global {
		h.AddAttribute("", a[0].(string), a[1])
	}
	h.Define()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range nf.vars {
		if v.data == nil {
			continue
		}
		begin := make([]int, len(v.dims))
		end := make([]int, len(v.dims))
		for i, d := range v.dims {
			end[i] = length[d]
		}
		if _, err := nc.Writer(v.name, begin, end).Write(v.data); err != nil {
			t.Fatalf("writing %s: %v", v.name, err)
		}
	}
	if nf.nrec > 0 {
		if err := cdf.UpdateNumRecs(f); err != nil {
			t.Fatal(err)
		}
	}
}

// tempDir returns a new temporary directory and a function that
// removes it.
func tempDir(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "analysis")
	if err != nil {
		t.Fatal(err)
	}
	return dir, func() { os.RemoveAll(dir) }
}
