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

// Package analysis compares PISM model output with observations. It
// reads NetCDF fields, computes histograms and error statistics, extracts
// contours, computes cross-correlations and power spectra, and draws
// figures.
package analysis

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spf13/cast"
)

// Dataset is an open NetCDF file.
type Dataset struct {
	// Path is the path of the file.
	Path string

	file *os.File
	nc   *cdf.File
	size int64
}

// OpenDataset opens the NetCDF file at path for reading.
func OpenDataset(path string) (*Dataset, error) {
	path = os.ExpandEnv(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("analysis: file %s not found or not NetCDF format: %v", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("analysis: %v", err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("analysis: file %s not found or not NetCDF format: %v", path, err)
	}
	return &Dataset{Path: path, file: f, nc: nc, size: fi.Size()}, nil
}

// Close closes the underlying file.
func (d *Dataset) Close() error { return d.file.Close() }

// Header returns the NetCDF header of the file.
func (d *Dataset) Header() *cdf.Header { return d.nc.Header }

// Title returns the base name of the file.
func (d *Dataset) Title() string { return filepath.Base(d.Path) }

// HasVariable returns whether the file holds a variable with the given
// name.
func (d *Dataset) HasVariable(name string) bool {
	for _, v := range d.nc.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// FindVariable returns the name of the variable called name or, if
// there is none, of the last variable whose standard_name attribute is
// name.
func (d *Dataset) FindVariable(name string) (string, error) {
	if d.HasVariable(name) {
		return name, nil
	}
	found := ""
	for _, v := range d.nc.Header.Variables() {
		if s, ok := d.nc.Header.GetAttribute(v, "standard_name").(string); ok && s == name {
			found = v
		}
	}
	if found == "" {
		return "", fmt.Errorf("analysis: variable %s not found in %s", name, d.Path)
	}
	return found, nil
}

// Units returns the units attribute of variable v.
func (d *Dataset) Units(v string) string {
	u, _ := d.nc.Header.GetAttribute(v, "units").(string)
	return u
}

// StringAttribute returns attribute a of variable v (or the global
// attribute if v is empty) formatted as a string. Numeric attributes
// with several values are joined by commas.
func (d *Dataset) StringAttribute(v, a string) (string, bool) {
	val := d.nc.Header.GetAttribute(v, a)
	if val == nil {
		return "", false
	}
	return attributeString(val), true
}

func attributeString(val interface{}) string {
	if s, ok := val.(string); ok {
		return strings.TrimRight(s, "\x00")
	}
	var s []string
	switch vv := val.(type) {
	case []float64:
		for _, v := range vv {
			s = append(s, formatFloat(v, 64))
		}
	case []float32:
		for _, v := range vv {
			s = append(s, formatFloat(float64(v), 32))
		}
	default:
		for _, v := range attributeFloats(val) {
			s = append(s, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return strings.Join(s, ",")
}

// formatFloat formats floating-point attributes with at least one
// decimal, so that 3 is written "3.0".
func formatFloat(v float64, bits int) string {
	s := strconv.FormatFloat(v, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}

// attributeFloats converts a numeric attribute value to float64.
func attributeFloats(val interface{}) []float64 {
	switch vv := val.(type) {
	case []float64:
		return vv
	case []float32:
		o := make([]float64, len(vv))
		for i, v := range vv {
			o[i] = float64(v)
		}
		return o
	case []int32:
		o := make([]float64, len(vv))
		for i, v := range vv {
			o[i] = float64(v)
		}
		return o
	case []int16:
		o := make([]float64, len(vv))
		for i, v := range vv {
			o[i] = float64(v)
		}
		return o
	case []uint8:
		o := make([]float64, len(vv))
		for i, v := range vv {
			o[i] = float64(int8(v))
		}
		return o
	case string:
		f, err := cast.ToFloat64E(vv)
		if err != nil {
			return nil
		}
		return []float64{f}
	}
	return nil
}

// Config returns the attributes of variable v, which is usually
// "pism_config", as strings.
func (d *Dataset) Config(v string) (map[string]string, error) {
	if !d.HasVariable(v) {
		return nil, fmt.Errorf("analysis: variable %s not found in %s", v, d.Path)
	}
	o := make(map[string]string)
	for _, a := range d.nc.Header.Attributes(v) {
		o[a], _ = d.StringAttribute(v, a)
	}
	return o, nil
}

// Proj4 returns the proj4 global attribute, or the empty string if
// there is none.
func (d *Dataset) Proj4() string {
	p, _ := d.StringAttribute("", "proj4")
	return p
}

// Shape returns the dimension lengths of variable v, with the record
// dimension replaced by the number of records in the file.
func (d *Dataset) Shape(v string) []int {
	lengths := d.nc.Header.Lengths(v)
	shape := make([]int, len(lengths))
	copy(shape, lengths)
	if d.nc.Header.IsRecordVariable(v) {
		shape[0] = int(d.nc.Header.NumRecs(d.size))
	}
	return shape
}

// Read reads variable v as float64. Values equal to the _FillValue or
// missing_value attributes are returned as NaN. Variables of type char
// are not supported.
func (d *Dataset) Read(v string) (*sparse.DenseArray, error) {
	if !d.HasVariable(v) {
		return nil, fmt.Errorf("analysis: variable %s not found in %s", v, d.Path)
	}
	shape := d.Shape(v)
	out := sparse.ZerosDense(shape...)
	n := len(out.Elements)
	if n == 0 {
		return out, nil
	}
	var r cdf.Reader
	if d.nc.Header.IsRecordVariable(v) {
		begin, end := make([]int, len(shape)), make([]int, len(shape))
		end[0] = shape[0]
		r = d.nc.Reader(v, begin, end)
	} else {
		r = d.nc.Reader(v, nil, nil)
	}
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("analysis: reading variable %s from %s: %v", v, d.Path, err)
	}
	switch b := buf.(type) {
	case []float64:
		copy(out.Elements, b)
	case []float32:
		for i, x := range b {
			out.Elements[i] = float64(x)
		}
	case []int32:
		for i, x := range b {
			out.Elements[i] = float64(x)
		}
	case []int16:
		for i, x := range b {
			out.Elements[i] = float64(x)
		}
	case []uint8:
		return nil, fmt.Errorf("analysis: variable %s in %s is not numeric", v, d.Path)
	}
	for _, a := range []string{"_FillValue", "missing_value"} {
		fv := attributeFloats(d.nc.Header.GetAttribute(v, a))
		if len(fv) != 1 {
			continue
		}
		fill := fv[0]
		for i, x := range out.Elements {
			if x == fill || float32(x) == float32(fill) {
				out.Elements[i] = math.NaN()
			}
		}
	}
	return out, nil
}

// ReadStrings reads a char variable whose last dimension holds the
// characters of each string.
func (d *Dataset) ReadStrings(v string) ([]string, error) {
	if !d.HasVariable(v) {
		return nil, fmt.Errorf("analysis: variable %s not found in %s", v, d.Path)
	}
	shape := d.Shape(v)
	if len(shape) == 0 {
		return nil, fmt.Errorf("analysis: variable %s in %s has no dimensions", v, d.Path)
	}
	n := 1
	for _, l := range shape {
		n *= l
	}
	width := shape[len(shape)-1]
	if n == 0 || width == 0 {
		return nil, nil
	}
	r := d.nc.Reader(v, nil, nil)
	buf, ok := r.Zero(n).([]uint8)
	if !ok {
		return nil, fmt.Errorf("analysis: variable %s in %s is not a char variable", v, d.Path)
	}
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("analysis: reading variable %s from %s: %v", v, d.Path, err)
	}
	o := make([]string, n/width)
	for i := range o {
		o[i] = strings.TrimRight(string(buf[i*width:(i+1)*width]), "\x00 ")
	}
	return o, nil
}

// ReadSqueezed reads variable v and removes its singleton dimensions.
func (d *Dataset) ReadSqueezed(v string) (*sparse.DenseArray, error) {
	a, err := d.Read(v)
	if err != nil {
		return nil, err
	}
	return Squeeze(a), nil
}

// Coordinates returns the x and y coordinate vectors.
func (d *Dataset) Coordinates() (x, y []float64, err error) {
	xa, err := d.Read("x")
	if err != nil {
		return nil, nil, err
	}
	ya, err := d.Read("y")
	if err != nil {
		return nil, nil, err
	}
	return xa.Elements, ya.Elements, nil
}

// Squeeze returns a copy of a without its dimensions of length one.
func Squeeze(a *sparse.DenseArray) *sparse.DenseArray {
	var shape []int
	for _, l := range a.Shape {
		if l != 1 {
			shape = append(shape, l)
		}
	}
	if len(shape) == 0 {
		shape = []int{1}
	}
	o := sparse.ZerosDense(shape...)
	copy(o.Elements, a.Elements)
	return o
}
