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

// Package ncedit edits NetCDF classic files. The cdf library cannot
// change the layout of an existing file, so each edit reads the whole
// file into memory and writes it back out.
package ncedit

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ctessum/cdf"
)

// Attribute is a NetCDF attribute. Value is one of []uint8, string,
// []int16, []int32, []float32 or []float64.
type Attribute struct {
	Name  string
	Value interface{}
}

// Variable is a NetCDF variable held in memory.
type Variable struct {
	Name  string
	Dims  []string
	Attrs []Attribute

	// Data holds the values in row-major order as []uint8, []int16,
	// []int32, []float32 or []float64. A nil Data is written as the
	// fill value.
	Data interface{}

	// Char marks a character variable, whose Data is []uint8.
	Char bool
}

// File is the contents of a NetCDF classic file.
type File struct {
	Dims []string
	// Lengths holds the length of each dimension. The record dimension
	// has length zero.
	Lengths []int
	NumRecs int
	Attrs   []Attribute
	Vars    []*Variable
}

// Fill is the fill value given to variables created here.
const Fill = -2e9

func setAttr(attrs []Attribute, name string, value interface{}) []Attribute {
	for i, a := range attrs {
		if a.Name == name {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, Attribute{Name: name, Value: value})
}

func getAttr(attrs []Attribute, name string) (interface{}, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

func deleteAttr(attrs []Attribute, name string) []Attribute {
	for i, a := range attrs {
		if a.Name == name {
			return append(attrs[:i], attrs[i+1:]...)
		}
	}
	return attrs
}

// SetAttr sets attribute name of v, replacing any existing value.
func (v *Variable) SetAttr(name string, value interface{}) { v.Attrs = setAttr(v.Attrs, name, value) }

// Attr returns attribute name of v.
func (v *Variable) Attr(name string) (interface{}, bool) { return getAttr(v.Attrs, name) }

// SetAttr sets global attribute name, replacing any existing value.
func (f *File) SetAttr(name string, value interface{}) { f.Attrs = setAttr(f.Attrs, name, value) }

// Attr returns global attribute name.
func (f *File) Attr(name string) (interface{}, bool) { return getAttr(f.Attrs, name) }

// Var returns the variable called name, or nil.
func (f *File) Var(name string) *Variable {
	for _, v := range f.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Remove drops the named variables and returns how many were present.
func (f *File) Remove(names ...string) int {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.Vars[:0]
	for _, v := range f.Vars {
		if !drop[v.Name] {
			kept = append(kept, v)
		}
	}
	n := len(f.Vars) - len(kept)
	f.Vars = kept
	return n
}

// AddDim adds a dimension. Adding an existing dimension with the same
// length does nothing.
func (f *File) AddDim(name string, length int) error {
	for i, d := range f.Dims {
		if d == name {
			if f.Lengths[i] != length {
				return fmt.Errorf("ncedit: dimension %s has length %d, not %d", name, f.Lengths[i], length)
			}
			return nil
		}
	}
	if length == 0 {
		for _, l := range f.Lengths {
			if l == 0 {
				return fmt.Errorf("ncedit: file already has a record dimension")
			}
		}
	}
	f.Dims = append(f.Dims, name)
	f.Lengths = append(f.Lengths, length)
	return nil
}

// dimLength returns the length of dimension name, counting records for
// the record dimension.
func (f *File) dimLength(name string) (n int, record bool, err error) {
	for i, d := range f.Dims {
		if d == name {
			if f.Lengths[i] == 0 {
				return f.NumRecs, true, nil
			}
			return f.Lengths[i], false, nil
		}
	}
	return 0, false, fmt.Errorf("ncedit: no dimension %s", name)
}

// Shape returns the shape of v.
func (f *File) Shape(v *Variable) ([]int, error) {
	shape := make([]int, len(v.Dims))
	for i, d := range v.Dims {
		n, record, err := f.dimLength(d)
		if err != nil {
			return nil, fmt.Errorf("%v (variable %s)", err, v.Name)
		}
		if record && i != 0 {
			return nil, fmt.Errorf("ncedit: record dimension %s is not the first dimension of %s", d, v.Name)
		}
		shape[i] = n
	}
	return shape, nil
}

// Size returns the number of values of v.
func (f *File) Size(v *Variable) (int, error) {
	shape, err := f.Shape(v)
	if err != nil {
		return 0, err
	}
	n := 1
	for _, l := range shape {
		n *= l
	}
	return n, nil
}

func dataLen(data interface{}) int {
	switch d := data.(type) {
	case []uint8:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	}
	return -1
}

// fillValue returns the _FillValue of v as float64, if it has one.
func (v *Variable) fillValue() (float64, bool) {
	a, ok := v.Attr("_FillValue")
	if !ok {
		return 0, false
	}
	switch fv := a.(type) {
	case []float64:
		if len(fv) > 0 {
			return fv[0], true
		}
	case []float32:
		if len(fv) > 0 {
			return float64(fv[0]), true
		}
	case []int32:
		if len(fv) > 0 {
			return float64(fv[0]), true
		}
	case []int16:
		if len(fv) > 0 {
			return float64(fv[0]), true
		}
	}
	return 0, false
}

// Float64s returns the values of the variable called name as float64,
// with fill values replaced by NaN.
func (f *File) Float64s(name string) ([]float64, error) {
	v := f.Var(name)
	if v == nil {
		return nil, fmt.Errorf("ncedit: no variable %s", name)
	}
	if v.Char {
		return nil, fmt.Errorf("ncedit: %s is a char variable", name)
	}
	n, err := f.Size(v)
	if err != nil {
		return nil, err
	}
	o := make([]float64, n)
	switch d := v.Data.(type) {
	case nil:
		for i := range o {
			o[i] = math.NaN()
		}
		return o, nil
	case []uint8:
		for i, x := range d {
			o[i] = float64(x)
		}
	case []int16:
		for i, x := range d {
			o[i] = float64(x)
		}
	case []int32:
		for i, x := range d {
			o[i] = float64(x)
		}
	case []float32:
		for i, x := range d {
			o[i] = float64(x)
		}
	case []float64:
		copy(o, d)
	default:
		return nil, fmt.Errorf("ncedit: %s has unsupported data type %T", name, v.Data)
	}
	if fv, ok := v.fillValue(); ok {
		for i, x := range o {
			if x == fv {
				o[i] = math.NaN()
			}
		}
	}
	return o, nil
}

// SetFloat64s stores values in v, keeping the type of its data. NaN and
// infinite values are stored as the variable's _FillValue, or Fill.
func (v *Variable) SetFloat64s(values []float64) {
	fv, ok := v.fillValue()
	if !ok {
		fv = Fill
	}
	val := func(i int) float64 {
		x := values[i]
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fv
		}
		return x
	}
	switch v.Data.(type) {
	case []int16:
		o := make([]int16, len(values))
		for i := range o {
			o[i] = int16(val(i))
		}
		v.Data = o
	case []int32:
		o := make([]int32, len(values))
		for i := range o {
			o[i] = int32(val(i))
		}
		v.Data = o
	case []float64:
		o := make([]float64, len(values))
		for i := range o {
			o[i] = val(i)
		}
		v.Data = o
	default:
		o := make([]float32, len(values))
		for i := range o {
			o[i] = float32(val(i))
		}
		v.Data = o
	}
}

// ReadFile reads the NetCDF file at path into memory.
func ReadFile(path string) (*File, error) {
	r, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("ncedit: %v", err)
	}
	defer r.Close()
	fi, err := r.Stat()
	if err != nil {
		return nil, fmt.Errorf("ncedit: %v", err)
	}
	nc, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("ncedit: %s is not a NetCDF classic file: %v", path, err)
	}
	h := nc.Header
	f := &File{
		Dims:    h.Dimensions(""),
		Lengths: h.Lengths(""),
		NumRecs: int(h.NumRecs(fi.Size())),
	}
	for _, a := range h.Attributes("") {
		f.Attrs = append(f.Attrs, Attribute{Name: a, Value: h.GetAttribute("", a)})
	}
	for _, name := range h.Variables() {
		v := &Variable{Name: name}
		if dims := h.Dimensions(name); len(dims) > 0 {
			v.Dims = dims
		}
		if _, ok := h.ZeroValue(name, 0).(string); ok {
			v.Char = true
		}
		for _, a := range h.Attributes(name) {
			v.Attrs = append(v.Attrs, Attribute{Name: a, Value: h.GetAttribute(name, a)})
		}
		n, err := f.Size(v)
		if err != nil {
			return nil, err
		}
		var rd cdf.Reader
		if h.IsRecordVariable(name) {
			if f.NumRecs == 0 {
				v.Data = h.ZeroValue(name, 0)
				if v.Char {
					v.Data = []uint8{}
				}
				f.Vars = append(f.Vars, v)
				continue
			}
			begin, end := make([]int, len(v.Dims)), make([]int, len(v.Dims))
			end[0] = f.NumRecs
			rd = nc.Reader(name, begin, end)
		} else {
			rd = nc.Reader(name, nil, nil)
		}
		buf := rd.Zero(n)
		if n > 0 {
			if _, err := rd.Read(buf); err != nil && err != io.EOF {
				return nil, fmt.Errorf("ncedit: reading %s from %s: %v", name, path, err)
			}
		}
		v.Data = buf
		f.Vars = append(f.Vars, v)
	}
	return f, nil
}

// check returns an error if f cannot be written.
func (f *File) check() error {
	seen := make(map[string]bool)
	for _, v := range f.Vars {
		if seen[v.Name] {
			return fmt.Errorf("ncedit: variable %s is defined twice", v.Name)
		}
		seen[v.Name] = true
		n, err := f.Size(v)
		if err != nil {
			return err
		}
		if v.Data == nil {
			return fmt.Errorf("ncedit: variable %s has no data type", v.Name)
		}
		l := dataLen(v.Data)
		if l < 0 {
			return fmt.Errorf("ncedit: variable %s has unsupported data type %T", v.Name, v.Data)
		}
		if l != n && l != 0 {
			return fmt.Errorf("ncedit: variable %s has %d values, want %d", v.Name, l, n)
		}
		if _, ok := v.Data.([]uint8); v.Char && !ok {
			return fmt.Errorf("ncedit: char variable %s must hold []uint8", v.Name)
		}
	}
	return nil
}

// WriteFile writes f to a new file at path.
func (f *File) WriteFile(path string) error {
	if err := f.check(); err != nil {
		return err
	}
	h := cdf.NewHeader(f.Dims, f.Lengths)
	record := false
	for _, v := range f.Vars {
		var kind interface{} = v.Data
		if v.Char {
			kind = ""
		}
		h.AddVariable(v.Name, v.Dims, kind)
		for _, a := range v.Attrs {
			h.AddAttribute(v.Name, a.Name, a.Value)
		}
		record = record || h.IsRecordVariable(v.Name)
	}
	for _, a := range f.Attrs {
		h.AddAttribute("", a.Name, a.Value)
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("ncedit: invalid header for %s: %v", path, errs[0])
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ncedit: %v", err)
	}
	nc, err := cdf.Create(w, h)
	if err != nil {
		w.Close()
		return fmt.Errorf("ncedit: creating %s: %v", path, err)
	}
	for _, v := range f.Vars {
		if dataLen(v.Data) == 0 {
			continue
		}
		var begin, end []int
		if len(v.Dims) > 0 {
			shape, err := f.Shape(v)
			if err != nil {
				w.Close()
				return err
			}
			begin, end = make([]int, len(shape)), shape
		}
		if _, err := nc.Writer(v.Name, begin, end).Write(v.Data); err != nil && err != io.EOF {
			w.Close()
			return fmt.Errorf("ncedit: writing %s to %s: %v", v.Name, path, err)
		}
	}
	if record {
		if err := cdf.UpdateNumRecs(w); err != nil {
			w.Close()
			return fmt.Errorf("ncedit: %v", err)
		}
	}
	return w.Close()
}

// Rewrite applies edit to the file at path. The edited file is written
// to path.tmp and then renamed over the original.
func Rewrite(path string, edit func(*File) error) error {
	path = os.ExpandEnv(path)
	f, err := ReadFile(path)
	if err != nil {
		return err
	}
	if err := edit(f); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := f.WriteFile(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ncedit: %v", err)
	}
	return nil
}
