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

package pismrun

import (
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Dict is a dictionary of parameter names and values that remembers
// the order in which keys were first inserted. Setting a key that
// already exists changes its value but not its position.
type Dict struct {
	keys   []string
	values map[string]string
}

// NewDict creates an empty dictionary.
func NewDict() *Dict {
	return &Dict{values: make(map[string]string)}
}

// Set sets key to the formatted representation of v. See Format
// for the formatting rules.
func (d *Dict) Set(key string, v interface{}) {
	if d.values == nil {
		d.values = make(map[string]string)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = Format(v)
}

// Get returns the value stored for key and whether it exists.
func (d *Dict) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string {
	o := make([]string, len(d.keys))
	copy(o, d.keys)
	return o
}

// Len returns the number of keys.
func (d *Dict) Len() int { return len(d.keys) }

// Copy returns a shallow copy of d.
func (d *Dict) Copy() *Dict {
	return Merge(d)
}

// Merge combines any number of dictionaries into a new one. Keys keep
// the position of their first appearance and values from later
// dictionaries take precedence.
func Merge(dicts ...*Dict) *Dict {
	o := NewDict()
	for _, d := range dicts {
		if d == nil {
			continue
		}
		for _, k := range d.keys {
			o.Set(k, d.values[k])
		}
	}
	return o
}

// Env renders the dictionary as shell variable assignments,
// e.g. "A=1 B=2".
func (d *Dict) Env() string {
	return d.join("=", " ", "")
}

// Flags renders the dictionary as command-line options,
// e.g. "-Mx 88 -skip ".
func (d *Dict) Flags() string {
	return d.join(" ", " ", "-")
}

// Name renders the dictionary for use in a file name,
// e.g. "sia_e_1.25_ppq_0.6".
func (d *Dict) Name() string {
	return d.join("_", "_", "")
}

func (d *Dict) join(kvSep, itemSep, prefix string) string {
	items := make([]string, len(d.keys))
	for i, k := range d.keys {
		items[i] = prefix + k + kvSep + d.values[k]
	}
	return strings.Join(items, itemSep)
}

// Format returns the string representation of v used in script and
// file names. Floating point numbers are printed with 12 significant
// digits and always carry a decimal point or an exponent, so that
// 1.0 is "1.0", 1e15 is "1e+15" and 0.0001 is "0.0001". Integers and
// strings are printed as they are.
func Format(v interface{}) string {
	switch t := v.(type) {
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case string:
		return t
	}
	return cast.ToString(v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', 12, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Product returns the Cartesian product of the given value lists. The
// rightmost list varies fastest.
func Product(lists ...[]interface{}) [][]interface{} {
	if len(lists) == 0 {
		return nil
	}
	o := [][]interface{}{{}}
	for _, list := range lists {
		var next [][]interface{}
		for _, prefix := range o {
			for _, v := range list {
				c := make([]interface{}, len(prefix), len(prefix)+1)
				copy(c, prefix)
				next = append(next, append(c, v))
			}
		}
		o = next
	}
	return o
}

// UniquifyStrings removes duplicates from seq while preserving order.
// Two items are duplicates if idfun returns the same key for both;
// if idfun is nil the items themselves are compared.
func UniquifyStrings(seq []string, idfun func(string) string) []string {
	if idfun == nil {
		idfun = func(s string) string { return s }
	}
	seen := make(map[string]struct{})
	var o []string
	for _, s := range seq {
		marker := idfun(s)
		if _, ok := seen[marker]; ok {
			continue
		}
		seen[marker] = struct{}{}
		o = append(o, s)
	}
	return o
}
