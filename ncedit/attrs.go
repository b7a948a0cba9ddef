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

package ncedit

import (
	"fmt"
	"strconv"
	"strings"
)

// AttributeEdit is an ncatted-style attribute edit.
type AttributeEdit struct {
	// Var is the variable to edit; empty or "global" edits the global
	// attributes.
	Var  string
	Name string
	// Mode is 'o' to overwrite or create, 'c' to create only if absent
	// and 'd' to delete.
	Mode  byte
	Value interface{}
}

// ParseAttributeEdit parses an edit of the form
// name,var,mode,type,value as taken by ncatted -a. Types are c (text),
// f (float), d (double), s (short) and i or l (int). Numeric values
// may be lists separated by commas.
func ParseAttributeEdit(s string) (AttributeEdit, error) {
	parts := strings.SplitN(s, ",", 5)
	if len(parts) < 3 {
		return AttributeEdit{}, fmt.Errorf("ncedit: attribute edit %q needs at least name,var,mode", s)
	}
	e := AttributeEdit{Name: parts[0], Var: parts[1]}
	if len(parts[2]) != 1 || !strings.Contains("ocd", parts[2]) {
		return e, fmt.Errorf("ncedit: attribute edit %q has invalid mode %q", s, parts[2])
	}
	e.Mode = parts[2][0]
	if e.Mode == 'd' {
		return e, nil
	}
	if len(parts) != 5 {
		return e, fmt.Errorf("ncedit: attribute edit %q needs a type and a value", s)
	}
	v, err := attributeValue(parts[3], parts[4])
	if err != nil {
		return e, fmt.Errorf("ncedit: attribute edit %q: %v", s, err)
	}
	e.Value = v
	return e, nil
}

func attributeValue(kind, s string) (interface{}, error) {
	if kind == "c" {
		return s, nil
	}
	fields := strings.Split(s, ",")
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	switch kind {
	case "d":
		return vals, nil
	case "f":
		o := make([]float32, len(vals))
		for i, v := range vals {
			o[i] = float32(v)
		}
		return o, nil
	case "i", "l":
		o := make([]int32, len(vals))
		for i, v := range vals {
			o[i] = int32(v)
		}
		return o, nil
	case "s":
		o := make([]int16, len(vals))
		for i, v := range vals {
			o[i] = int16(v)
		}
		return o, nil
	}
	return nil, fmt.Errorf("unsupported type %q", kind)
}

// SetAttributes applies edits to f.
func SetAttributes(f *File, edits ...AttributeEdit) error {
	for _, e := range edits {
		attrs := &f.Attrs
		if e.Var != "" && e.Var != "global" {
			v := f.Var(e.Var)
			if v == nil {
				return fmt.Errorf("ncedit: cannot set attribute %s of missing variable %s", e.Name, e.Var)
			}
			attrs = &v.Attrs
		}
		_, exists := getAttr(*attrs, e.Name)
		switch e.Mode {
		case 'd':
			*attrs = deleteAttr(*attrs, e.Name)
		case 'c':
			if !exists {
				*attrs = setAttr(*attrs, e.Name, e.Value)
			}
		case 'o', 0:
			*attrs = setAttr(*attrs, e.Name, e.Value)
		default:
			return fmt.Errorf("ncedit: invalid attribute mode %q", e.Mode)
		}
	}
	return nil
}

// Exclude drops the named variables from f and returns how many were
// present.
func Exclude(f *File, names ...string) int { return f.Remove(names...) }
