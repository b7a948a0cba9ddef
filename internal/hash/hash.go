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

// Package hash computes deterministic keys for job descriptions so
// that duplicate jobs can be dropped from a plan.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// Keyer is implemented by objects that provide their own key.
type Keyer interface {
	Key() string
}

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a key for object. Objects that implement Keyer supply
// their own key. Otherwise the object is gob-encoded into a 128-bit
// FNV-1a hash; values gob cannot encode, such as structs without
// exported fields, are printed with spew instead.
func Key(object interface{}) string {
	if k, ok := object.(Keyer); ok {
		return k.Key()
	}
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(object); err != nil {
		h.Reset()
		printer.Fprintf(h, "%#v", object)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Unique returns the indices of the first occurrence of each distinct
// key among n objects, in order. object(i) returns the object at index i.
func Unique(n int, object func(i int) interface{}) []int {
	seen := make(map[string]struct{}, n)
	var o []int
	for i := 0; i < n; i++ {
		k := Key(object(i))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		o = append(o, i)
	}
	return o
}
