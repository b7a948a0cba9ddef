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

package hash

import (
	"math"
	"reflect"
	"testing"
)

type job struct {
	Script, Body string
}

type keyed string

func (k keyed) Key() string { return "key:" + string(k) }

type private struct {
	a float64
}

func TestKey(t *testing.T) {
	a := Key(job{Script: "a.sh", Body: "echo a"})
	b := Key(job{Script: "a.sh", Body: "echo a"})
	c := Key(job{Script: "a.sh", Body: "echo b"})
	if a != b {
		t.Errorf("identical objects have different keys: %s != %s", a, b)
	}
	if a == c {
		t.Errorf("different objects have the same key %s", a)
	}
	if len(a) != 32 {
		t.Errorf("key length: have %d, want 32", len(a))
	}
	if k := Key(keyed("x")); k != "key:x" {
		t.Errorf("keyer: have %s, want key:x", k)
	}
}

func TestKeySpewFallback(t *testing.T) {
	a := Key(private{a: math.NaN()})
	b := Key(private{a: 1})
	if a == "" || a == b {
		t.Errorf("fallback keys %q and %q should be distinct and non-empty", a, b)
	}
	if a != Key(private{a: math.NaN()}) {
		t.Error("fallback key is not deterministic")
	}
}

func TestUnique(t *testing.T) {
	objs := []job{{"a", "1"}, {"b", "2"}, {"a", "1"}, {"c", "3"}, {"b", "2"}}
	have := Unique(len(objs), func(i int) interface{} { return objs[i] })
	want := []int{0, 1, 3}
	if !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
}
