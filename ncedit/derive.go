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
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/icesheet/pismrun"
	"github.com/sirupsen/logrus"
)

// Step is one statement of a derivation recipe: either an assignment
// Name = Expr or a where clause that sets variables where Expr holds.
type Step struct {
	Name string
	Expr string

	// Set holds the assignments of a where clause.
	Set []Assignment
}

// Assignment sets a variable to a constant.
type Assignment struct {
	Name  string
	Value float64
}

func (s Step) String() string {
	if s.Name != "" {
		return s.Name + "=" + s.Expr
	}
	var set []string
	for _, a := range s.Set {
		set = append(set, a.Name+"="+strconv.FormatFloat(a.Value, 'g', -1, 64))
	}
	return "where(" + s.Expr + ") {" + strings.Join(set, "; ") + "}"
}

// PostRecipe is the derivation applied to PISM output by the
// post-processing scripts.
var PostRecipe = pismrun.Ncap2Script

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseRecipe parses statements in the ncap2 style, separated by
// semicolons:
//
//	uflux=ubar*thk; where(thk<50) {velsurf_mag=-2e9;}; tau_r=tauc/(taud_mag+1)
func ParseRecipe(s string) ([]Step, error) {
	var steps []Step
	for {
		s = strings.TrimLeft(s, " \t\n;")
		if s == "" {
			return steps, nil
		}
		if strings.HasPrefix(s, "where") && strings.HasPrefix(strings.TrimSpace(s[5:]), "(") {
			step, rest, err := parseWhere(s)
			if err != nil {
				return nil, err
			}
			steps = append(steps, step)
			s = rest
			continue
		}
		stmt := s
		if i := strings.IndexByte(s, ';'); i >= 0 {
			stmt, s = s[:i], s[i+1:]
		} else {
			s = ""
		}
		name, expr, err := splitAssignment(stmt)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Name: name, Expr: expr})
	}
}

// splitAssignment splits "name = expr" at the first = that is not part
// of a comparison.
func splitAssignment(stmt string) (name, expr string, err error) {
	for i := 0; i < len(stmt); i++ {
		if stmt[i] != '=' {
			continue
		}
		if i+1 < len(stmt) && stmt[i+1] == '=' {
			i++
			continue
		}
		if i > 0 && strings.IndexByte("<>!", stmt[i-1]) >= 0 {
			continue
		}
		name, expr = strings.TrimSpace(stmt[:i]), strings.TrimSpace(stmt[i+1:])
		if !identifier.MatchString(name) {
			return "", "", fmt.Errorf("ncedit: invalid variable name %q in %q", name, stmt)
		}
		if expr == "" {
			return "", "", fmt.Errorf("ncedit: empty expression in %q", stmt)
		}
		return name, expr, nil
	}
	return "", "", fmt.Errorf("ncedit: %q is not an assignment", strings.TrimSpace(stmt))
}

func parseWhere(s string) (Step, string, error) {
	open := strings.IndexByte(s, '(')
	depth, end := 0, -1
	for i := open; i < len(s); i++ {
		if s[i] == '(' {
			depth++
		} else if s[i] == ')' {
			depth--
			if depth == 0 {
				end = i
				break
			}
		}
	}
	if end < 0 {
		return Step{}, "", fmt.Errorf("ncedit: unbalanced parentheses in %q", s)
	}
	step := Step{Expr: strings.TrimSpace(s[open+1 : end])}
	rest := strings.TrimSpace(s[end+1:])
	if !strings.HasPrefix(rest, "{") {
		return Step{}, "", fmt.Errorf("ncedit: where clause %q needs a {...} block", step.Expr)
	}
	closing := strings.IndexByte(rest, '}')
	if closing < 0 {
		return Step{}, "", fmt.Errorf("ncedit: unterminated block in where clause %q", step.Expr)
	}
	for _, stmt := range strings.Split(rest[1:closing], ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		name, expr, err := splitAssignment(stmt)
		if err != nil {
			return Step{}, "", err
		}
		v, err := strconv.ParseFloat(expr, 64)
		if err != nil {
			return Step{}, "", fmt.Errorf("ncedit: where clause %q can only assign constants, not %q", step.Expr, expr)
		}
		step.Set = append(step.Set, Assignment{Name: name, Value: v})
	}
	return step, rest[closing+1:], nil
}

// evaluate computes expr for every cell of its input variables. If an
// input is not in f, missing holds its name.
func evaluate(f *File, expr string) (values []float64, dims []string, missing string, err error) {
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, nil, "", fmt.Errorf("ncedit: parsing %q: %v", expr, err)
	}
	names := e.Vars()
	if len(names) == 0 {
		return nil, nil, "", fmt.Errorf("ncedit: expression %q uses no variables", expr)
	}
	inputs := make(map[string][]float64, len(names))
	n := -1
	for _, name := range names {
		if _, ok := inputs[name]; ok {
			continue
		}
		v := f.Var(name)
		if v == nil {
			return nil, nil, name, nil
		}
		vals, err := f.Float64s(name)
		if err != nil {
			return nil, nil, "", err
		}
		if n < 0 {
			n, dims = len(vals), v.Dims
		} else if len(vals) != n {
			return nil, nil, "", fmt.Errorf("ncedit: %s has %d values but %s has %d in %q", name, len(vals), names[0], n, expr)
		}
		inputs[name] = vals
	}
	values = make([]float64, n)
	params := make(map[string]interface{}, len(inputs))
	for i := range values {
		for name, vals := range inputs {
			params[name] = vals[i]
		}
		r, err := e.Evaluate(params)
		if err != nil {
			return nil, nil, "", fmt.Errorf("ncedit: evaluating %q: %v", expr, err)
		}
		switch x := r.(type) {
		case float64:
			values[i] = x
		case bool:
			if x {
				values[i] = 1
			}
		default:
			return nil, nil, "", fmt.Errorf("ncedit: %q evaluates to %T", expr, r)
		}
	}
	return values, dims, "", nil
}

// Derive applies steps to f in order and returns the names of the
// variables it changed. Steps whose inputs are missing are skipped with
// a warning. New variables are float with _FillValue Fill.
func Derive(f *File, steps []Step, log logrus.FieldLogger) ([]string, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var changed []string
	for _, s := range steps {
		values, dims, missing, err := evaluate(f, s.Expr)
		if err != nil {
			return changed, err
		}
		if missing != "" {
			log.WithField("step", s.String()).Warnf("skipping step: variable %s not found", missing)
			continue
		}
		if s.Name != "" {
			v := f.Var(s.Name)
			if v == nil {
				v = &Variable{Name: s.Name, Dims: dims, Data: []float32{}}
				v.SetAttr("_FillValue", []float32{Fill})
				f.Vars = append(f.Vars, v)
			}
			if n, err := f.Size(v); err != nil {
				return changed, err
			} else if n != len(values) {
				return changed, fmt.Errorf("ncedit: cannot assign %d values to %s, which has %d", len(values), s.Name, n)
			}
			v.SetFloat64s(values)
			changed = append(changed, s.Name)
			continue
		}
		for _, a := range s.Set {
			if f.Var(a.Name) == nil {
				log.WithField("step", s.String()).Warnf("variable %s not found, not setting it", a.Name)
				continue
			}
			vals, err := f.Float64s(a.Name)
			if err != nil {
				return changed, err
			}
			if len(vals) != len(values) {
				return changed, fmt.Errorf("ncedit: %s has %d values but the condition %q has %d", a.Name, len(vals), s.Expr, len(values))
			}
			for i, c := range values {
				if c != 0 && !math.IsNaN(c) {
					vals[i] = a.Value
				}
			}
			f.Var(a.Name).SetFloat64s(vals)
			changed = append(changed, a.Name)
		}
	}
	return changed, nil
}
