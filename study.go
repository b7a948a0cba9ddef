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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/icesheet/pismrun/internal/hash"
	"github.com/sirupsen/logrus"
)

// Options holds the settings shared by all parameter studies. Zero
// values are replaced by the defaults of the chosen study.
type Options struct {
	// NProcs is the number of processors per job.
	NProcs int

	// ProcsPerNode is only used by studies that write their PBS header
	// for an arbitrary queue.
	ProcsPerNode int

	Walltime string
	Queue    string
	System   string
	Domain   string

	// OFormat and OSize are the PISM output format and output size.
	OFormat string
	OSize   string

	// Grid is the horizontal grid resolution [m].
	Grid int

	BedType        string
	DatasetVersion string
	Climate        string
	Calving        string
	Ocean          string
	ForcingType    string
	StressBalance  string

	// RegridFile is the file that new runs regrid from, for studies
	// that require one.
	RegridFile string

	// Sweep overrides the default parameter values of the study.
	Sweep *Sweep
}

var commonDefaults = Options{
	NProcs:   64,
	Walltime: "12:00:00",
	Queue:    "standard_4",
	System:   "pacman",
	Domain:   "greenland",
	OFormat:  "netcdf4_parallel",
	OSize:    "2dbig",
}

var (
	oFormats = []string{"netcdf3", "netcdf4_parallel", "pnetcdf"}
	oSizes   = []string{"small", "medium", "big", "2dbig"}
	queues   = []string{"standard_4", "standard_16", "standard", "gpu", "gpu_long", "long", "normal"}
)

// withDefaults returns a copy of o in which every zero field has been
// filled in from the given defaults and then from commonDefaults.
func (o Options) withDefaults(d Options) Options {
	for _, def := range []Options{d, commonDefaults} {
		setString(&o.Walltime, def.Walltime)
		setString(&o.Queue, def.Queue)
		setString(&o.System, def.System)
		setString(&o.Domain, def.Domain)
		setString(&o.OFormat, def.OFormat)
		setString(&o.OSize, def.OSize)
		setString(&o.BedType, def.BedType)
		setString(&o.DatasetVersion, def.DatasetVersion)
		setString(&o.Climate, def.Climate)
		setString(&o.Calving, def.Calving)
		setString(&o.Ocean, def.Ocean)
		setString(&o.ForcingType, def.ForcingType)
		setString(&o.StressBalance, def.StressBalance)
		setString(&o.RegridFile, def.RegridFile)
		if o.NProcs == 0 {
			o.NProcs = def.NProcs
		}
		if o.ProcsPerNode == 0 {
			o.ProcsPerNode = def.ProcsPerNode
		}
		if o.Grid == 0 {
			o.Grid = def.Grid
		}
	}
	return o
}

func setString(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

// choices checks option values against the values a study accepts.
type choices []struct {
	name  string
	value string
	valid []string
}

func (c choices) check(study string) error {
	for _, ch := range c {
		if !containsString(ch.valid, ch.value) {
			return fmt.Errorf("pismrun: %s: invalid %s %q; choose from %s",
				study, ch.name, ch.value, strings.Join(ch.valid, ", "))
		}
	}
	return nil
}

func checkGrid(study string, grid int, valid []int) error {
	if !containsInt(valid, grid) {
		return fmt.Errorf("pismrun: %s: invalid grid %d; choose from %v", study, grid, valid)
	}
	return nil
}

// Sweep holds the parameter values of a study. Scalar fields are held
// constant; list fields are combined by Cartesian product. Values may
// be integers, floating point numbers or strings, and are formatted
// with Format, so 1 and 1.0 produce different experiment names.
type Sweep struct {
	SIAE interface{} `toml:"sia_e"`
	PPQ  interface{} `toml:"ppq"`
	TEFO interface{} `toml:"tefo"`
	SSAN interface{} `toml:"ssa_n"`
	SSAE interface{} `toml:"ssa_e"`

	Omega               []interface{} `toml:"omega"`
	Alpha               []interface{} `toml:"alpha"`
	K                   []interface{} `toml:"k"`
	PhiMin              []interface{} `toml:"phi_min"`
	PhiMax              []interface{} `toml:"phi_max"`
	TopgMin             []interface{} `toml:"topg_min"`
	TopgMax             []interface{} `toml:"topg_max"`
	CalvingThkThreshold []interface{} `toml:"calving_thk_threshold"`
	CalvingK            []interface{} `toml:"calving_k"`
}

// Override returns a copy of s in which every field set in o replaces
// the corresponding field of s.
func (s Sweep) Override(o *Sweep) Sweep {
	if o == nil {
		return s
	}
	for _, p := range []struct{ dst, src *interface{} }{
		{&s.SIAE, &o.SIAE}, {&s.PPQ, &o.PPQ}, {&s.TEFO, &o.TEFO},
		{&s.SSAN, &o.SSAN}, {&s.SSAE, &o.SSAE},
	} {
		if *p.src != nil {
			*p.dst = *p.src
		}
	}
	for _, p := range []struct{ dst, src *[]interface{} }{
		{&s.Omega, &o.Omega}, {&s.Alpha, &o.Alpha}, {&s.K, &o.K},
		{&s.PhiMin, &o.PhiMin}, {&s.PhiMax, &o.PhiMax},
		{&s.TopgMin, &o.TopgMin}, {&s.TopgMax, &o.TopgMax},
		{&s.CalvingThkThreshold, &o.CalvingThkThreshold},
		{&s.CalvingK, &o.CalvingK},
	} {
		if *p.src != nil {
			*p.dst = *p.src
		}
	}
	return s
}

// ttphi returns the till friction angle parameterization
// "phi_min,phi_max,topg_min,topg_max".
func ttphi(phiMin, phiMax, topgMin, topgMax interface{}) string {
	return strings.Join([]string{Format(phiMin), Format(phiMax), Format(topgMin), Format(topgMax)}, ",")
}

// LoadSweep reads a sweep from a TOML file. Keys that do not name a
// sweep field are an error.
func LoadSweep(path string) (*Sweep, error) {
	s := new(Sweep)
	md, err := toml.DecodeFile(os.ExpandEnv(path), s)
	if err != nil {
		return nil, fmt.Errorf("pismrun: reading sweep file: %v", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		keys := make([]string, len(u))
		for i, k := range u {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("pismrun: unknown keys in sweep file %s: %s", path, strings.Join(keys, ", "))
	}
	return s, nil
}

// Job is a single model run in a parameter study.
type Job struct {
	// Experiment is the unique name of the parameter combination.
	Experiment string

	// Script is the file name of the job script and ScriptBody its
	// contents.
	Script, ScriptBody string

	// Post is the file name of the post-processing script and
	// PostBody its contents. They are empty for studies without
	// post-processing.
	Post, PostBody string

	// Env holds the PISM_EXPERIMENT and PISM_TITLE labels for the job.
	Env *Dict
}

// Key returns a key identifying the job by its script.
func (j Job) Key() string {
	return hash.Key(struct{ Script, ScriptBody, Post, PostBody string }{
		j.Script, j.ScriptBody, j.Post, j.PostBody})
}

// Plan is the set of files produced by a parameter study.
type Plan struct {
	Study string
	Jobs  []Job

	// Submit is the file name of the submit script and SubmitBody
	// its contents.
	Submit, SubmitBody string

	// Depend specifies whether post-processing jobs are queued with a
	// dependency on the model run.
	Depend bool
}

func newPlan(study, submit string, jobs []Job, depend bool) (*Plan, error) {
	idx := hash.Unique(len(jobs), func(i int) interface{} { return jobs[i] })
	unique := make([]Job, len(idx))
	for i, j := range idx {
		unique[i] = jobs[j]
	}
	body, err := SubmitScript(unique, depend)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Study:      study,
		Jobs:       unique,
		Submit:     submit,
		SubmitBody: body,
		Depend:     depend,
	}, nil
}

// Write writes the scripts in the plan to dir, replacing any existing
// files of the same name, and returns the path of the submit script.
func (p *Plan) Write(dir string, log logrus.FieldLogger) (string, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("pismrun: creating output directory: %v", err)
	}
	files := make(map[string]string)
	var names []string
	add := func(name, body string) {
		if name == "" {
			return
		}
		if _, ok := files[name]; !ok {
			names = append(names, name)
		}
		files[name] = body
	}
	for _, j := range p.Jobs {
		add(j.Script, j.ScriptBody)
		add(j.Post, j.PostBody)
	}
	add(p.Submit, p.SubmitBody)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("pismrun: removing stale file: %v", err)
		}
		if err := writeExecutable(path, files[name]); err != nil {
			return "", err
		}
	}
	submit := filepath.Join(dir, p.Submit)
	log.WithFields(logrus.Fields{
		"study":  p.Study,
		"jobs":   len(p.Jobs),
		"submit": submit,
	}).Infof("run %s to submit all jobs to the scheduler", submit)
	return submit, nil
}

func writeExecutable(path, body string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("pismrun: writing script: %v", err)
	}
	if _, err = f.WriteString(body); err != nil {
		f.Close()
		return fmt.Errorf("pismrun: writing script: %v", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("pismrun: writing script: %v", err)
	}
	return nil
}

// Study is a parameter study that generates job scripts.
type Study struct {
	Name        string
	Description string

	// NeedsRegridFile specifies whether Options.RegridFile is required.
	NeedsRegridFile bool

	defaults Options
	sweep    func() Sweep
	plan     func(o Options, s Sweep) (*Plan, error)
}

// DefaultSweep returns the parameter values the study uses when no
// sweep file is given.
func (s *Study) DefaultSweep() Sweep { return s.sweep() }

// Defaults returns the study's default options.
func (s *Study) Defaults() Options { return s.defaults.withDefaults(Options{}) }

// Plan generates the jobs of the study.
func (s *Study) Plan(o Options) (*Plan, error) {
	o = o.withDefaults(s.defaults)
	if s.NeedsRegridFile && o.RegridFile == "" {
		return nil, fmt.Errorf("pismrun: %s: a regrid file is required", s.Name)
	}
	if o.NProcs <= 0 {
		return nil, fmt.Errorf("pismrun: %s: number of processors must be > 0 but is %d", s.Name, o.NProcs)
	}
	return s.plan(o, s.sweep().Override(o.Sweep))
}

// Studies holds the available parameter studies by name.
var Studies = map[string]*Study{}

func registerStudy(s *Study) {
	if _, ok := Studies[s.Name]; ok {
		panic(fmt.Errorf("pismrun: duplicate study %s", s.Name))
	}
	Studies[s.Name] = s
}

// StudyNames returns the names of the available studies, sorted.
func StudyNames() []string {
	o := make([]string, 0, len(Studies))
	for n := range Studies {
		o = append(o, n)
	}
	sort.Strings(o)
	return o
}

// GetStudy returns the study with the given name.
func GetStudy(name string) (*Study, error) {
	s, ok := Studies[name]
	if !ok {
		return nil, fmt.Errorf("pismrun: unknown study %q; choose from %s", name, strings.Join(StudyNames(), ", "))
	}
	return s, nil
}

const tee = "2>&1 | tee job.${PBS_JOBID}"

// runCommand returns the shell command that runs PISM through
// script with the environment env. The input file argument is always
// empty, which leaves two spaces before the output redirection.
func runCommand(env *Dict, script string, args ...interface{}) string {
	words := []string{env.Env(), script}
	for _, a := range args {
		words = append(words, Format(a))
	}
	words = append(words, "", tee)
	return strings.Join(words, " ")
}

func jobEnv(experiment, title string) *Dict {
	d := NewDict()
	d.Set("PISM_EXPERIMENT", experiment)
	d.Set("PISM_TITLE", title)
	return d
}
