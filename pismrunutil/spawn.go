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

package pismrunutil

import (
	"context"
	"fmt"
	"os"

	"github.com/icesheet/pismrun"
	"github.com/kr/pretty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// runner submits jobs to the batch queue. Tests replace it.
var runner pismrun.Runner = pismrun.QsubRunner{}

// studyOptions returns the study options set in the configuration.
func studyOptions() pismrun.Options {
	return pismrun.Options{
		NProcs:         Cfg.GetInt("nprocs"),
		ProcsPerNode:   Cfg.GetInt("ppn"),
		Walltime:       Cfg.GetString("walltime"),
		Queue:          Cfg.GetString("queue"),
		System:         Cfg.GetString("system"),
		Domain:         Cfg.GetString("domain"),
		OFormat:        Cfg.GetString("o_format"),
		OSize:          Cfg.GetString("o_size"),
		Grid:           Cfg.GetInt("grid"),
		BedType:        Cfg.GetString("bed_type"),
		DatasetVersion: Cfg.GetString("dataset_version"),
		Climate:        Cfg.GetString("climate"),
		Calving:        Cfg.GetString("calving"),
		Ocean:          Cfg.GetString("ocean"),
		ForcingType:    Cfg.GetString("forcing_type"),
		StressBalance:  Cfg.GetString("stress_balance"),
	}
}

// Spawn generates the jobs of the named study. If sweepFile is not
// empty, the parameter values it sets replace those of the study.
func Spawn(study string, o pismrun.Options, sweepFile string) (*pismrun.Plan, error) {
	s, err := pismrun.GetStudy(study)
	if err != nil {
		return nil, err
	}
	if sweepFile != "" {
		if o.Sweep, err = pismrun.LoadSweep(sweepFile); err != nil {
			return nil, err
		}
	}
	return s.Plan(o)
}

// Submit submits the jobs of the submit script at path using the
// given submit command.
func Submit(ctx context.Context, path, qsub string, log logrus.FieldLogger) ([]pismrun.Submission, error) {
	s := &pismrun.Submitter{Runner: runner, Command: qsub, Log: log}
	return s.SubmitFile(ctx, path)
}

var spawnCmd = &cobra.Command{
	Use:   "spawn",
	Short: "Write the job scripts of a parameter study.",
	Long: `spawn writes one PBS job script per parameter combination of a study,
post-processing scripts where the study has them, and a submit script that
queues all jobs. Use the subcommands specified below to choose the study.
Options left at zero or empty take the defaults of the study.`,
	DisableAutoGenTag: true,
}

// studyCmd returns the command that spawns study s.
func studyCmd(s *pismrun.Study) *cobra.Command {
	use := s.Name
	args := cobra.NoArgs
	if s.NeedsRegridFile {
		use += " regridfile"
		args = cobra.ExactArgs(1)
	}
	return &cobra.Command{
		Use:   use,
		Short: "Spawn the " + s.Description + ".",
		Long: fmt.Sprintf(`%s spawns the %s.
The default parameter values are:
%# v`, s.Name, s.Description, pretty.Formatter(s.DefaultSweep())),
		Args: args,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := studyOptions()
			if len(args) > 0 {
				o.RegridFile = os.ExpandEnv(args[0])
			}
			plan, err := Spawn(s.Name, o, os.ExpandEnv(Cfg.GetString("sweep")))
			if err != nil {
				return err
			}
			if Cfg.GetBool("dry-run") {
				pretty.Fprintf(cmd.OutOrStdout(), "%# v\n", plan)
				return nil
			}
			submit, err := plan.Write(os.ExpandEnv(Cfg.GetString("outdir")), Log)
			if err != nil {
				return err
			}
			if !Cfg.GetBool("submit") {
				return nil
			}
			_, err = Submit(context.Background(), submit, Cfg.GetString("qsub"), Log)
			return err
		},
		DisableAutoGenTag: true,
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit script",
	Short: "Submit the jobs of a submit script.",
	Long: `submit submits each job listed in a submit script written by spawn to the
batch queue, from the directory holding the script. Post-processing jobs are
queued to run after the job they follow. Failed submissions are retried.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subs, err := Submit(context.Background(), os.ExpandEnv(args[0]), Cfg.GetString("qsub"), Log)
		for _, s := range subs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, s.Script)
		}
		return err
	},
	DisableAutoGenTag: true,
}
