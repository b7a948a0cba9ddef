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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Runner runs a batch-queue command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// QsubRunner runs commands on the local machine.
type QsubRunner struct{}

// Run runs the command in directory dir.
func (QsubRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %v: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// FakeRunner records the commands it is asked to run and returns
// sequential job identifiers. It is meant for testing and dry runs.
type FakeRunner struct {
	mu sync.Mutex

	// Calls holds the arguments of each call.
	Calls [][]string

	// Fail, if set, is called for each command and the returned error,
	// if any, is returned from Run.
	Fail func(call int, args []string) error

	next int
}

// Run records the command and returns an identifier of the form
// "<n>.fake".
func (f *FakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := append([]string{name}, args...)
	f.Calls = append(f.Calls, call)
	if f.Fail != nil {
		if err := f.Fail(len(f.Calls)-1, call); err != nil {
			return nil, err
		}
	}
	f.next++
	return []byte(fmt.Sprintf("%d.fake\n", f.next)), nil
}

var (
	submitLine = regexp.MustCompile(`^JOBID=\$\(qsub\s+(\S+)\)$`)
	dependLine = regexp.MustCompile(`^qsub\s+-W\s+depend=afterok:\$\{JOBID\}\s+(\S+)$`)
)

// Submission is a job submitted to the batch queue.
type Submission struct {
	Script string
	ID     string

	// DependsOn is the identifier of the job that must finish first.
	DependsOn string
}

// Submitter submits the jobs of a submit script.
type Submitter struct {
	Runner Runner

	// Command is the submit command. It defaults to "qsub".
	Command string

	// NewBackOff returns the retry policy for a single submission.
	// It defaults to an exponential back-off that gives up after one
	// minute.
	NewBackOff func() backoff.BackOff

	Log logrus.FieldLogger
}

func (s *Submitter) defaults() {
	if s.Runner == nil {
		s.Runner = QsubRunner{}
	}
	if s.Command == "" {
		s.Command = "qsub"
	}
	if s.NewBackOff == nil {
		s.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = time.Minute
			return b
		}
	}
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
}

// SubmitFile submits the jobs listed in the submit script at path.
// Scripts are submitted from the directory containing path.
func (s *Submitter) SubmitFile(ctx context.Context, path string) ([]Submission, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("pismrun: opening submit script: %v", err)
	}
	defer f.Close()
	return s.Submit(ctx, filepath.Dir(path), f)
}

// Submit reads a submit script as written by SubmitScript from r and
// submits each job in turn from directory dir. A "JOBID=$(qsub X)"
// line submits X and remembers its identifier; a following
// "qsub -W depend=afterok:${JOBID} Y" line submits Y so that it runs
// after X has finished. Other lines are ignored.
func (s *Submitter) Submit(ctx context.Context, dir string, r io.Reader) ([]Submission, error) {
	s.defaults()
	var subs []Submission
	var jobID string
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		var sub Submission
		var args []string
		if m := submitLine.FindStringSubmatch(text); m != nil {
			sub.Script = m[1]
			args = []string{m[1]}
		} else if m := dependLine.FindStringSubmatch(text); m != nil {
			if jobID == "" {
				return subs, fmt.Errorf("pismrun: submit script line %d: dependency on a job that was not submitted", line)
			}
			sub.Script = m[1]
			sub.DependsOn = jobID
			args = []string{"-W", "depend=afterok:" + jobID, m[1]}
		} else {
			continue
		}
		id, err := s.run(ctx, dir, args)
		if err != nil {
			return subs, err
		}
		sub.ID = id
		if sub.DependsOn == "" {
			jobID = id
		}
		s.Log.WithFields(logrus.Fields{
			"script":     sub.Script,
			"id":         sub.ID,
			"depends_on": sub.DependsOn,
		}).Info("submitted job")
		subs = append(subs, sub)
	}
	if err := scanner.Err(); err != nil {
		return subs, fmt.Errorf("pismrun: reading submit script: %v", err)
	}
	return subs, nil
}

// run submits a single job, retrying failures.
func (s *Submitter) run(ctx context.Context, dir string, args []string) (string, error) {
	var id string
	err := backoff.RetryNotify(
		func() error {
			out, err := s.Runner.Run(ctx, dir, s.Command, args...)
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				return err
			}
			fields := strings.Fields(string(out))
			if len(fields) == 0 {
				return fmt.Errorf("no job identifier in output of %s", s.Command)
			}
			id = fields[0]
			return nil
		},
		backoff.WithContext(s.NewBackOff(), ctx),
		func(err error, d time.Duration) {
			s.Log.WithFields(logrus.Fields{
				"args":  strings.Join(args, " "),
				"retry": d,
			}).Warnf("submission failed: %v", err)
		},
	)
	if err != nil {
		return "", fmt.Errorf("pismrun: submitting %s: %v", strings.Join(args, " "), err)
	}
	return id, nil
}
