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

// Package pismrun generates batch-queue job scripts for parameter
// studies with the PISM ice sheet model. A study enumerates combinations
// of physical parameters and, for each combination, renders a PBS job
// script, a post-processing script, and a submit script that queues all
// of them.
package pismrun

// Version gives the version number.
const Version = "0.3.0"

// Title is the value of the PISM_TITLE environment variable set for
// parameter studies.
const Title = "Greenland Parameter Study"
