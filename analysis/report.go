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

package analysis

import (
	"fmt"

	"github.com/tealeg/xlsx"
)

// WriteStatistics writes one row per experiment, ordered by RMSE, to
// the "statistics" sheet of a new Excel workbook. The pism_config
// values of params follow the statistics columns.
func WriteStatistics(path string, experiments []*Experiment, params []string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("statistics")
	if err != nil {
		return fmt.Errorf("analysis: creating statistics sheet: %v", err)
	}
	header := sheet.AddRow()
	for _, h := range append([]string{"rank", "file", "units", "rmse", "rmse_normalized", "avg", "avg_normalized"}, params...) {
		header.AddCell().SetString(h)
	}
	for rank, e := range SortByRMSE(experiments) {
		row := sheet.AddRow()
		row.AddCell().SetInt(rank + 1)
		row.AddCell().SetString(e.Title)
		row.AddCell().SetString(e.Units)
		row.AddCell().SetFloat(e.RMSE)
		row.AddCell().SetFloat(e.NormalizedRMSE())
		row.AddCell().SetFloat(e.Avg)
		row.AddCell().SetFloat(e.NormalizedAvg())
		for _, p := range params {
			row.AddCell().SetString(e.Parameters[p])
		}
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("analysis: writing %s: %v", path, err)
	}
	return nil
}
