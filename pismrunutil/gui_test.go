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
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
)

func TestConfigHandler(t *testing.T) {
	dir, clean := tempDir(t)
	defer clean()
	cfg := filepath.Join(dir, "config.toml")
	if err := ioutil.WriteFile(cfg, []byte("walltime = \"2:00:00\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.toml")
	if err := ioutil.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	defer func() {
		Cfg.Set("config", empty)
		setConfig()
		Cfg.Set("config", "")
	}()

	w := httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("GET", "/setConfig?config="+url.QueryEscape(cfg), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	config := make(map[string]interface{})
	if err := json.NewDecoder(w.Body).Decode(&config); err != nil {
		t.Fatal(err)
	}
	if config["walltime"] != "2:00:00" {
		t.Errorf("walltime: have %v", config["walltime"])
	}
	if _, ok := config["LogLevel"]; !ok {
		t.Error("LogLevel is missing")
	}

	w = httptest.NewRecorder()
	configHandler(w, httptest.NewRequest("GET", "/setConfig?config="+url.QueryEscape(filepath.Join(dir, "missing.toml")), nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("missing file: status %d", w.Code)
	}
}
