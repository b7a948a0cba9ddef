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
	"html/template"
	"net/http"

	"github.com/ctessum/gobra"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
)

// guiAddress is where the web interface is served.
const guiAddress = "localhost:7272"

var guiCmd = &cobra.Command{
	Use:   "gui",
	Short: "Run pismrun from a web browser.",
	Long: `gui starts a web interface that lists the pismrun commands and their
options, and opens it in the default browser.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		StartWebServer()
	},
	DisableAutoGenTag: true,
}

// configHandler reads the configuration file in the "config" form
// value and responds with the resulting value of every option.
func configHandler(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	Cfg.Set("config", r.Form.Get("config"))
	if err := setConfig(); err != nil {
		http.Error(w, err.Error(), http.StatusNoContent)
		return
	}
	config := make(map[string]interface{})
	for _, option := range options {
		config[option.name] = Cfg.Get(option.name)
	}
	if err := json.NewEncoder(w).Encode(config); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// StartWebServer starts the web interface.
func StartWebServer() {
	setConfig() // Errors are shown when a new file is chosen.

	http.HandleFunc("/setConfig", configHandler)

	Log.Info("loading front-end")
	setSilenceUsage(Root)

	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>pismrun</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
	</style>
</head>
<body>
<div class="container">
	<h1>pismrun</h1>
	<p>Choose a command and set its options below.</p>
	<div>
		{{.}}
	</div>
</div>

<script>
let allFlags = [...document.querySelectorAll('[data-name]')];
let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("http://` + guiAddress + `/setConfig?config="+configInput.value)
		.then(res => {
			if (res.status !== 200) {
				configInput.classList.add("red-border");
				return;
			}
			configInput.classList.remove("red-border");
			res.json().then(data => {
				for (let key in data)
					for (let f of allFlags)
						if (f.dataset.name == key) {
							let input = f.children[0];
							let v = JSON.stringify(data[key]).replace(/^"+|"+$/g, '');
							if (input.value != v) {
								input.value = v;
								input.classList.add("green-border");
							}
						}
			})
		})
		.catch(err => console.log("Error fetching /setConfig", err))
})
</script>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: Root, ServerAddress: guiAddress, AllowCORS: false, HTML: output}
	Log.Infof("server starting at http://%s", guiAddress)
	if err := open.Run("http://" + guiAddress); err != nil {
		Log.Warnf("please visit http://%s: %v", guiAddress, err)
	}
	server.Start()
}

// setSilenceUsage turns off usage messages for cmd and its children.
func setSilenceUsage(cmd *cobra.Command) {
	cmd.SilenceUsage = true
	for _, c := range cmd.Commands() {
		setSilenceUsage(c)
	}
}
