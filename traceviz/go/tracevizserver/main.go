// tracevizserver serves live trace visualizations. Producers push inference
// traces over the POST API, and browser or headless viewers follow along over
// websockets.
package main

import (
	"flag"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/probviz/probviz/go/baseapp"
	"github.com/probviz/probviz/go/sklog"
	"github.com/probviz/probviz/traceviz/go/server"
)

// flags
var (
	allowedHosts = flag.String("allowed_hosts", "", "Comma separated list of hostnames this server may be addressed as. Only checked when not --local.")
)

type app struct {
	server *server.Server
}

// See baseapp.Constructor.
func new() (baseapp.App, error) {
	sklog.Info("Starting trace visualization server.")
	return &app{
		server: server.New(),
	}, nil
}

// See baseapp.App.
func (a *app) AddHandlers(r chi.Router) {
	a.server.AddHandlers(r)
}

// See baseapp.App.
func (a *app) AddMiddleware() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{}
}

func main() {
	flag.Parse()
	var hosts []string
	if *allowedHosts != "" {
		hosts = strings.Split(*allowedHosts, ",")
	}
	baseapp.Serve(new, hosts)
}
