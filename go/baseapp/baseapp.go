// Package baseapp provides a framework for HTTP applications: common flags,
// security middleware, a Prometheus metrics endpoint, and a healthz handler,
// so each application only supplies its own routes.
package baseapp

import (
	"encoding/json"
	"flag"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"

	"github.com/probviz/probviz/go/httputils"
	"github.com/probviz/probviz/go/sklog"
)

var (
	Local    = flag.Bool("local", false, "Running locally if true. As opposed to in production.")
	Port     = flag.String("port", ":8000", "HTTP service address (e.g., ':8000')")
	PromPort = flag.String("prom_port", ":20000", "Metrics service address (e.g., ':10110')")
)

// Constructor is a function that builds an App instance. It is called after
// flags have been parsed and logging has been set up.
type Constructor func() (App, error)

// App is the interface that Constructor returns.
type App interface {
	// AddHandlers is called by Serve and the receiver must add all handlers
	// to the passed in router.
	AddHandlers(chi.Router)

	// AddMiddleware returns middleware to be applied to the router, in
	// addition to the middleware Serve itself installs.
	AddMiddleware() []func(http.Handler) http.Handler
}

// cspString returns the value of the Content-Security-Policy header. The
// viewer page carries its client as an inline script, so script-src must
// permit inline, and connect-src must permit websockets back to the
// originating host.
func cspString(local bool) string {
	directives := []string{
		"base-uri 'none'",
		"img-src 'self'",
		"object-src 'none'",
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self' 'unsafe-inline'",
		"connect-src 'self' ws: wss:",
		"report-uri /cspreport",
	}
	if local {
		directives = append(directives, "upgrade-insecure-requests")
	}
	return strings.Join(directives, "; ") + ";"
}

// securityMiddleware sets the CSP and related headers on every response.
func securityMiddleware(allowedHosts []string, local bool) func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		AllowedHosts:          allowedHosts,
		HostsProxyHeaders:     []string{"X-Forwarded-Host"},
		SSLRedirect:           false,
		STSSeconds:            60 * 60 * 24 * 365,
		STSIncludeSubdomains:  true,
		ContentSecurityPolicy: cspString(local),
		IsDevelopment:         local,
	})
	return secureMiddleware.Handler
}

// cspReporter records CSP violations reported by browsers.
func cspReporter(w http.ResponseWriter, r *http.Request) {
	var body interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputils.ReportError(w, err, "Failed to decode CSP report.", http.StatusBadRequest)
		return
	}
	b, err := json.Marshal(body)
	if err != nil {
		httputils.ReportError(w, err, "Failed to re-encode CSP report.", http.StatusBadRequest)
		return
	}
	sklog.Infof(`{"type":"csp","body":%s}`, b)
}

// Serve builds the App via the given constructor and runs it forever. Served
// hostnames must appear in allowedHosts unless running with --local.
//
// Serve does not return except on failure.
func Serve(constructor Constructor, allowedHosts []string) {
	flag.Parse()

	// Metrics are served on their own port so they never pass through the
	// app's middleware.
	go func() {
		promRouter := chi.NewRouter()
		promRouter.Handle("/metrics", promhttp.Handler())
		sklog.Infof("Prometheus server listening on %s", *PromPort)
		sklog.Fatal(http.ListenAndServe(*PromPort, promRouter))
	}()

	app, err := constructor()
	if err != nil {
		sklog.Fatal(err)
	}

	r := chi.NewRouter()
	if !*Local {
		r.Use(securityMiddleware(allowedHosts, *Local))
	}
	r.Use(httputils.LoggingGzipRequestResponse)
	for _, m := range app.AddMiddleware() {
		r.Use(m)
	}
	r.HandleFunc("/healthz", httputils.HealthCheckHandler)
	r.Post("/cspreport", cspReporter)
	app.AddHandlers(r)

	sklog.Infof("Server listening on %s", *Port)
	sklog.Fatal(http.ListenAndServe(*Port, r))
}
