// vizviewer is a headless viewer. It connects to a running tracevizserver,
// follows one visualization, and rewrites an HTML snapshot of the current
// state on every change. Useful for keeping an always-current export on disk
// without a browser.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/probviz/probviz/go/sklog"
	"github.com/probviz/probviz/traceviz/go/grid"
	"github.com/probviz/probviz/traceviz/go/session"
	"github.com/probviz/probviz/traceviz/go/store"
)

// flags
var (
	serverURL = flag.String("server", "http://localhost:8000", "URL of the trace visualization server.")
	vizID     = flag.String("viz", "", "Id of the visualization to follow. Required.")
	out       = flag.String("out", "snapshot.html", "File the HTML snapshot is written to.")
	width     = flag.Float64("width", 1000, "Viewport width in pixels used for layout.")
	height    = flag.Float64("height", 800, "Viewport height in pixels used for layout.")
)

func writeSnapshot(s *session.Session, filename string) {
	doc, err := s.Snapshot()
	if err != nil {
		// A partial snapshot is still written; the error only describes
		// what is missing from it.
		sklog.Warningf("Snapshot is incomplete: %s", err)
	}
	if err := os.WriteFile(filename, []byte(doc), 0644); err != nil {
		sklog.Errorf("Failed to write %s: %s", filename, err)
		return
	}
	sklog.Infof("Wrote %s (%s)", filename, humanize.Bytes(uint64(len(doc))))
}

func main() {
	flag.Parse()
	if *vizID == "" {
		sklog.Fatal("--viz is required")
	}

	ctx := context.Background()
	s, err := session.New(ctx, *serverURL, *vizID, grid.Viewport{Width: *width, Height: *height})
	if err != nil {
		sklog.Fatalf("Failed to connect to %s: %s", *serverURL, err)
	}
	sklog.Infof("Following viz %s as client %s.", s.VizID(), s.ClientID())

	s.Store().AddListener(func(e store.Event) {
		writeSnapshot(s, *out)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		sklog.Infof("Received %s, disconnecting.", sig)
		if err := s.Close(); err != nil {
			sklog.Warningf("Close: %s", err)
		}
	case <-s.Done():
		sklog.Info("Server closed the connection.")
	}
}
