package server

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/probviz/probviz/go/sklog"
	"github.com/probviz/probviz/traceviz/go/export"
)

// viewerPage is the browser client. It speaks the same wire protocol as the
// session package and renders with the same grid and geometry rules, so a
// browser tab and a headless session are interchangeable viewers of a viz.
var viewerPage = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>{{.VizID}}</title>
<style>
{{.CSS}}
</style>
</head>
<body>
<div id="grid" class="trace-grid"></div>
<script>
(function () {
  const vizId = window.location.pathname.split('/')[2];
  const clientId = crypto.randomUUID();
  const proto = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
  const ws = new WebSocket(proto + window.location.host + '/viz/' + vizId + '/ws');

  let info = null;
  const traces = new Map();

  ws.onopen = () => {
    ws.send(JSON.stringify({action: 'connect', clientId: clientId, vizId: vizId}));
  };

  ws.onmessage = (event) => {
    let msg;
    try {
      msg = JSON.parse(event.data);
    } catch (e) {
      console.warn('ignoring malformed message', e);
      return;
    }
    switch (msg.action) {
      case 'initialize':
        info = msg.info;
        traces.clear();
        for (const [id, t] of Object.entries(msg.traces || {})) {
          traces.set(id, t);
        }
        renderAll();
        break;
      case 'putTrace':
        traces.set(msg.tId, msg.t);
        renderCell(msg.tId);
        break;
      case 'removeTrace':
        // Removing an unknown id changes nothing and repaints nothing.
        if (traces.delete(msg.tId)) {
          renderAll();
        }
        break;
      case 'saveHTML':
        save();
        break;
      default:
        console.warn('ignoring unknown action', msg.action);
    }
  };

  // Mirrors the grid package: at most 5 columns, square cells, width capped
  // at min(500, (width-100)/columns).
  function layout(n) {
    if (n <= 0) {
      return {columns: 0, rows: 0, size: 0};
    }
    const columns = Math.min(n, 5);
    const rows = Math.ceil(n / columns);
    let size = window.innerHeight / rows;
    size = Math.min(size, 500, (window.innerWidth - 100) / columns);
    return {columns: columns, rows: rows, size: Math.max(size, 0)};
  }

  function bounds(vs) {
    if (!vs || vs.length === 0) {
      return [0, 1];
    }
    let lo = Math.min(...vs);
    let hi = Math.max(...vs);
    if (lo === hi) {
      lo -= 0.5;
      hi += 0.5;
    }
    return [lo, hi];
  }

  function cellSVG(t, size) {
    if (size <= 0) {
      return '<svg class="trace-cell" width="0" height="0" xmlns="http://www.w3.org/2000/svg"></svg>';
    }
    const [minX, maxX] = bounds(info.x);
    const [minY, maxY] = bounds(t.y);
    const margin = 0.1 * size;
    const inner = size - 2 * margin;
    const px = (x) => margin + (x - minX) / (maxX - minX) * inner;
    const py = (y) => size - margin - (y - minY) / (maxY - minY) * inner;
    const lx = (p) => minX + (p - margin) / inner * (maxX - minX);

    const p0 = -200;
    const p1 = size + 200;
    const x0 = lx(p0);
    const x1 = lx(p1);
    const y0 = t.slope * x0 + t.intercept;
    const y1 = t.slope * x1 + t.intercept;
    const band = 2 * t.inlier_std;

    let svg = '<svg class="trace-cell" width="' + size + '" height="' + size +
      '" xmlns="http://www.w3.org/2000/svg">';
    svg += '<polygon points="' +
      p0 + ',' + py(y0 + band) + ' ' + p1 + ',' + py(y1 + band) + ' ' +
      p1 + ',' + py(y1 - band) + ' ' + p0 + ',' + py(y0 - band) +
      '" fill="#666666" fill-opacity="0.2"/>';
    svg += '<line x1="' + p0 + '" y1="' + py(y0) + '" x2="' + p1 + '" y2="' + py(y1) +
      '" stroke="#333333" stroke-width="2"/>';
    const n = Math.min((info.x || []).length, (t.y || []).length);
    for (let i = 0; i < n; i++) {
      const color = t.outliers && t.outliers[i] ? '#e31a1c' : '#1f78b4';
      svg += '<circle cx="' + px(info.x[i]) + '" cy="' + py(t.y[i]) + '" r="3" fill="' + color + '"/>';
    }
    return svg + '</svg>';
  }

  // One DOM node per trace id. The layout only depends on the trace count and
  // the viewport, so overwriting an existing trace repaints just that cell;
  // anything that changes the layout rebuilds the whole grid.
  const cellNodes = new Map();
  let layoutKey = '';

  function currentLayoutKey() {
    return traces.size + '|' + window.innerWidth + '|' + window.innerHeight;
  }

  function renderCell(id) {
    const node = cellNodes.get(id);
    if (!node || layoutKey !== currentLayoutKey()) {
      renderAll();
      return;
    }
    node.innerHTML = cellSVG(traces.get(id), layout(traces.size).size);
  }

  function renderAll() {
    const grid = document.getElementById('grid');
    grid.textContent = '';
    cellNodes.clear();
    layoutKey = '';
    if (!info) {
      return;
    }
    const l = layout(traces.size);
    grid.style.gridTemplateColumns = 'repeat(' + l.columns + ', ' + l.size + 'px)';
    const ids = Array.from(traces.keys()).sort();
    ids.forEach((id, i) => {
      const slot = document.createElement('div');
      slot.className = 'trace-cell-slot';
      slot.style.gridRow = Math.floor(i / l.columns) + 1;
      slot.style.gridColumn = (i % l.columns) + 1;
      slot.innerHTML = cellSVG(traces.get(id), l.size);
      grid.appendChild(slot);
      cellNodes.set(id, slot);
    });
    layoutKey = currentLayoutKey();
  }

  function styleText() {
    let css = '';
    for (const sheet of document.styleSheets) {
      try {
        for (const rule of sheet.cssRules) {
          css += rule.cssText + '\n';
        }
      } catch (e) {
        // Cross-origin stylesheets cannot be read; export without them.
        console.warn('skipping unreadable stylesheet', e);
      }
    }
    return css;
  }

  function save() {
    const content = '<!DOCTYPE html>\n<html>\n<head>\n<meta charset="utf-8"/>\n<style>\n' +
      styleText() + '</style>\n</head>\n<body>\n' +
      document.getElementById('grid').outerHTML + '\n</body>\n</html>\n';
    ws.send(JSON.stringify({action: 'save', clientId: clientId, vizId: vizId, content: content}));
  }

  window.addEventListener('resize', renderAll);

  window.addEventListener('pagehide', () => {
    // Fire-and-forget; the tab is going away and nothing depends on the
    // socket surviving this.
    if (ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify({action: 'disconnect', clientId: clientId, vizId: vizId}));
      ws.close();
    }
  });
})();
</script>
</body>
</html>
`))

type viewerContext struct {
	VizID string
	CSS   template.CSS
}

func (s *Server) viewerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	err := viewerPage.Execute(w, viewerContext{
		VizID: chi.URLParam(r, "id"),
		CSS:   template.CSS(export.DefaultCSS),
	})
	if err != nil {
		sklog.Errorf("Failed to expand viewer template: %s", err)
	}
}
