package http

import (
	"net/http"
)

// frontendHTML is a Leaflet map showing the render view of the layer store.
// Layers can be toggled, removed, exported and uploaded.
const frontendHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>zsqlgis</title>
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
  <style>
    body { margin: 0; display: flex; height: 100vh; font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; }
    aside { width: 280px; padding: 1rem; border-right: 1px solid #e2e8f0; overflow-y: auto; }
    #map { flex: 1; }
    li { display: flex; align-items: center; gap: .4rem; margin: .3rem 0; }
    li span { flex: 1; overflow: hidden; text-overflow: ellipsis; }
    button { cursor: pointer; }
    .muted { color: #64748b; font-size: .85rem; }
  </style>
</head>
<body>
<aside>
  <h3>Layers</h3>
  <ul id="layers" style="list-style:none;padding:0"></ul>
  <h3>Import</h3>
  <input type="file" id="file" accept=".csv,.geojson,.json">
  <p id="status" class="muted"></p>
</aside>
<div id="map"></div>
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script>
const map = L.map('map').setView([35, 105], 4);
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {attribution: '&copy; OpenStreetMap'}).addTo(map);
const drawn = L.layerGroup().addTo(map);
const colors = {point: '#2563eb', line: '#16a34a', polygon: '#d97706'};

function popup(rec) {
  const rows = Object.entries(rec.properties || {}).map(([k, v]) => '<tr><td>' + k + '</td><td>' + v + '</td></tr>');
  return '<b>' + rec.name + '</b><table>' + rows.join('') + '</table>';
}

function draw(layer) {
  const color = colors[layer.kind];
  for (const rec of layer.records) {
    let shape;
    if (layer.kind === 'point') shape = L.circleMarker(rec.positions[0], {radius: 6, color});
    else if (layer.kind === 'line') shape = L.polyline(rec.positions, {color});
    else shape = L.polygon(rec.positions, {color});
    shape.bindPopup(popup(rec)).addTo(drawn);
  }
}

async function refresh(fit) {
  const res = await fetch('/api/v1/render');
  const {layers} = await res.json();
  drawn.clearLayers();
  const list = document.getElementById('layers');
  list.innerHTML = '';
  for (const layer of layers) {
    if (layer.visible) draw(layer);
    const li = document.createElement('li');
    const box = document.createElement('input');
    box.type = 'checkbox';
    box.checked = layer.visible;
    box.onchange = () => call('PUT', layer.name, '/visibility', JSON.stringify({visible: box.checked}));
    const label = document.createElement('span');
    label.textContent = layer.name + ' (' + layer.records.length + ')';
    const exp = document.createElement('button');
    exp.textContent = '⇩';
    exp.onclick = () => { window.location = '/api/v1/layers/' + encodeURIComponent(layer.name) + '/export'; };
    const del = document.createElement('button');
    del.textContent = '✕';
    del.onclick = () => call('DELETE', layer.name, '');
    li.append(box, label, exp, del);
    list.append(li);
  }
  if (fit) {
    const {extent} = await (await fetch('/api/v1/extent')).json();
    if (extent) map.fitBounds([[extent.min_lat, extent.min_lon], [extent.max_lat, extent.max_lon]], {padding: [20, 20]});
  }
}

async function call(method, name, suffix, body) {
  await fetch('/api/v1/layers/' + encodeURIComponent(name) + suffix, {method, body, headers: {'Content-Type': 'application/json'}});
  refresh(false);
}

document.getElementById('file').onchange = async (e) => {
  const file = e.target.files[0];
  if (!file) return;
  const res = await fetch('/api/v1/layers?name=' + encodeURIComponent(file.name), {method: 'POST', body: file});
  const out = await res.json();
  document.getElementById('status').textContent = res.ok
    ? 'Imported ' + out.features + ' features, skipped ' + out.skipped
    : out.message;
  refresh(true);
};

refresh(true);
</script>
</body>
</html>`

// handleFrontend serves the map viewer.
func (s *Server) handleFrontend(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(frontendHTML))
}
