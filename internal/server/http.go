package server

import "net/http"

func (s *ControlServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(controlPage))
}

// controlPage renders the board from the snapshot message and mirrors
// updates; inputs send set messages back.
const controlPage = `<!doctype html>
<html>
<head><title>Virtual Camera Controls</title>
<style>
body{font-family:sans-serif;background:#1b1b1f;color:#ddd;max-width:420px;margin:1em auto}
fieldset{border:1px solid #444;margin-bottom:1em}
label{display:flex;justify-content:space-between;align-items:center;margin:.3em 0}
input[type=range]{width:55%}
</style>
</head>
<body>
<div id="panel">Connecting...</div>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
const inputs = {};
function send(name, value) { ws.send(JSON.stringify({action: "set", name: name, value: value})); }
function render(controls) {
  const panel = document.getElementById("panel");
  panel.innerHTML = "";
  const folders = {};
  for (const c of controls) {
    let fs = folders[c.folder];
    if (!fs) {
      fs = folders[c.folder] = document.createElement("fieldset");
      fs.appendChild(Object.assign(document.createElement("legend"), {textContent: c.folder}));
      panel.appendChild(fs);
    }
    const label = document.createElement("label");
    label.append(c.name + " ");
    let input;
    if (c.kind === "slider") {
      input = Object.assign(document.createElement("input"), {type: "range", min: c.min, max: c.max, step: c.step, value: c.value});
      const out = document.createElement("span");
      out.textContent = c.value;
      input.oninput = () => { out.textContent = input.value; send(c.name, parseFloat(input.value)); };
      input.show = v => { input.value = v; out.textContent = v; };
      label.append(input, out);
    } else if (c.kind === "checkbox") {
      input = Object.assign(document.createElement("input"), {type: "checkbox", checked: c.value});
      input.onchange = () => send(c.name, input.checked);
      input.show = v => { input.checked = v; };
      label.append(input);
    } else {
      input = document.createElement("span");
      input.textContent = c.value;
      input.show = v => { input.textContent = v; };
      label.append(input);
    }
    inputs[c.name] = input;
    fs.appendChild(label);
  }
}
ws.onmessage = e => {
  const m = JSON.parse(e.data);
  if (m.action === "snapshot") render(m.controls);
  else if (m.action === "update" && inputs[m.name]) inputs[m.name].show(m.value);
  else if (m.action === "error") console.warn(m.error);
};
ws.onclose = () => { document.getElementById("panel").textContent = "Disconnected."; };
</script>
</body>
</html>
`
