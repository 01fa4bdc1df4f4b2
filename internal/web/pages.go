package web

const faviconTag = `<link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>🎵</text></svg>">`

const baseStyle = `
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #1a1a2e; color: #eee; min-height: 100vh; }
  h1 { color: #e94560; }
  .btn { width: 100%; padding: 14px; border: none; border-radius: 8px; font-size: 16px; font-weight: bold; cursor: pointer; transition: all 0.2s; }
  .btn:hover { opacity: 0.9; }
`

const loginHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Practice Time</title>
` + faviconTag + `
<style>` + baseStyle + `
  body { display: flex; align-items: center; justify-content: center; }
  .login-box { background: #16213e; border-radius: 16px; padding: 40px; width: 360px; }
  h1 { text-align: center; margin-bottom: 30px; font-size: 22px; }
  .field { margin-bottom: 20px; }
  label { display: block; margin-bottom: 6px; font-size: 14px; color: #aaa; }
  input { width: 100%; padding: 12px; border: 1px solid #333; border-radius: 8px; background: #0f3460; color: #eee; font-size: 16px; outline: none; }
  input:focus { border-color: #e94560; }
  .btn { background: #e94560; color: #fff; }
  .error { color: #e94560; text-align: center; margin-top: 15px; font-size: 14px; display: none; }
</style>
</head>
<body>
<div class="login-box">
  <h1>🎵 Practice Time</h1>
  <form id="loginForm">
    <div class="field">
      <label>Username</label>
      <input type="text" name="username" autocomplete="username" required>
    </div>
    <div class="field">
      <label>Password</label>
      <input type="password" name="password" autocomplete="current-password" required>
    </div>
    <button type="submit" class="btn">Log in</button>
    <div class="error" id="error"></div>
  </form>
</div>
<script>
document.getElementById('loginForm').onsubmit = async function(e) {
  e.preventDefault();
  var res = await fetch('/api/login', { method: 'POST', body: new URLSearchParams(new FormData(e.target)) });
  if (res.ok) {
    window.location.href = '/';
    return;
  }
  var data = await res.json();
  var el = document.getElementById('error');
  el.textContent = data.error || 'Login failed';
  el.style.display = 'block';
};
</script>
</body>
</html>`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Practice Time</title>
` + faviconTag + `
<style>` + baseStyle + `
  body { padding: 20px; }
  .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 30px; }
  h1 { font-size: 24px; }
  .link-btn { padding: 8px 16px; border: 1px solid #555; border-radius: 6px; color: #aaa; font-size: 13px; text-decoration: none; }
  .link-btn:hover { border-color: #e94560; color: #e94560; }
  .panel { background: #16213e; border-radius: 12px; padding: 20px; max-width: 480px; margin: 0 auto 20px; }
  .counters { display: flex; gap: 20px; margin-bottom: 20px; }
  .counter { flex: 1; text-align: center; }
  .counter .label { font-size: 13px; color: #aaa; margin-bottom: 6px; }
  .counter .value { font-size: 40px; font-variant-numeric: tabular-nums; }
  .btn-start { background: #4ecca3; color: #000; }
  .btn-stop { background: #e94560; color: #fff; }
  .consent { display: none; background: #e9a045; color: #000; border-radius: 8px; padding: 12px; margin-bottom: 15px; font-size: 14px; }
  .consent button { margin-top: 8px; margin-right: 8px; padding: 6px 14px; border: none; border-radius: 6px; cursor: pointer; font-weight: bold; }
  .error { color: #e94560; font-size: 13px; margin-top: 10px; min-height: 16px; }
  pre { font-size: 12px; color: #aaa; white-space: pre-wrap; word-break: break-all; max-height: 260px; overflow-y: auto; }
  table { width: 100%; font-size: 13px; border-collapse: collapse; }
  th, td { text-align: left; padding: 4px 6px; border-bottom: 1px solid #0f3460; }
  th { color: #aaa; font-weight: normal; }
</style>
</head>
<body>
<div class="header">
  <h1>🎵 Practice Time</h1>
  <a href="/api/logout" class="link-btn">Log out</a>
</div>
<div class="panel">
  <div class="consent" id="consent">
    Practice Time needs microphone access to detect music.
    <div>
      <button onclick="answerPermission('grant')">Allow</button>
      <button onclick="answerPermission('deny')">Deny</button>
    </div>
  </div>
  <div class="counters">
    <div class="counter"><div class="label">Total</div><div class="value" id="total">0:00</div></div>
    <div class="counter"><div class="label">Idle</div><div class="value" id="idle">0:00</div></div>
  </div>
  <button class="btn btn-start" id="toggle" onclick="toggle()">Start</button>
  <div class="error" id="error"></div>
</div>
<div class="panel"><pre id="log"></pre></div>
<div class="panel">
  <table>
    <thead><tr><th>Started</th><th>Total</th><th>Idle</th><th>Stop</th></tr></thead>
    <tbody id="history"></tbody>
  </table>
</div>
<script>
function clock(s) { return Math.floor(s / 60) + ':' + String(s % 60).padStart(2, '0'); }

function render(st) {
  document.getElementById('total').textContent = st.total_clock;
  document.getElementById('idle').textContent = st.idle_clock;
  var btn = document.getElementById('toggle');
  btn.textContent = st.running ? 'Stop' : 'Start';
  btn.className = 'btn ' + (st.running ? 'btn-stop' : 'btn-start');
  document.getElementById('consent').style.display = st.permission_pending ? 'block' : 'none';
}

function renderLog(text) { document.getElementById('log').textContent = text; }

async function refresh() {
  var res = await fetch('/api/status');
  if (res.status === 401) { window.location.href = '/login'; return; }
  render(await res.json());
  renderLog(await (await fetch('/api/log')).text());
  loadHistory();
}

async function loadHistory() {
  var res = await fetch('/api/history?limit=10');
  if (!res.ok) return;
  var rows = await res.json();
  document.getElementById('history').innerHTML = rows.map(function(r) {
    return '<tr><td>' + new Date(r.started_at).toLocaleString() + '</td><td>' + clock(r.total) +
      '</td><td>' + clock(r.idle) + '</td><td>' + r.reason + '</td></tr>';
  }).join('');
}

async function toggle() {
  var res = await fetch('/api/toggle', { method: 'POST' });
  var el = document.getElementById('error');
  el.textContent = '';
  if (!res.ok) {
    var data = await res.json();
    if (!data.permission_pending) el.textContent = data.error;
  }
  refresh();
}

async function answerPermission(action) {
  var res = await fetch('/api/permission', { method: 'POST', body: new URLSearchParams({ action: action }) });
  if (res.ok) render(await res.json());
}

var wasRunning = false;
function connect() {
  var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  var ws = new WebSocket(proto + location.host + '/ws');
  ws.onmessage = function(e) {
    var msg = JSON.parse(e.data);
    if (msg.type !== 'update') return;
    render(msg.payload.status);
    renderLog(msg.payload.log);
    if (wasRunning && !msg.payload.status.running) loadHistory();
    wasRunning = msg.payload.status.running;
  };
  ws.onclose = function() { setTimeout(connect, 2000); };
}

refresh();
connect();
</script>
</body>
</html>`
