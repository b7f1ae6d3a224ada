package web

const captionHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>LiveTrans Captions</title>
<link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>💬</text></svg>">
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #1a1a2e; color: #eee; min-height: 100vh; padding: 20px; }
  .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px; }
  h1 { font-size: 20px; color: #e94560; }
  .conn { font-size: 13px; color: #888; }
  .conn.ok { color: #4ecca3; }
  #history { display: flex; flex-direction: column; gap: 10px; margin-bottom: 20px; }
  .line { background: #16213e; border-radius: 10px; padding: 12px 16px; }
  .line .orig { font-size: 14px; color: #aaa; margin-bottom: 4px; }
  .line .trans { font-size: 18px; }
  .line.interim { opacity: 0.6; }
  .line.interim .trans { font-style: italic; }
</style>
</head>
<body>
<div class="header">
  <h1>💬 LiveTrans</h1>
  <span class="conn" id="conn">connecting...</span>
</div>
<div id="history"></div>
<script>
const history = document.getElementById('history');
const conn = document.getElementById('conn');
let current = null; // the interim line being revised in place

function render(msg) {
  if (!current) {
    current = document.createElement('div');
    history.appendChild(current);
  }
  current.className = 'line ' + msg.type;
  const orig = msg.original ? msg.original.full_text : '';
  const trans = msg.translation ? msg.translation.full_text : '';
  current.innerHTML = '<div class="orig"></div><div class="trans"></div>';
  current.querySelector('.orig').textContent = orig;
  current.querySelector('.trans').textContent = trans || '...';
  if (msg.type === 'final') {
    current = null; // next interim starts a new line
    while (history.children.length > 50) history.removeChild(history.firstChild);
  }
  window.scrollTo(0, document.body.scrollHeight);
}

function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onopen = () => { conn.textContent = 'connected'; conn.className = 'conn ok'; };
  ws.onmessage = (e) => {
    const f = JSON.parse(e.data);
    if (f.method === 'receive_translation') render(f.payload);
  };
  ws.onclose = () => {
    conn.textContent = 'reconnecting...';
    conn.className = 'conn';
    setTimeout(connect, 2000);
  };
}
connect();
</script>
</body>
</html>`
