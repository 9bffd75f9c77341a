package gateway

// offlineDocument is the synthesized fallback for navigations that fail on
// the network with no precached offline page. It is self-contained: a manual
// retry button plus an automatic reload once connectivity comes back.
const offlineDocument = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Offline - Market Dashboard</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #0f1419; color: #e6e6e6; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
  .card { text-align: center; padding: 2rem; }
  h1 { font-size: 1.5rem; margin-bottom: 0.5rem; }
  p { color: #8b98a5; margin-bottom: 1.5rem; }
  button { background: #1d9bf0; color: #fff; border: none; border-radius: 9999px; padding: 0.75rem 2rem; font-size: 1rem; cursor: pointer; }
  button:hover { background: #1a8cd8; }
</style>
</head>
<body>
<div class="card">
  <h1>You are offline</h1>
  <p>Live prices are unavailable right now. Reconnect to resume.</p>
  <button onclick="location.reload()">Try again</button>
</div>
<script>
window.addEventListener('online', function () { location.reload(); });
</script>
</body>
</html>`
