package fixture

const siteTemplates = `
{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - ytflow fixture</title>
<style>
body { font-family: Roboto, Arial, sans-serif; margin: 0; }
#masthead { display: flex; gap: 1rem; align-items: center; padding: .5rem 1rem; border-bottom: 1px solid #ddd; }
#search { width: 320px; padding: .3rem; }
#consent { position: fixed; inset: 0; background: rgba(0,0,0,.4); display: flex; align-items: center; justify-content: center; }
#consent .dialog { background: #fff; padding: 1.5rem; max-width: 420px; }
ytd-search, ytd-video-renderer { display: block; }
ytd-video-renderer { padding: .5rem 1rem; }
main { padding: 1rem; }
.ytp-progress-bar { height: 4px; width: 100%; background: #ccc; }
</style>
</head>
<body>
{{end}}

{{define "masthead"}}
<div id="masthead">
  <a id="logo" href="/">ytflow</a>
  <input id="search" name="search_query" value="{{.Query}}" placeholder="Search" autocomplete="off">
  <button id="search-icon-legacy" type="button" aria-label="Search">Search</button>
  {{if .SignedIn}}
  <button id="avatar-btn" type="button" aria-label="Account">
    <img class="ytd-topbar-menu-button-renderer" alt="Avatar" width="32" height="32" src="data:image/svg+xml,%3Csvg xmlns='http://www.w3.org/2000/svg' width='32' height='32'%3E%3Ccircle cx='16' cy='16' r='16' fill='%23c00'/%3E%3C/svg%3E">
  </button>
  {{else}}
  <a href="/signin" aria-label="Sign in">Sign in</a>
  {{end}}
</div>
{{if .Consent}}
<div id="consent" role="dialog" aria-modal="true">
  <div class="dialog">
    <p>We use cookies and data to deliver and maintain our services.</p>
    <button type="button" aria-label="Reject all" data-consent="NO">Reject all</button>
    <button type="button" aria-label="Accept all" data-consent="YES">Accept all</button>
  </div>
</div>
{{end}}
<script>
(function () {
  var input = document.getElementById('search');
  function submit() {
    location.href = '/results?search_query=' + encodeURIComponent(input.value);
  }
  document.getElementById('search-icon-legacy').addEventListener('click', submit);
  input.addEventListener('keydown', function (e) { if (e.key === 'Enter') submit(); });

  var consent = document.getElementById('consent');
  if (consent) {
    consent.querySelectorAll('button[data-consent]').forEach(function (b) {
      b.addEventListener('click', function () {
        document.cookie = 'CONSENT=' + b.dataset.consent + '; path=/';
        consent.remove();
      });
    });
  }
})();
</script>
{{end}}

{{define "foot"}}
</body>
</html>
{{end}}

{{define "home"}}{{template "head" .}}{{template "masthead" .}}
<main>
  <h2>Recommended</h2>
  <p>Search for something to watch.</p>
</main>
{{template "foot" .}}{{end}}

{{define "signin"}}{{template "head" .}}
<main>
  <h1>Sign in</h1>
  <div id="identifier-step">
    <input type="email" name="email" id="identifierId" placeholder="Email or phone" autocomplete="username">
    <div id="identifierNext"><button type="button">Next</button></div>
    <p id="identifier-error" hidden>Enter an email or phone number</p>
  </div>
  <div id="password-step" hidden>
    <input type="password" name="password" placeholder="Enter your password" autocomplete="current-password">
    <div id="passwordNext"><button type="button">Next</button></div>
  </div>
</main>
<script>
(function () {
  var email = document.querySelector('input[type="email"]');
  var password = document.querySelector('input[type="password"]');

  document.querySelector('#identifierNext button').addEventListener('click', function () {
    if (!email.value) {
      document.getElementById('identifier-error').hidden = false;
      return;
    }
    setTimeout(function () {
      document.getElementById('identifier-step').hidden = true;
      document.getElementById('password-step').hidden = false;
    }, {{.DelayMS}});
  });

  document.querySelector('#passwordNext button').addEventListener('click', function () {
    fetch('/session', {
      method: 'POST',
      body: new URLSearchParams({ email: email.value, password: password.value })
    })
      .then(function (r) { return r.json(); })
      .then(function (d) { location.href = d.redirect; });
  });
})();
</script>
{{template "foot" .}}{{end}}

{{define "results"}}{{template "head" .}}{{template "masthead" .}}
<ytd-search>
  <div id="contents">
  {{range .Videos}}
    <ytd-video-renderer>
      <h3><a id="video-title" href="/watch?v={{.ID}}" title="{{.Title}}">{{.Title}}</a></h3>
    </ytd-video-renderer>
  {{end}}
  {{if .NoResults}}<p class="no-results">No results found</p>{{end}}
  </div>
</ytd-search>
{{template "foot" .}}{{end}}

{{define "watch"}}{{template "head" .}}{{template "masthead" .}}
<main>
  <div id="movie_player">
    <video class="html5-main-video" width="640" height="360" preload="none" style="background:#000"></video>
    <div class="ytp-chrome-bottom">
      <div class="ytp-progress-bar" role="slider" aria-label="Seek slider"></div>
      <button class="ytp-play-button" type="button" aria-label="Play (k)">Play</button>
    </div>
  </div>
  <h1 class="ytd-video-primary-info-renderer">{{.Video.Title}}</h1>
</main>
<script>
(function () {
  var video = document.querySelector('video.html5-main-video');
  var button = document.querySelector('button.ytp-play-button');
  button.addEventListener('click', function () {
    if (button.getAttribute('aria-label').indexOf('Play') === 0) {
      var p = video.play();
      if (p) p.catch(function () {});
      button.setAttribute('aria-label', 'Pause (k)');
      button.textContent = 'Pause';
    } else {
      video.pause();
      button.setAttribute('aria-label', 'Play (k)');
      button.textContent = 'Play';
    }
  });
})();
</script>
{{template "foot" .}}{{end}}
`
