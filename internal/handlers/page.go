package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/dimitrije/teamjoin/internal/invite"
	"github.com/dimitrije/teamjoin/internal/models"
	"github.com/m1z23r/drift/pkg/drift"
)

const pageStyle = `
        * { box-sizing: border-box; }
        body { font-family: system-ui, -apple-system, sans-serif; background: #f9fafb; color: #374151; margin: 0; padding: 40px 20px; }
        .container { max-width: 420px; margin: 0 auto; background: #fff; border: 1px solid #e5e7eb; border-radius: 8px; padding: 32px; }
        h1 { font-size: 20px; font-weight: 600; color: #111827; margin: 0 0 8px 0; text-align: center; }
        p { color: #6b7280; font-size: 14px; }
        .message { text-align: center; }
        .error { color: #991b1b; }
        .warning { color: #92400e; }
        .hidden { display: none; }
        label { display: block; font-size: 13px; margin: 12px 0 4px 0; }
        input { width: 100%; padding: 8px 10px; border: 1px solid #d1d5db; border-radius: 6px; font-size: 14px; }
        button { width: 100%; margin-top: 16px; padding: 10px; font-size: 15px; border: none; border-radius: 6px; cursor: pointer; background: #22c55e; color: #fff; }
        button.secondary { background: #e5e7eb; color: #111827; }
        button:disabled { opacity: 0.6; cursor: default; }
        .tabs { display: flex; gap: 8px; }
        .tabs button { margin-top: 0; }`

// Page is the landing page of an invite link. With ?token= it starts a new
// join session; with ?session_token= it resumes one.
func (h *JoinHandler) Page(c *drift.Context) {
	ctx := c.Request.Context()

	if sessionToken := c.QueryParam("session_token"); sessionToken != "" {
		sessionID, err := h.jwt.ValidateSessionToken(sessionToken)
		if err != nil {
			renderError(c, "This join session has expired. Open your invite link again.")
			return
		}
		flow, ok := h.flows.Get(sessionID)
		if !ok {
			renderError(c, "This join session has expired. Open your invite link again.")
			return
		}
		h.renderJoinPage(c, sessionToken, flow.Snapshot(), c.QueryParam("message"))
		return
	}

	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		renderError(c, invite.UserMessage(&invite.Error{Kind: invite.KindTokenInvalid, Reason: invite.ReasonMissingToken}))
		return
	}

	sessionToken, snap, err := h.start(ctx, token)
	if sessionToken == "" {
		renderError(c, "Something went wrong. Please try again.")
		return
	}
	if snap.Terminal() {
		renderError(c, invite.UserMessage(err))
		return
	}
	h.renderJoinPage(c, sessionToken, snap, "")
}

func (h *JoinHandler) renderJoinPage(c *drift.Context, sessionToken string, snap invite.Snapshot, notice string) {
	state := stateResponse(snap, nil)
	if notice != "" && state.Message == "" {
		state.Message = notice
	}

	roleLabel := "a member"
	if snap.Invite != nil {
		switch snap.Invite.Role {
		case models.RoleStaff:
			roleLabel = "staff"
		case models.RoleAthlete:
			roleLabel = "an athlete"
		}
	}

	invitedEmail := ""
	if snap.Invite != nil && snap.Invite.Email != "" {
		invitedEmail = fmt.Sprintf(`<p class="message">This invite is for <strong>%s</strong>.</p>`, html.EscapeString(snap.Invite.Email))
	}

	federated := ""
	for _, name := range h.Providers() {
		federated += fmt.Sprintf(`<button type="button" class="secondary" onclick="federated('%s')">Continue with %s</button>`,
			name, strings.ToUpper(name[:1])+name[1:])
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Join the team</title>
    <style>%s
    </style>
</head>
<body>
    <div class="container">
        <h1>You're invited to join as %s</h1>
        %s
        <p id="message" class="message">%s</p>
        <p id="warning" class="message warning"></p>

        <div id="identity" class="hidden">
            <div class="tabs">
                <button type="button" class="secondary" onclick="setMode('new_account')">Create account</button>
                <button type="button" class="secondary" onclick="setMode('existing_account')">Sign in</button>
            </div>
            <form id="credentials" onsubmit="submitCredentials(event)">
                <div id="name-field">
                    <label for="name">Name</label>
                    <input id="name" autocomplete="name">
                </div>
                <label for="email">Email</label>
                <input id="email" type="email" autocomplete="email" required>
                <label for="password">Password</label>
                <input id="password" type="password" required>
                <div id="phone-field">
                    <label for="phone">Phone (optional)</label>
                    <input id="phone" type="tel" autocomplete="tel">
                </div>
                <button id="submit" type="submit">Continue</button>
            </form>
            %s
        </div>

        <div id="redeem" class="hidden">
            <p id="signed-in" class="message"></p>
            <button id="join" type="button" onclick="redeem()">Join the team</button>
        </div>
    </div>
    <script>
        var sessionToken = %q;
        var state = %s;
        var mode = state.mode === 'existing_account' ? 'existing_account' : 'new_account';

        function headers() {
            return { 'Content-Type': 'application/json', 'X-Join-Session': sessionToken };
        }

        function render(s) {
            state = s;
            var msg = document.getElementById('message');
            msg.textContent = s.message || '';
            msg.className = 'message' + (s.error_kind ? ' error' : '');
            document.getElementById('warning').textContent = s.warning || '';
            var pending = s.state === 'validating' || s.state === 'redeeming' || s.state === 'reconciling';
            if (pending) { msg.textContent = 'Joining your team...'; msg.className = 'message'; }
            var resolved = !!s.identity;
            document.getElementById('identity').className = (s.state === 'resolving_identity' && !resolved) ? '' : 'hidden';
            document.getElementById('redeem').className = (resolved && s.state !== 'terminal') ? '' : 'hidden';
            document.getElementById('join').disabled = pending || s.redemption.in_flight;
            if (resolved) { document.getElementById('signed-in').textContent = 'Signed in as ' + s.identity.email; }
            if (s.mode === 'new_account' || s.mode === 'existing_account') { setMode(s.mode); }
        }

        function setMode(m) {
            mode = m;
            var signup = m === 'new_account';
            document.getElementById('name-field').className = signup ? '' : 'hidden';
            document.getElementById('phone-field').className = signup ? '' : 'hidden';
            document.getElementById('submit').textContent = signup ? 'Create account' : 'Sign in';
        }

        function post(path, body) {
            return fetch(path, { method: 'POST', headers: headers(), body: JSON.stringify(body) })
                .then(function(r) { return r.json(); })
                .then(render)
                .catch(function() { render(Object.assign({}, state, { message: 'We could not reach the server. Check your connection and try again.', error_kind: 'network_error' })); });
        }

        function submitCredentials(e) {
            e.preventDefault();
            document.getElementById('submit').disabled = true;
            post('/api/v1/join/identity', {
                mode: mode,
                name: document.getElementById('name').value,
                email: document.getElementById('email').value,
                password: document.getElementById('password').value,
                phone: document.getElementById('phone').value
            }).then(function() { document.getElementById('submit').disabled = false; });
        }

        function federated(provider) {
            fetch('/api/v1/join/federated/' + provider + '/consent', { headers: headers() })
                .then(function(r) { return r.json(); })
                .then(function(d) { if (d.url) { window.location.href = d.url; } });
        }

        function redeem() {
            document.getElementById('join').disabled = true;
            post('/api/v1/join/redeem', { profile: {
                display_name: document.getElementById('name').value,
                phone: document.getElementById('phone').value
            } });
        }

        if (window.EventSource) {
            var events = new EventSource('/api/v1/join/events?session_token=' + encodeURIComponent(sessionToken));
            events.addEventListener('message', function() {
                fetch('/api/v1/join/state', { headers: headers() })
                    .then(function(r) { return r.json(); })
                    .then(render);
            });
        }

        render(state);
    </script>
</body>
</html>`, pageStyle, roleLabel, invitedEmail, html.EscapeString(state.Message), federated, sessionToken, mustJSON(state))

	_ = c.HTML(200, page)
}

func renderError(c *drift.Context, message string) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Invite</title>
    <style>%s
    </style>
</head>
<body>
    <div class="container">
        <h1 class="error">Unable to join</h1>
        <p class="message">%s</p>
    </div>
</body>
</html>`, pageStyle, html.EscapeString(message))

	_ = c.HTML(400, page)
}

// renderRedirect sends the browser to target with a JS redirect, showing
// message while it loads.
func renderRedirect(c *drift.Context, target, message string) {
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Redirecting</title>
    <style>%s
    </style>
</head>
<body>
    <div class="container">
        <h1>Returning to your invite...</h1>
        <p class="message">%s</p>
    </div>
    <script>
        window.location.href = %q;
    </script>
</body>
</html>`, pageStyle, html.EscapeString(message), target)

	_ = c.HTML(200, page)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
