package server

import (
	"io"
	"net/http"
)

func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := io.WriteString(w, ClientScript); err != nil {
		s.logger.Debug("client script write failed", "error", err)
	}
}

// ClientScript is the browser side of the websocket protocol. Pages load
// it from /statesync.js and call:
//
//	var calc = statesync.connect('thread', function(msg) { render(msg.state); });
//	calc.update({diameter: 12});
const ClientScript = `(function() {
    'use strict';

    function connect(name, onState) {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        var ws = new WebSocket(protocol + '//' + location.host + '/ws/' +
            encodeURIComponent(name) + '?url=' + encodeURIComponent(location.href));
        var queue = [];

        function send(frame) {
            var data = JSON.stringify(frame);
            if (ws.readyState === WebSocket.OPEN) {
                ws.send(data);
            } else {
                queue.push(data);
            }
        }

        ws.onopen = function() {
            while (queue.length) {
                ws.send(queue.shift());
            }
        };

        ws.onmessage = function(e) {
            var msg;
            try {
                msg = JSON.parse(e.data);
            } catch (err) {
                return;
            }

            switch (msg.type) {
                case 'url_replace':
                    var u = new URL(msg.url);
                    if (u.origin === location.origin) {
                        history.replaceState(history.state, '', u.pathname + u.search + u.hash);
                    }
                    break;

                case 'state':
                    if (onState) {
                        onState(msg);
                    }
                    break;

                case 'error':
                    console.error('[statesync]', msg.error);
                    break;
            }
        };

        return {
            update: function(partial) { send({type: 'update', partial: partial}); },
            reset: function() { send({type: 'reset'}); },
            close: function() { ws.close(); }
        };
    }

    window.statesync = {connect: connect};
})();
`
