// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in demo page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler returns the handler for WebSocket upgrade requests. It
// validates that the request uses the GET method, upgrades the HTTP
// connection, and registers a new Client with the hub, which launches the
// client's read/write pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)

		// Register the client with the hub; the hub will launch the pump goroutines.
		hub.register <- client
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "QuickRoom relay is running!")
}

// DemoPageHandler serves an HTML page for trying the room protocol by hand.
// It can create or join a room, send messages, and shows member-count and
// system events as they arrive.
func DemoPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>QuickRoom Demo</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 640px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { padding: 5px; margin-right: 6px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .in-room { background-color: #d4edda; color: #155724; }
        .no-room { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>QuickRoom Demo</h1>

    <div id="status" class="status no-room">Not in a room</div>

    <div>
        <button onclick="createRoom()">Create room</button>
        <input type="text" id="codeInput" placeholder="Room code" maxlength="6">
        <button onclick="joinRoom()">Join</button>
        <button onclick="leaveRoom()">Leave</button>
    </div>

    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." size="40">
        <button onclick="sendMessage()">Send</button>
    </div>

    <script>
        let ws = null;
        let seq = 0;
        const pending = {};
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '4px 0';
            if (color) el.style.color = color;
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function setRoom(room) {
            if (room) {
                statusDiv.textContent = 'In room ' + room;
                statusDiv.className = 'status in-room';
            } else {
                statusDiv.textContent = 'Not in a room';
                statusDiv.className = 'status no-room';
            }
        }

        function connect(onOpen) {
            if (ws && ws.readyState === WebSocket.OPEN) { onOpen(); return; }
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = onOpen;
            ws.onclose = function() { addLine('Connection closed', 'gray'); setRoom(null); ws = null; };
            ws.onmessage = function(e) {
                for (const line of e.data.split('\n')) {
                    const env = JSON.parse(line);
                    if (env.event === 'ack') {
                        const cb = pending[env.seq];
                        delete pending[env.seq];
                        if (cb) cb(env.data);
                    } else if (env.event === 'message') {
                        addLine(env.data.from.slice(0, 8) + ': ' + env.data.text, env.data.avatarColor);
                    } else if (env.event === 'systemMessage') {
                        addLine(env.data, 'gray');
                    } else if (env.event === 'roomUsers') {
                        addLine('Members in room: ' + env.data.count, 'gray');
                    }
                }
            };
        }

        function request(event, payload, cb) {
            connect(function() {
                seq++;
                pending[seq] = cb;
                ws.send(JSON.stringify({event: event, seq: seq, payload: payload}));
            });
        }

        function createRoom() {
            request('createRoom', null, function(res) {
                if (res.ok) { setRoom(res.room); addLine('Created room ' + res.room, 'gray'); }
                else addLine('Error: ' + res.error, 'red');
            });
        }

        function joinRoom() {
            const code = document.getElementById('codeInput').value;
            request('joinRoom', {room: code}, function(res) {
                if (res.ok) setRoom(res.room);
                else addLine('Error: ' + res.error, 'red');
            });
        }

        function leaveRoom() {
            request('leaveRoom', null, function(res) {
                if (res.ok) setRoom(null);
                else addLine('Error: ' + res.error, 'red');
            });
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            const text = input.value;
            if (!text) return;
            request('message', {text: text}, function(res) {
                if (res.ok) { addLine('You: ' + res.msg.text, 'blue'); input.value = ''; }
                else addLine('Error: ' + res.error, 'red');
            });
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') sendMessage();
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
