// Package websocket exposes MQTT-over-websocket connections as
// net.Conn byte streams, so the wire codec reads them the same way it
// reads TCP.
package websocket

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	Subprotocols: []string{"mqtt"}, // [MQTT-6.0.0-4]
}

// Setup starts a websocket listener on address. Every upgraded
// connection is handed to dispatch as a net.Conn. Fatal listener
// errors are delivered on errs.
func Setup(address string, checkOrigin bool, dispatch func(net.Conn), errs chan<- error) {
	go func() {
		errs <- http.ListenAndServe(address, handler(checkOrigin, dispatch))
	}()
}

// SetupTLS is Setup over TLS.
func SetupTLS(address, certFile, keyFile string, checkOrigin bool, dispatch func(net.Conn), errs chan<- error) {
	go func() {
		errs <- http.ListenAndServeTLS(address, certFile, keyFile, handler(checkOrigin, dispatch))
	}()
}

func handler(checkOrigin bool, dispatch func(net.Conn)) http.Handler {
	up := upgrader
	if !checkOrigin {
		up.CheckOrigin = func(*http.Request) bool { return true }
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if protos := websocket.Subprotocols(r); len(protos) == 0 || protos[0] != "mqtt" { // [MQTT-6.0.0-3]
			errMsg := "websocket client must request the mqtt subprotocol"
			log.Debug(errMsg, " Client sub protocols:", protos)
			http.Error(w, errMsg, http.StatusNotAcceptable)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			errMsg := "unsuccessful websocket negotiation: " + err.Error()
			log.Debug(errMsg)
			http.Error(w, errMsg, http.StatusInternalServerError)
			return
		}

		go dispatch(&wsConn{Conn: conn})
	})
}

// wsConn splices binary websocket messages into one continuous byte
// stream. A control packet may span messages, and one message may hold
// several packets.
type wsConn struct {
	*websocket.Conn
	r io.Reader
}

func (c *wsConn) Write(p []byte) (int, error) {
	err := c.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			var err error
			var mt int
			if mt, c.r, err = c.NextReader(); err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage { // [MQTT-6.0.0-1]
				return 0, errors.New("not binary message")
			}
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.SetWriteDeadline(t); err != nil {
		return err
	}
	return c.SetReadDeadline(t)
}
