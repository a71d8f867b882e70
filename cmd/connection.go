// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Voltaic Labs

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/voltaic/cellscope/internal/config"
	"github.com/voltaic/cellscope/internal/session"
)

// openSerial opens a serial port in the 115200-8N1 framing the bus speaks.
// serial.Port satisfies session.Conn directly.
func openSerial(portName string, baudRate int) (session.Conn, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %v", portName, err)
	}
	return port, nil
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection adapts a WebSocket serial bridge to session.Conn.
// Binary messages carry raw bus bytes; a read deadline stands in for the
// serial read timeout, surfacing as (0, nil) like a quiet port.
type WebSocketConnection struct {
	conn        *websocket.Conn
	buf         []byte
	bufOffset   int
	readTimeout time.Duration
	closed      bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	if w.readTimeout > 0 {
		if err := w.conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
			return 0, err
		}
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// Deadline passed with no traffic; the session treats
				// this exactly like a silent serial port.
				return 0, nil
			}
			w.closed = true
			return 0, err
		}

		// Only binary messages carry bus bytes; skip anything else.
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// ResetInputBuffer drops locally buffered bytes. Bytes still in flight on
// the bridge cannot be flushed from here; the frame parser discards them.
func (w *WebSocketConnection) ResetInputBuffer() error {
	w.buf = nil
	w.bufOffset = 0
	return nil
}

func (w *WebSocketConnection) SetReadTimeout(d time.Duration) error {
	w.readTimeout = d
	return nil
}

// openWebSocket opens a WebSocket bridge connection with HTTP Basic auth.
func openWebSocket(wsURL, username, password string, skipSSLVerify bool) (session.Conn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves the bridge password from environment or prompts.
func GetPassword() (string, error) {
	if pw := os.Getenv("CELLSCOPE_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// newDialer selects the transport from the connection flags. The returned
// description names the endpoint for logs and the TUI header.
func newDialer(cfg config.Config) (session.Dialer, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}
		dial := func(string) (session.Conn, error) {
			return openWebSocket(wsURL, wsUsername, password, wsNoSSLVerify)
		}
		return dial, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if cfg.Port == "" {
		return nil, "", fmt.Errorf("either --port or --url must be specified")
	}

	dial := func(target string) (session.Conn, error) {
		return openSerial(target, cfg.Baud)
	}
	return dial, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud), nil
}

// connectSession builds a session over the configured transport, probes the
// master and applies the configured slave/cell counts.
func connectSession(events session.Events) (*session.Session, config.Config, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, "", err
	}

	dial, desc, err := newDialer(cfg)
	if err != nil {
		return nil, cfg, "", err
	}

	s := session.New(dial, newLogger(), events)
	target := cfg.Port
	if wsURL != "" {
		target = wsURL
	}
	if err := s.Connect(target); err != nil {
		return nil, cfg, desc, err
	}

	if cfg.NumSlaves > 0 {
		if err := s.SetNumSlaves(cfg.NumSlaves); err != nil {
			s.Disconnect()
			return nil, cfg, desc, fmt.Errorf("apply num_slaves: %w", err)
		}
	}
	if cfg.NumCells > 0 {
		if err := s.SetNumCellsTopBMS(cfg.NumCells); err != nil {
			s.Disconnect()
			return nil, cfg, desc, fmt.Errorf("apply num_cells: %w", err)
		}
	}
	return s, cfg, desc, nil
}
