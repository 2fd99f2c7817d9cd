// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/Thermoquad/cn105/pkg/heatpump"
	"github.com/Thermoquad/cn105/pkg/heatpump/heatpumptest"
)

// Connection is a heat pump port that can be closed
type Connection interface {
	heatpump.Port
	io.Closer
}

// SerialConnection wraps a serial port configured for CN105 (8 data bits, even parity, 1 stop bit)
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

func (s *SerialConnection) SetReadTimeout(t time.Duration) error {
	return s.port.SetReadTimeout(t)
}

// SetBaudRate switches the line speed, keeping the 8E1 framing
func (s *SerialConnection) SetBaudRate(baud int) error {
	return s.port.SetMode(serialMode(baud))
}

func serialMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection carries the CN105 byte stream over binary WebSocket
// messages, as served by a remote serial bridge. A background goroutine owns
// the socket's read side so Read can honour a timeout without poisoning the
// connection with a read deadline.
type WebSocketConnection struct {
	conn     *websocket.Conn
	messages chan []byte
	done     chan struct{}
	quit     chan struct{}
	readErr  error

	mu        sync.Mutex
	timeout   time.Duration
	buf       []byte
	closeOnce sync.Once
}

func newWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		messages: make(chan []byte, 64),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		timeout:  100 * time.Millisecond,
	}
	go w.readLoop()
	return w
}

func (w *WebSocketConnection) readLoop() {
	defer close(w.done)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.readErr = err
			return
		}
		// The bridge only forwards serial bytes as binary messages
		if messageType != websocket.BinaryMessage {
			continue
		}
		select {
		case w.messages <- data:
		case <-w.quit:
			return
		}
	}
}

// Read returns buffered bytes, or waits up to the read timeout for the next
// message. It returns (0, nil) when the timeout expires.
func (w *WebSocketConnection) Read(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()

		select {
		case data := <-w.messages:
			w.buf = data
		case <-w.done:
			// Deliver anything queued before the socket failed
			select {
			case data := <-w.messages:
				w.buf = data
			default:
				return 0, fmt.Errorf("%w: %v", ErrConnectionClosed, w.readErr)
			}
		case <-timer.C:
			return 0, nil
		}
	}

	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) SetReadTimeout(t time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.timeout = t
	return nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.quit)
		err = w.conn.Close()
	})
	return err
}

// simulatedConnection is the in-memory unit behind --simulate
type simulatedConnection struct {
	*heatpumptest.Port
}

func (simulatedConnection) Close() error { return nil }

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, serialMode(baudRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
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
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn), nil
}

// GetPassword retrieves password from config, environment or prompts user
func GetPassword() (string, error) {
	if cfg != nil && cfg.WebSocket.Password != "" {
		return cfg.WebSocket.Password, nil
	}
	if pw := os.Getenv("CN105_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens a simulated, WebSocket or serial connection based on
// flags and config
func OpenConnection() (Connection, string, error) {
	if simulate {
		unit := heatpumptest.NewUnit(heatpump.SystemClock())
		return simulatedConnection{unit.Port}, "Simulated unit", nil
	}

	if cfg.WebSocket.URL != "" {
		password := ""
		if cfg.WebSocket.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(cfg.WebSocket.URL, cfg.WebSocket.Username, password, cfg.WebSocket.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("WebSocket: %s", cfg.WebSocket.URL), nil
	}

	if cfg.Serial.Port != "" {
		conn, err := OpenSerialConnection(cfg.Serial.Port, cfg.Engine.BaudRate)
		if err != nil {
			return nil, "", err
		}

		return conn, fmt.Sprintf("Serial: %s @ %d baud 8E1", cfg.Serial.Port, cfg.Engine.BaudRate), nil
	}

	return nil, "", fmt.Errorf("one of --port, --url or --simulate must be specified")
}

// newEngine opens the configured connection and wraps it in an engine
func newEngine() (*heatpump.Engine, Connection, string, error) {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return nil, nil, "", err
	}
	return heatpump.New(conn, cfg.Engine.Options()), conn, connInfo, nil
}
