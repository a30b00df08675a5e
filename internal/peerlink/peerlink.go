// Package peerlink implements the one-shot TCP connections generals
// use to exchange frames: every send opens a fresh connection, writes
// one frame, and closes; every receive comes from a single accepted
// connection on the general's own listener. There is no multiplexing
// and no long-lived peer connection, matching the reference simulator.
package peerlink

import (
	"net"
	"time"

	"github.com/distsys-sim/byzantine-generals/internal/metrics"
	"github.com/distsys-sim/byzantine-generals/internal/wire"
)

const dialTimeout = 2 * time.Second

// Transmit opens a connection to dest, writes a single frame, and
// closes the connection. It fails silently — the caller decides
// whether to log — and never retries.
func Transmit(dest string, intent wire.Intent, payload interface{}) bool {
	conn, err := net.DialTimeout("tcp", dest, dialTimeout)
	if err != nil {
		metrics.TransmitFailures.WithLabelValues(string(intent)).Inc()
		return false
	}
	defer conn.Close()

	frame, err := wire.Encode(intent, payload)
	if err != nil {
		metrics.TransmitFailures.WithLabelValues(string(intent)).Inc()
		return false
	}
	if _, err := conn.Write(frame); err != nil {
		metrics.TransmitFailures.WithLabelValues(string(intent)).Inc()
		return false
	}

	metrics.FramesSent.WithLabelValues(string(intent)).Inc()
	return true
}

// Receive blocks on the listener's Accept, bounded by timeout, and
// decodes exactly one frame from the accepted connection before
// closing it. ok is false on timeout, accept error, or decode failure.
func Receive(ln net.Listener, timeout time.Duration) (peerAddr string, frame wire.Frame, ok bool) {
	if tcpLn, isTCP := ln.(*net.TCPListener); isTCP {
		tcpLn.SetDeadline(time.Now().Add(timeout))
	}

	conn, err := ln.Accept()
	if err != nil {
		return "", wire.Frame{}, false
	}
	defer conn.Close()

	f, ok := wire.ReadFrame(conn)
	if !ok {
		return conn.RemoteAddr().String(), wire.Frame{}, false
	}

	metrics.FramesReceived.WithLabelValues(string(f.Intent)).Inc()
	return conn.RemoteAddr().String(), f, true
}
