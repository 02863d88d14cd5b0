package session

import (
	"net"
	"testing"
	"time"

	"gvtun/internal/framing"
	"gvtun/internal/link"
	"gvtun/internal/settings"
)

// dialPair returns a connected TCP pair over loopback, standing in for the
// authenticated control channel the handshake leaves behind.
func dialPair(t *testing.T) (client, server net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
	}
	return client, server
}

func TestNegotiateDatagramRoundTrip(t *testing.T) {
	clientConn, serverConn := dialPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	type side struct {
		framer link.Framer
		err    error
	}
	serverSide := make(chan side, 1)
	go func() {
		f, err := NegotiateDatagram(serverConn, false, 2*time.Second)
		serverSide <- side{framer: f, err: err}
	}()

	clientFramer, err := NegotiateDatagram(clientConn, false, 2*time.Second)
	if err != nil {
		t.Fatalf("client NegotiateDatagram: %v", err)
	}

	sv := <-serverSide
	if sv.err != nil {
		t.Fatalf("server NegotiateDatagram: %v", sv.err)
	}

	payload := []byte("over the data channel")
	if err := clientFramer.WriteFrame(payload, framing.FlagNone); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	buf := make([]byte, settings.MaxFrame)
	hdr, got, err := sv.framer.ReadFrame(buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if hdr.Flag != framing.FlagNone {
		t.Fatalf("Flag = %d, want FlagNone", hdr.Flag)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestNegotiateDatagramLateConnect(t *testing.T) {
	clientConn, serverConn := dialPair(t)
	defer clientConn.Close()
	defer serverConn.Close()

	type result struct {
		framer link.Framer
		err    error
	}
	serverSide := make(chan result, 1)
	go func() {
		// Server in NAT-traversal mode: no peer bound until first ingress.
		f, err := NegotiateDatagram(serverConn, true, 2*time.Second)
		serverSide <- result{framer: f, err: err}
	}()

	clientFramer, err := NegotiateDatagram(clientConn, false, 2*time.Second)
	if err != nil {
		t.Fatalf("client NegotiateDatagram: %v", err)
	}
	sv := <-serverSide
	if sv.err != nil {
		t.Fatalf("server NegotiateDatagram: %v", sv.err)
	}

	// First client packet reveals the sender and binds the server's peer.
	if err := clientFramer.WriteFrame([]byte("knock"), framing.FlagNone); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	buf := make([]byte, settings.MaxFrame)
	if _, _, err := sv.framer.ReadFrame(buf); err != nil {
		t.Fatalf("server ReadFrame: %v", err)
	}

	// The server can now reply over the just-bound peer address.
	if err := sv.framer.WriteFrame([]byte("reply"), framing.FlagNone); err != nil {
		t.Fatalf("server WriteFrame after late connect: %v", err)
	}
	_, got, err := clientFramer.ReadFrame(buf)
	if err != nil {
		t.Fatalf("client ReadFrame: %v", err)
	}
	if string(got) != "reply" {
		t.Fatalf("got %q, want %q", got, "reply")
	}
}
