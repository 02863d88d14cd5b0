package link

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gvtun/internal/framing"
	"gvtun/internal/telemetry"
	"gvtun/internal/transform"
)

// fakeFramer is an in-memory Framer for engine tests: WriteFrame appends to
// an outbox, ReadFrame serves from a preloaded inbox (blocking on an empty
// channel until closed).
type fakeFramer struct {
	inbox  chan fakeFrame
	outbox chan fakeFrame
	closed chan struct{}
}

type fakeFrame struct {
	hdr     framing.Header
	payload []byte
	err     error
}

func newFakeFramer() *fakeFramer {
	return &fakeFramer{
		inbox:  make(chan fakeFrame, 16),
		outbox: make(chan fakeFrame, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeFramer) ReadFrame(buf []byte) (framing.Header, []byte, error) {
	select {
	case fr := <-f.inbox:
		return fr.hdr, fr.payload, fr.err
	case <-f.closed:
		return framing.Header{}, nil, io.EOF
	}
}

func (f *fakeFramer) WriteFrame(payload []byte, flag framing.ControlFlag) error {
	cp := append([]byte{}, payload...)
	select {
	case f.outbox <- fakeFrame{hdr: framing.Header{Flag: flag}, payload: cp}:
	default:
	}
	return nil
}

func (f *fakeFramer) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

type fakeLocal struct {
	inbox  chan []byte
	closed chan struct{}
	buf    bytes.Buffer
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{inbox: make(chan []byte, 16), closed: make(chan struct{})}
}

func (l *fakeLocal) Read(p []byte) (int, error) {
	select {
	case data := <-l.inbox:
		return copy(p, data), nil
	case <-l.closed:
		return 0, io.EOF
	}
}

func (l *fakeLocal) Write(p []byte) (int, error) {
	l.buf.Write(p)
	return len(p), nil
}

func (l *fakeLocal) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}

func TestEngineDeliversFrameLocalToRemote(t *testing.T) {
	remote := newFakeFramer()
	local := newFakeLocal()
	defer remote.Close()

	e := NewEngine(Config{
		Remote: remote,
		Local:  local,
		Stack:  transform.NewStack(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Code, 1)
	go func() { done <- e.Run(ctx) }()

	local.inbox <- []byte("hello")

	select {
	case fr := <-remote.outbox:
		if string(fr.payload) != "hello" {
			t.Fatalf("got %q, want %q", fr.payload, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for egress frame")
	}

	cancel()
	<-done
}

func TestEngineEchoRequestGetsReply(t *testing.T) {
	remote := newFakeFramer()
	local := newFakeLocal()
	defer remote.Close()

	e := NewEngine(Config{
		Remote: remote,
		Local:  local,
		Stack:  transform.NewStack(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Code, 1)
	go func() { done <- e.Run(ctx) }()

	remote.inbox <- fakeFrame{hdr: framing.Header{Flag: framing.FlagEchoRequest}}

	select {
	case fr := <-remote.outbox:
		if fr.hdr.Flag != framing.FlagEchoReply {
			t.Fatalf("got flag %d, want FlagEchoReply", fr.hdr.Flag)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo reply")
	}

	cancel()
	<-done
}

func TestEngineKeepAliveTimeout(t *testing.T) {
	remote := newFakeFramer()
	local := newFakeLocal()
	defer remote.Close()

	statsPath := filepath.Join(t.TempDir(), "stats.log")
	sf, err := telemetry.OpenStatsFile(statsPath)
	if err != nil {
		t.Fatalf("OpenStatsFile: %v", err)
	}
	defer sf.Close()

	counters := &telemetry.Counters{}
	counters.AddBytesOut(42)

	e := NewEngine(Config{
		Remote:            remote,
		Local:             local,
		Stack:             transform.NewStack(),
		Stats:             counters,
		StatsFile:         sf,
		KeepAliveInterval: 20 * time.Millisecond,
		KeepAliveMaxFail:  2,
		StatInterval:      time.Hour,
	})

	code := e.Run(context.Background())
	if code != CodeTimeout {
		t.Fatalf("got %v, want CodeTimeout", code)
	}

	// The final stats row reflects the counters at termination.
	data, err := os.ReadFile(statsPath)
	if err != nil {
		t.Fatalf("read stats file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	last := lines[len(lines)-1]
	if !strings.HasSuffix(last, " 0 42 0 0") {
		t.Fatalf("final stats row %q does not reflect counters", last)
	}
}

func TestEngineRemoteEOFIsPeerClose(t *testing.T) {
	remote := newFakeFramer()
	local := newFakeLocal()

	e := NewEngine(Config{
		Remote: remote,
		Local:  local,
		Stack:  transform.NewStack(),
	})

	remote.Close()

	code := e.Run(context.Background())
	if code != CodePeerClose {
		t.Fatalf("got %v, want CodePeerClose", code)
	}
}

func TestEngineWakeBytePushedThroughStack(t *testing.T) {
	remote := newFakeFramer()
	local := newFakeLocal()
	defer remote.Close()

	e := NewEngine(Config{
		Remote: remote,
		Local:  local,
		Stack:  transform.NewStack(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Code, 1)
	go func() { done <- e.Run(ctx) }()

	e.RequestWake()
	remote.inbox <- fakeFrame{hdr: framing.Header{Flag: framing.FlagEchoRequest}}

	sawWakeByte := false
	deadline := time.After(2 * time.Second)
	for !sawWakeByte {
		select {
		case fr := <-remote.outbox:
			if fr.hdr.Flag == framing.FlagNone && len(fr.payload) == 1 {
				sawWakeByte = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for the wake byte")
		}
	}

	cancel()
	<-done
}

func TestEngineReloadRequest(t *testing.T) {
	remote := newFakeFramer()
	local := newFakeLocal()
	defer remote.Close()

	e := NewEngine(Config{
		Remote: remote,
		Local:  local,
		Stack:  transform.NewStack(),
	})

	done := make(chan Code, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.RequestReload()

	select {
	case code := <-done:
		if code != CodeReload {
			t.Fatalf("got %v, want CodeReload", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on reload request")
	}
}

func TestEngineConnCloseTerminates(t *testing.T) {
	remote := newFakeFramer()
	local := newFakeLocal()
	defer remote.Close()

	e := NewEngine(Config{
		Remote: remote,
		Local:  local,
		Stack:  transform.NewStack(),
	})

	remote.inbox <- fakeFrame{hdr: framing.Header{Flag: framing.FlagConnClose}}

	code := e.Run(context.Background())
	if code != CodePeerClose {
		t.Fatalf("got %v, want CodePeerClose", code)
	}
}
