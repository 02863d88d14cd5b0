// Package link implements the single-threaded, cooperative event loop that
// shuttles frames between the remote transport and the local device once
// the handshake has completed and a transform stack is installed.
package link

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"gvtun/internal/framing"
	"gvtun/internal/logging"
	"gvtun/internal/settings"
	"gvtun/internal/telemetry"
	"gvtun/internal/transform"
)

// Local is the local device side: a plain byte stream, read/write only.
type Local interface {
	io.Reader
	io.Writer
}

// Engine drives one session's bidirectional pipeline. All decision-making
// and buffer traversal happens on the single goroutine that calls Run;
// the two read pumps below exist only because Go has no native readiness
// wait across two arbitrary descriptors, not to share engine state.
type Engine struct {
	remote Framer
	local  Local
	stack  *transform.Stack

	stats *telemetry.Counters
	sf    *telemetry.StatsFile
	log   logging.Logger

	keepAliveInterval time.Duration
	keepAliveMaxFail  int
	statInterval      time.Duration

	persistKeepInterface bool

	wake   atomic.Bool
	reload chan struct{}
}

// Config collects Engine's construction parameters.
type Config struct {
	Remote Framer
	Local  Local
	Stack  *transform.Stack

	Stats     *telemetry.Counters
	StatsFile *telemetry.StatsFile
	Logger    logging.Logger

	KeepAliveInterval    time.Duration
	KeepAliveMaxFail     int
	StatInterval         time.Duration
	PersistKeepInterface bool
}

// NewEngine builds an Engine from cfg, applying settings defaults for any
// zero-valued timer field.
func NewEngine(cfg Config) *Engine {
	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = settings.DefaultKeepAliveInterval
	}
	if cfg.KeepAliveMaxFail == 0 {
		cfg.KeepAliveMaxFail = settings.DefaultKeepAliveMaxFail
	}
	if cfg.StatInterval == 0 {
		cfg.StatInterval = settings.DefaultStatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard{}
	}
	return &Engine{
		remote:               cfg.Remote,
		local:                cfg.Local,
		stack:                cfg.Stack,
		stats:                cfg.Stats,
		sf:                   cfg.StatsFile,
		log:                  cfg.Logger,
		keepAliveInterval:    cfg.KeepAliveInterval,
		keepAliveMaxFail:     cfg.KeepAliveMaxFail,
		statInterval:         cfg.StatInterval,
		persistKeepInterface: cfg.PersistKeepInterface,
		reload:               make(chan struct{}, 1),
	}
}

type remoteEvent struct {
	hdr     framing.Header
	payload []byte
	err     error
}

type localEvent struct {
	n   int
	buf []byte
	err error
}

// Run shuttles frames until ctx is cancelled or a fatal condition arises,
// returning a Code distinguishing why it stopped.
func (e *Engine) Run(ctx context.Context) Code {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	defer g.Wait()
	defer cancel()

	remoteCh := make(chan remoteEvent)
	localCh := make(chan localEvent)

	g.Go(func() error { e.pumpRemote(gctx, remoteCh); return nil })
	g.Go(func() error { e.pumpLocal(gctx, localCh); return nil })

	tickPeriod := e.keepAliveInterval
	if e.statInterval < tickPeriod {
		tickPeriod = e.statInterval
	}
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	kaRemaining := e.keepAliveInterval
	statRemaining := e.statInterval
	idleCount := 0
	lastTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown(CodeGraceful)

		case <-e.reload:
			return e.shutdown(CodeReload)

		case now := <-ticker.C:
			elapsed := now.Sub(lastTick)
			lastTick = now
			kaRemaining -= elapsed
			statRemaining -= elapsed

			if kaRemaining <= 0 {
				idleCount++
				kaRemaining = e.keepAliveInterval
				if idleCount > e.keepAliveMaxFail {
					return e.shutdown(CodeTimeout)
				}
				_ = e.remote.WriteFrame(nil, framing.FlagEchoRequest)
			}
			if statRemaining <= 0 {
				statRemaining = e.statInterval
				if e.sf != nil && e.stats != nil {
					_ = e.sf.Flush(time.Now(), e.stats.Snapshot())
				}
			}

		case ev := <-remoteCh:
			idleCount = 0
			if ev.err != nil {
				if ev.err == framing.ErrOversizeFrame {
					e.log.Printf("link: %v", ev.err)
					continue
				}
				if errors.Is(ev.err, io.EOF) {
					// Abrupt close. Logged apart from a seen close frame,
					// but the session ends with the same non-fatal code.
					e.log.Printf("link: peer closed the connection")
					return e.shutdown(CodePeerClose)
				}
				e.log.Printf("link: remote read failed: %v", ev.err)
				return e.shutdown(CodeError)
			}

			switch ev.hdr.Flag {
			case framing.FlagEchoRequest:
				_ = e.remote.WriteFrame(nil, framing.FlagEchoReply)
			case framing.FlagEchoReply:
				// ignored
			case framing.FlagBadFrame:
				e.log.Printf("link: bad frame from peer")
			case framing.FlagConnClose:
				return e.shutdown(CodePeerClose)
			default:
				if e.stats != nil {
					e.stats.AddWireBytesIn(len(ev.payload) + 2)
				}
				plain, err := e.stack.Decode(make([]byte, 0, settings.MaxFrame), ev.payload)
				if err != nil {
					e.log.Printf("link: ingress transform failed: %v", err)
					return e.shutdown(CodeError)
				}
				if plain == nil {
					continue
				}
				if e.stats != nil {
					e.stats.AddBytesIn(len(plain))
				}
				if _, err := e.local.Write(plain); err != nil {
					e.log.Printf("link: write to local failed: %v", err)
					return e.shutdown(CodeError)
				}
			}

		case ev := <-localCh:
			if ev.err != nil {
				e.log.Printf("link: local read failed: %v", ev.err)
				return e.shutdown(CodeError)
			}
			if e.stats != nil {
				e.stats.AddBytesOut(ev.n)
			}
			cipher, err := e.stack.Encode(make([]byte, 0, settings.MaxFrame+settings.MaxOverhead), ev.buf[:ev.n])
			if err != nil {
				e.log.Printf("link: egress transform failed: %v", err)
				return e.shutdown(CodeError)
			}
			if cipher == nil {
				continue
			}
			if e.stats != nil {
				e.stats.AddWireBytesOut(len(cipher) + 2)
			}
			if err := e.remote.WriteFrame(cipher, framing.FlagNone); err != nil {
				e.log.Printf("link: write to remote failed: %v", err)
				return e.shutdown(CodeError)
			}
		}

		if e.wake.CompareAndSwap(true, false) {
			if err := e.sendWakeByte(); err != nil {
				e.log.Printf("link: wake byte failed: %v", err)
				return e.shutdown(CodeError)
			}
		}
	}
}

// RequestReload asks the loop to stop with CodeReload so the supervisor
// can reconfigure and restart the session. Safe to call from any
// goroutine; a duplicate request while one is pending is a no-op.
func (e *Engine) RequestReload() {
	select {
	case e.reload <- struct{}{}:
	default:
	}
}

// RequestWake asks the loop to push a single-byte payload through the
// egress stack on its next iteration, so that after this side's shaper
// stalled a frame the remote side still sees traffic before its keep-alive
// accounting gives up. Safe to call from any goroutine.
func (e *Engine) RequestWake() {
	e.wake.Store(true)
}

func (e *Engine) sendWakeByte() error {
	if e.stats != nil {
		e.stats.AddBytesOut(1)
	}
	out, err := e.stack.Encode(make([]byte, 0, settings.MaxFrame+settings.MaxOverhead), []byte{0})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if e.stats != nil {
		e.stats.AddWireBytesOut(len(out) + 2)
	}
	return e.remote.WriteFrame(out, framing.FlagNone)
}

// pumpRemote and pumpLocal each own a fresh buffer per iteration: the
// event is handed to the single consuming goroutine over an unbuffered
// channel, so a shared, reused buffer would race between this goroutine's
// next read and the consumer still processing the previous one.
func (e *Engine) pumpRemote(ctx context.Context, out chan<- remoteEvent) {
	for {
		buf := make([]byte, settings.MaxFrame+settings.MaxOverhead)
		hdr, payload, err := e.remote.ReadFrame(buf)
		select {
		case <-ctx.Done():
			return
		case out <- remoteEvent{hdr: hdr, payload: payload, err: err}:
		}
		if err != nil && err != framing.ErrOversizeFrame {
			return
		}
	}
}

func (e *Engine) pumpLocal(ctx context.Context, out chan<- localEvent) {
	for {
		buf := make([]byte, settings.MaxFrame)
		n, err := e.local.Read(buf)
		select {
		case <-ctx.Done():
			return
		case out <- localEvent{n: n, buf: buf, err: err}:
		}
		if err != nil {
			return
		}
	}
}

// shutdown flushes a final stats row, sends a best-effort connection-close
// frame, and closes the remote side; the local device is closed too unless
// persist-keep-interface is set.
func (e *Engine) shutdown(code Code) Code {
	if e.sf != nil && e.stats != nil {
		_ = e.sf.Flush(time.Now(), e.stats.Snapshot())
	}
	_ = e.remote.WriteFrame(nil, framing.FlagConnClose)
	if closer, ok := e.remote.(io.Closer); ok {
		_ = closer.Close()
	}
	if !e.persistKeepInterface {
		if closer, ok := e.local.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return code
}
