package discord

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/cubiclauncher/kepler/internal/presence"
)

type receivedCommand struct {
	Cmd   string `json:"cmd"`
	Nonce string `json:"nonce"`
	Args  struct {
		PID      int               `json:"pid"`
		Activity presence.Activity `json:"activity"`
	} `json:"args"`
}

// fakeDiscord is an in-memory IPC peer served over net.Pipe
type fakeDiscord struct {
	rejectHandshake *Error
	rejectActivity  *Error
	closeOnActivity *Error
	pingFirst       bool
	silent          bool
	hangupOnce      atomic.Bool
	closeOnce       atomic.Bool
	dialErr         error

	dials      atomic.Int32
	handshakes atomic.Int32
	clientIDs  chan string
	closes     chan struct{}
	pongs      chan []byte

	mu       sync.Mutex
	received []receivedCommand
}

func newFakeDiscord() *fakeDiscord {
	return &fakeDiscord{
		clientIDs: make(chan string, 8),
		closes:    make(chan struct{}, 8),
		pongs:     make(chan []byte, 8),
	}
}

func (f *fakeDiscord) dial(ctx context.Context) (net.Conn, error) {
	f.dials.Add(1)
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakeDiscord) commands() []receivedCommand {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]receivedCommand, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeDiscord) serve(conn net.Conn) {
	defer conn.Close()

	for {
		op, body, err := readFrame(conn)
		if err != nil {
			return
		}

		switch op {
		case opHandshake:
			f.handshakes.Add(1)
			var hs handshake
			if err := sonic.Unmarshal(body, &hs); err == nil {
				f.clientIDs <- hs.ClientID
			}
			if f.rejectHandshake != nil {
				_ = writeFrame(conn, opClose, f.rejectHandshake)
				return
			}
			_ = writeFrame(conn, opFrame, map[string]any{
				"cmd":  "DISPATCH",
				"evt":  "READY",
				"data": map[string]any{"v": 1},
			})

		case opFrame:
			var cmd receivedCommand
			if err := sonic.Unmarshal(body, &cmd); err != nil {
				return
			}
			f.mu.Lock()
			f.received = append(f.received, cmd)
			f.mu.Unlock()

			if f.hangupOnce.CompareAndSwap(true, false) {
				return
			}
			if f.closeOnActivity != nil && f.closeOnce.CompareAndSwap(false, true) {
				_ = writeFrame(conn, opClose, f.closeOnActivity)
				return
			}
			if f.silent {
				continue
			}
			if f.pingFirst {
				if err := writeFrame(conn, opPing, map[string]any{"seq": 7}); err != nil {
					return
				}
				pongOp, pong, err := readFrame(conn)
				if err != nil || pongOp != opPong {
					return
				}
				f.pongs <- pong
			}

			// An unrelated event frame must be skipped by nonce matching
			_ = writeFrame(conn, opFrame, map[string]any{"cmd": "DISPATCH", "evt": "ACTIVITY_JOIN"})

			if f.rejectActivity != nil {
				_ = writeFrame(conn, opFrame, map[string]any{
					"cmd":   cmd.Cmd,
					"evt":   "ERROR",
					"nonce": cmd.Nonce,
					"data":  f.rejectActivity,
				})
				continue
			}
			_ = writeFrame(conn, opFrame, map[string]any{
				"cmd":   cmd.Cmd,
				"evt":   nil,
				"nonce": cmd.Nonce,
				"data":  cmd.Args.Activity,
			})

		case opClose:
			f.closes <- struct{}{}
			return
		}
	}
}

var errNoSocket = errors.New("no such socket")
