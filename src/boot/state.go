// Package boot implements the bootstrap controller, the state machine that
// takes a fresh node from its first launch to membership of a formed
// network.
package boot

import (
	"sync"
	"sync/atomic"

	"github.com/playergold/goldnode/src/common"
)

// Mode captures the bootstrap mode of a goldnode: Pioneer, Discovery,
// Genesis, or Network. Modes only ever advance; Network is terminal.
type Mode uint32

const (
	// Pioneer is the initial mode of a node that has no network yet.
	Pioneer Mode = iota
	// Discovery is the mode while scanning for peers.
	Discovery
	// Genesis is the mode while negotiating the genesis document.
	Genesis
	// Network is the terminal mode of a member of a formed network.
	Network
)

// String ...
func (m Mode) String() string {
	switch m {
	case Pioneer:
		return "pioneer"
	case Discovery:
		return "discovery"
	case Genesis:
		return "genesis"
	case Network:
		return "network"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of String. It is used when resuming from a saved
// bootstrap record.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "pioneer":
		return Pioneer, nil
	case "discovery":
		return Discovery, nil
	case "genesis":
		return Genesis, nil
	case "network":
		return Network, nil
	default:
		return Pioneer, common.Errorf(common.InvalidArgument, "boot.ParseMode", "unknown mode %s", s)
	}
}

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.goFunc
const WGLIMIT = 20

type state struct {
	mode    uint32
	wg      sync.WaitGroup
	wgCount int32
}

func (b *state) getMode() Mode {
	return Mode(atomic.LoadUint32(&b.mode))
}

func (b *state) setModeRaw(m Mode) {
	atomic.StoreUint32(&b.mode, uint32(m))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	tempWgCount := atomic.LoadInt32(&b.wgCount)
	if tempWgCount < WGLIMIT {
		b.wg.Add(1)
		atomic.AddInt32(&b.wgCount, 1)
		go func() {
			defer b.wg.Done()
			atomic.AddInt32(&b.wgCount, -1)
			f()
		}()
	}
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
