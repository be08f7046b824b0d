// Package testutil provides test doubles and client helpers for exercising
// the relay.
package testutil

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/parkline/relay/internal/relay/protocol"
)

// FakeTransport is an in-memory session transport that records every frame
// sent through it. Safe for concurrent use.
type FakeTransport struct {
	mu        sync.Mutex
	open      bool
	failSends bool
	frames    [][]byte
}

// NewFakeTransport returns an open FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{open: true}
}

// Send records data, or fails when the transport is closed or failure
// injection is on.
func (f *FakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return fmt.Errorf("transport closed")
	}
	if f.failSends {
		return fmt.Errorf("injected send failure")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

// IsOpen reports whether the transport is open.
func (f *FakeTransport) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Close marks the transport closed. Safe to call more than once.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

// FailSends makes every subsequent Send return an error while leaving the
// transport nominally open, simulating a peer that stopped draining.
func (f *FakeTransport) FailSends(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSends = fail
}

// Frames returns a copy of every frame sent so far.
func (f *FakeTransport) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

// Envelopes decodes every recorded frame.
func (f *FakeTransport) Envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	frames := f.Frames()
	out := make([]protocol.Envelope, 0, len(frames))
	for i, raw := range frames {
		env, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("decoding recorded frame %d: %v", i, err)
		}
		out = append(out, env)
	}
	return out
}

// EnvelopesOfType returns the recorded envelopes with the given type.
func (f *FakeTransport) EnvelopesOfType(t *testing.T, mt protocol.MessageType) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for _, env := range f.Envelopes(t) {
		if env.Type == mt {
			out = append(out, env)
		}
	}
	return out
}

// DecodeData unmarshals an envelope's data into out.
func DecodeData(t *testing.T, env protocol.Envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decoding %s data: %v", env.Type, err)
	}
}
