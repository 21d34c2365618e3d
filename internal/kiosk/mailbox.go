package kiosk

import (
	"sync"
)

type commandKind int

const (
	commandIdentify commandKind = iota
	commandScan
)

type reply struct {
	status Status
	err    error
}

type command struct {
	kind       commandKind
	identifier string
	mode       string
	reply      chan reply
}

func newCommand(kind commandKind, identifier, mode string) *command {
	return &command{kind: kind, identifier: identifier, mode: mode, reply: make(chan reply, 1)}
}

// mailbox holds at most one pending command. A newer command replaces the
// pending one, which is answered with ErrSuperseded.
type mailbox struct {
	mu      sync.Mutex
	pending *command
	signal  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) put(cmd *command) {
	m.mu.Lock()
	if m.pending != nil {
		m.pending.reply <- reply{err: ErrSuperseded}
	}
	m.pending = cmd
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() *command {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := m.pending
	m.pending = nil
	return cmd
}
