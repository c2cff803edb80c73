// Package transport runs SysEx request/response exchanges with a device over a MIDI port pair.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/james-see/td3pattern/pkg/debug"
)

// InboxSize bounds the number of unread frames kept from the input port
const InboxSize = 200

// DefaultTimeout applies when a session is created with a zero timeout
const DefaultTimeout = 5 * time.Second

var (
	// ErrNoResponse is returned when the device stays silent past the timeout
	ErrNoResponse = errors.New("no response from device")
	// ErrBadResponse is returned when the reply is not a frame addressed by the device header
	ErrBadResponse = errors.New("unexpected response from device")
)

// Session serializes requests to one device. Only one request is in flight at a time.
type Session struct {
	send    func([]byte) error
	header  []byte
	timeout time.Duration
	inbox   chan []byte

	mu     sync.Mutex
	closer func() error
}

// NewSession creates a session writing frames through send. Incoming frames
// are fed to it through Deliver.
func NewSession(send func([]byte) error, header []byte, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Session{
		send:    send,
		header:  append([]byte(nil), header...),
		timeout: timeout,
		inbox:   make(chan []byte, InboxSize),
	}
}

// Timeout returns the per-request timeout
func (s *Session) Timeout() time.Duration {
	return s.timeout
}

// Deliver queues an incoming SysEx frame. It matches the gomidi listener
// signature and never blocks: when the inbox is full the frame is dropped.
func (s *Session) Deliver(msg midi.Message, timestampms int32) {
	if len(msg) == 0 || msg[0] != 0xF0 {
		return
	}
	frame := append([]byte(nil), msg...)
	select {
	case s.inbox <- frame:
		debug.Log("midi", "recv %d bytes at %dms", len(frame), timestampms)
	default:
		debug.Log("midi", "inbox full, dropped %d byte frame", len(frame))
	}
}

// Request sends header+data as a SysEx frame, waits for the next frame from
// the device and returns its payload with the header and F7 stripped.
// desc names the request in errors and logs.
func (s *Session) Request(ctx context.Context, desc string, data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drain()

	body := make([]byte, 0, len(s.header)+len(data))
	body = append(body, s.header...)
	body = append(body, data...)
	frame := midi.SysEx(body).Bytes()

	debug.Log("midi", "%s: send % X", desc, frame)
	if err := s.send(frame); err != nil {
		return nil, fmt.Errorf("%s: send failed: %w", desc, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	select {
	case resp := <-s.inbox:
		debug.Log("midi", "%s: got % X", desc, resp)
		payload, err := s.unwrap(resp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", desc, err)
		}
		return payload, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w after %s", desc, ErrNoResponse, s.timeout)
		}
		return nil, fmt.Errorf("%s: %w", desc, ctx.Err())
	}
}

// drain discards frames that arrived outside any request
func (s *Session) drain() {
	for {
		select {
		case stale := <-s.inbox:
			debug.Log("midi", "discarding stale frame % X", stale)
		default:
			return
		}
	}
}

func (s *Session) unwrap(frame []byte) ([]byte, error) {
	if len(frame) < len(s.header)+2 || frame[len(frame)-1] != 0xF7 {
		return nil, fmt.Errorf("%w: malformed frame of %d bytes", ErrBadResponse, len(frame))
	}
	body := frame[1 : len(frame)-1]
	if !bytes.HasPrefix(body, s.header) {
		return nil, fmt.Errorf("%w: header % X", ErrBadResponse, body[:len(s.header)])
	}
	return body[len(s.header):], nil
}

// Close stops listening and releases the ports of an opened session
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closer == nil {
		return nil
	}
	err := s.closer()
	s.closer = nil
	return err
}

// Open connects to the named input and output ports. A MIDI driver must be
// registered by the caller.
func Open(inName, outName string, header []byte, timeout time.Duration) (*Session, error) {
	in, err := midi.FindInPort(inName)
	if err != nil {
		return nil, fmt.Errorf("input port %q not found, available: %v", inName, inPortNames(midi.GetInPorts()))
	}
	out, err := midi.FindOutPort(outName)
	if err != nil {
		return nil, fmt.Errorf("output port %q not found, available: %v", outName, outPortNames(midi.GetOutPorts()))
	}

	sendMsg, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("failed to open output port %q: %w", outName, err)
	}

	s := NewSession(func(b []byte) error {
		return sendMsg(midi.Message(b))
	}, header, timeout)

	stop, err := midi.ListenTo(in, s.Deliver, midi.UseSysEx(), midi.SysExBufferSize(2048))
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to listen on input port %q: %w", inName, err)
	}

	s.closer = func() error {
		stop()
		if err := in.Close(); err != nil {
			return err
		}
		return out.Close()
	}
	debug.Log("midi", "opened in=%q out=%q", in.String(), out.String())
	return s, nil
}

// ListPorts returns the names of the available input and output ports
func ListPorts() (ins, outs []string) {
	return inPortNames(midi.GetInPorts()), outPortNames(midi.GetOutPorts())
}

func inPortNames(ports midi.InPorts) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names
}

func outPortNames(ports midi.OutPorts) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.String())
	}
	return names
}
