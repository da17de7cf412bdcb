// Package platformtest provides in-memory platform fakes for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/talkincode/autoaccept/internal/platform"
)

// Call is one recorded platform call.
type Call struct {
	Method string
	Args   []string
}

// Connection is a scriptable platform.Connection.
type Connection struct {
	Self string

	mu            sync.Mutex
	calls         []Call
	handlers      map[int]platform.EventHandler
	nextHandlerID int
	connected     bool

	ConnectErr   error
	OnConnect    func() // runs at the start of Connect
	PairingCode  string
	PairingErrs  []error // consumed one per RequestPairingCode call
	ApproveErrs  map[string]error
	LeaveErr     error
	LogoutErr    error
	Metadata     map[string]*platform.GroupMetadata
	MetadataErr  error
	PanicOnGroup string
}

func NewConnection(self string) *Connection {
	return &Connection{
		Self:        self,
		handlers:    make(map[int]platform.EventHandler),
		ApproveErrs: make(map[string]error),
		Metadata:    make(map[string]*platform.GroupMetadata),
		PairingCode: "ABCD-EFGH",
	}
}

func (c *Connection) record(method string, args ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Method: method, Args: args})
}

// Calls returns recorded calls, optionally filtered by method.
func (c *Connection) Calls(methods ...string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(methods) == 0 {
		return append([]Call(nil), c.calls...)
	}
	var out []Call
	for _, call := range c.calls {
		for _, m := range methods {
			if call.Method == m {
				out = append(out, call)
			}
		}
	}
	return out
}

func (c *Connection) Connect() error {
	if c.OnConnect != nil {
		c.OnConnect()
	}
	c.record("Connect")
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Connection) Disconnect() {
	c.record("Disconnect")
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Connection) Subscribe(h platform.EventHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.handlers[id] = h
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
	}
}

// Connected reports whether the last Connect was not followed by Disconnect.
func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribers returns the number of live subscriptions.
func (c *Connection) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

// Emit delivers evt synchronously to every subscriber.
func (c *Connection) Emit(evt platform.Event) {
	c.mu.Lock()
	hs := make([]platform.EventHandler, 0, len(c.handlers))
	for i := 0; i < c.nextHandlerID; i++ {
		if h, ok := c.handlers[i]; ok {
			hs = append(hs, h)
		}
	}
	c.mu.Unlock()
	for _, h := range hs {
		h(evt)
	}
}

func (c *Connection) SelfID() string { return c.Self }

func (c *Connection) RequestPairingCode(_ context.Context, phoneNumber string) (string, error) {
	c.record("RequestPairingCode", phoneNumber)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.PairingErrs) > 0 {
		err := c.PairingErrs[0]
		c.PairingErrs = c.PairingErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return c.PairingCode, nil
}

func (c *Connection) ApproveParticipant(_ context.Context, groupID, participantID string) error {
	c.record("ApproveParticipant", groupID, participantID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ApproveErrs[participantID]
}

func (c *Connection) LeaveGroup(_ context.Context, groupID string) error {
	c.record("LeaveGroup", groupID)
	return c.LeaveErr
}

func (c *Connection) GroupMetadata(_ context.Context, groupID string) (*platform.GroupMetadata, error) {
	c.record("GroupMetadata", groupID)
	if groupID == c.PanicOnGroup && groupID != "" {
		panic("malformed group " + groupID)
	}
	if c.MetadataErr != nil {
		return nil, c.MetadataErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	meta, ok := c.Metadata[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s not found", groupID)
	}
	return meta, nil
}

func (c *Connection) Logout(context.Context) error {
	c.record("Logout")
	return c.LogoutErr
}

// Credentials is a no-op platform.Credentials.
type Credentials struct {
	Dir    string
	closed bool
}

func (c *Credentials) Path() string { return c.Dir }

func (c *Credentials) Close() error {
	c.closed = true
	return nil
}

// Dialer hands out Connections in order; NewConn builds one when the queue is empty.
type Dialer struct {
	mu      sync.Mutex
	Queue   []*Connection
	Opened  []*Connection
	OpenErr error
	Self    string
}

var ErrDial = errors.New("platformtest: dial refused")

func (d *Dialer) Open(_ context.Context, _ int64, _ platform.Credentials) (platform.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	var conn *Connection
	if len(d.Queue) > 0 {
		conn = d.Queue[0]
		d.Queue = d.Queue[1:]
	} else {
		conn = NewConnection(d.Self)
	}
	d.Opened = append(d.Opened, conn)
	return conn, nil
}

// Last returns the most recently opened connection.
func (d *Dialer) Last() *Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Opened) == 0 {
		return nil
	}
	return d.Opened[len(d.Opened)-1]
}

// Count returns the number of opened connections.
func (d *Dialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Opened)
}
