// Package whatsapp adapts whatsmeow to the platform contract: one client per
// owner, backed by a per-owner sqlite device store.
package whatsapp

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"github.com/pkg/errors"
	"github.com/talkincode/autoaccept/internal/platform"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
)

const pairClientName = "Chrome (Linux)"

var (
	_ platform.Dialer      = (*Dialer)(nil)
	_ platform.Connection  = (*Connection)(nil)
	_ platform.Credentials = (*Credentials)(nil)
)

// Dialer builds whatsmeow-backed connections.
type Dialer struct {
	// PrintQR echoes login challenges to QROutput, for local development.
	PrintQR  bool
	QROutput io.Writer
}

func (d *Dialer) Open(_ context.Context, ownerID int64, creds platform.Credentials) (platform.Connection, error) {
	c, ok := creds.(*Credentials)
	if !ok || c.device == nil {
		return nil, errors.Errorf("whatsapp: unsupported credentials %T", creds)
	}
	client := whatsmeow.NewClient(c.device, newLogger("client"))
	client.EnableAutoReconnect = false

	out := d.QROutput
	if out == nil {
		out = os.Stdout
	}
	conn := &Connection{
		client:   client,
		ownerID:  ownerID,
		handlers: make(map[int]platform.EventHandler),
	}
	if d.PrintQR {
		conn.qrOut = out
	}
	client.AddEventHandler(conn.handle)
	return conn, nil
}

// Connection is a platform.Connection over one whatsmeow client. It keeps
// its own subscriber list so that subscribers may unsubscribe from inside an
// event callback.
type Connection struct {
	client  *whatsmeow.Client
	ownerID int64
	qrOut   io.Writer

	mu       sync.Mutex
	handlers map[int]platform.EventHandler
	order    []int
	next     int
	stopQR   context.CancelFunc
}

func (c *Connection) handle(evt interface{}) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Errorf("whatsapp: event handler panic for owner %d: %v", c.ownerID, err)
		}
	}()
	for _, pe := range translate(evt) {
		c.publish(pe)
	}
}

func (c *Connection) publish(evt platform.Event) {
	for _, h := range c.subscribers() {
		h(evt)
	}
}

// watchQR forwards the rotating login codes until the channel closes.
func (c *Connection) watchQR(items <-chan whatsmeow.QRChannelItem) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Errorf("whatsapp: qr watcher panic for owner %d: %v", c.ownerID, err)
		}
	}()
	for item := range items {
		if item.Event == qrEventCode && c.qrOut != nil {
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, c.qrOut)
		}
		if update, ok := qrUpdate(item); ok {
			c.publish(update)
		}
	}
}

func (c *Connection) subscribers() []platform.EventHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	hs := make([]platform.EventHandler, 0, len(c.order))
	for _, id := range c.order {
		if h, ok := c.handlers[id]; ok {
			hs = append(hs, h)
		}
	}
	return hs
}

func (c *Connection) Subscribe(h platform.EventHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.handlers[id] = h
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Connect opens the socket. An unpaired device first gets a QR channel so
// whatsmeow rotates the login codes and reports when they run out.
func (c *Connection) Connect() error {
	if c.client.Store.ID == nil {
		ctx, cancel := context.WithCancel(context.Background())
		items, err := c.client.GetQRChannel(ctx)
		if err != nil {
			cancel()
			return errors.Wrap(err, "open qr channel")
		}
		c.mu.Lock()
		c.stopQR = cancel
		c.mu.Unlock()
		go c.watchQR(items)
	}
	return c.client.Connect()
}

func (c *Connection) Disconnect() {
	c.cancelQR()
	c.client.Disconnect()
}

func (c *Connection) cancelQR() {
	c.mu.Lock()
	cancel := c.stopQR
	c.stopQR = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Connection) SelfID() string {
	if c.client.Store == nil || c.client.Store.ID == nil {
		return ""
	}
	return c.client.Store.ID.String()
}

func (c *Connection) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	return c.client.PairPhone(ctx, phoneNumber, true, whatsmeow.PairClientChrome, pairClientName)
}

func (c *Connection) ApproveParticipant(ctx context.Context, groupID, participantID string) error {
	group, err := types.ParseJID(groupID)
	if err != nil {
		return errors.Wrap(err, "parse group id")
	}
	participant, err := types.ParseJID(participantID)
	if err != nil {
		return errors.Wrap(err, "parse participant id")
	}
	_, err = c.client.UpdateGroupRequestParticipants(ctx, group, []types.JID{participant}, whatsmeow.ParticipantChangeApprove)
	return err
}

func (c *Connection) LeaveGroup(ctx context.Context, groupID string) error {
	group, err := types.ParseJID(groupID)
	if err != nil {
		return errors.Wrap(err, "parse group id")
	}
	return c.client.LeaveGroup(ctx, group)
}

func (c *Connection) GroupMetadata(ctx context.Context, groupID string) (*platform.GroupMetadata, error) {
	group, err := types.ParseJID(groupID)
	if err != nil {
		return nil, errors.Wrap(err, "parse group id")
	}
	info, err := c.client.GetGroupInfo(ctx, group)
	if err != nil {
		return nil, err
	}
	return groupMetadata(info), nil
}

func (c *Connection) Logout(ctx context.Context) error {
	c.cancelQR()
	return c.client.Logout(ctx)
}

// groupMetadata converts whatsmeow group info. Participants of hidden-user
// groups are reported by phone number when whatsmeow knows it.
func groupMetadata(info *types.GroupInfo) *platform.GroupMetadata {
	meta := &platform.GroupMetadata{
		ID:           info.JID.String(),
		Subject:      info.Name,
		Participants: make([]platform.GroupParticipant, 0, len(info.Participants)),
	}
	for _, p := range info.Participants {
		jid := p.JID
		if jid.Server == types.HiddenUserServer && !p.PhoneNumber.IsEmpty() {
			jid = p.PhoneNumber
		}
		rank := platform.RankMember
		switch {
		case p.IsSuperAdmin:
			rank = platform.RankSuperAdmin
		case p.IsAdmin:
			rank = platform.RankAdmin
		}
		meta.Participants = append(meta.Participants, platform.GroupParticipant{ID: jid.String(), Rank: rank})
	}
	return meta
}
