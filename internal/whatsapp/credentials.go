package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/talkincode/autoaccept/internal/platform"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
)

const (
	DefaultSessionPrefix = "wa_"
	sessionDBName        = "session.db"
)

// Credentials is one owner's opened device store.
type Credentials struct {
	dir       string
	container *sqlstore.Container
	device    *store.Device
}

func (c *Credentials) Path() string { return c.dir }

func (c *Credentials) Close() error {
	if c.container == nil {
		return nil
	}
	return c.container.Close()
}

// CredentialStore keeps one sqlite device store per owner under root.
type CredentialStore struct {
	root   string
	prefix string
}

func NewCredentialStore(root, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &CredentialStore{root: root, prefix: prefix}
}

// Dir returns the session directory of the owner.
func (s *CredentialStore) Dir(ownerID int64) string {
	return filepath.Join(s.root, s.prefix+strconv.FormatInt(ownerID, 10))
}

func (s *CredentialStore) Ensure(ownerID int64) error {
	return os.MkdirAll(s.Dir(ownerID), 0o700)
}

// Load opens the owner's device store, migrating it when needed. A fresh
// device is returned when the owner never paired.
func (s *CredentialStore) Load(ctx context.Context, ownerID int64) (platform.Credentials, error) {
	dir := s.Dir(ownerID)
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(dir, sessionDBName))
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newLogger("store"))
	if err != nil {
		return nil, errors.Wrapf(err, "open session store %s", dir)
	}
	if err := container.Upgrade(ctx); err != nil {
		_ = container.Close()
		return nil, errors.Wrap(err, "upgrade session store")
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, errors.Wrap(err, "load device")
	}
	return &Credentials{dir: dir, container: container, device: device}, nil
}

func (s *CredentialStore) Delete(ownerID int64) error {
	return os.RemoveAll(s.Dir(ownerID))
}

func (s *CredentialStore) Exists(ownerID int64) bool {
	fi, err := os.Stat(s.Dir(ownerID))
	return err == nil && fi.IsDir()
}
