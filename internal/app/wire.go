package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"safechat/internal/crypto"
	"safechat/internal/lockfile"
	"safechat/internal/protocol/ratchet"
	contactsvc "safechat/internal/services/contact"
	messagesvc "safechat/internal/services/message"
	"safechat/internal/services/order"
	"safechat/internal/store"
	"safechat/internal/store/msgdb"
	"safechat/internal/util/clock"
)

const messagesDir = "messages"

// Wire bundles all stores, engines and services for the CLI.
type Wire struct {
	Contacts *contactsvc.Service
	Messages *messagesvc.Service
	Cipher   crypto.Engine

	lock  *lockfile.Lock
	vault *store.Vault
	db    *msgdb.DB
}

// NewWire locks cfg.Home and constructs the dependency graph. Close releases
// everything.
func NewWire(ctx context.Context, cfg Config, passphrase string) (_ *Wire, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}

	w := &Wire{}
	defer func() {
		if err != nil {
			_ = w.Close()
		}
	}()

	if w.lock, err = lockfile.Acquire(ctx, cfg.Home); err != nil {
		return nil, err
	}
	if w.vault, err = store.OpenVault(cfg.Home, passphrase, cfg.ScryptParams()); err != nil {
		return nil, err
	}
	if w.db, err = msgdb.Open(filepath.Join(cfg.Home, messagesDir)); err != nil {
		return nil, err
	}

	alg, err := crypto.ParseAlgorithm(cfg.Cipher)
	if err != nil {
		return nil, err
	}
	if w.Cipher, err = crypto.NewEngine(alg, crypto.WithChunkSize(cfg.StreamChunkSize)); err != nil {
		return nil, err
	}

	// File-based stores
	conversations := store.NewConversationFileStore(cfg.Home, w.vault)
	keys := store.NewKeyFileStore(cfg.Home, w.vault)
	contacts := store.NewContactFileStore(cfg.Home, w.vault)

	// Protocol
	kr, err := ratchet.NewKeyRepository(crypto.NewKeyExchange(), crypto.NewKeyDerivation(), ratchet.DefaultSalts())
	if err != nil {
		return nil, err
	}
	engine := ratchet.NewEngine(kr, conversations, ratchet.NewLocker())

	// High-level services
	repo := messagesvc.NewCryptoRepository(w.Cipher, keys)
	w.Contacts = contactsvc.NewService(engine, repo, contacts, keys, w.db)
	w.Messages = messagesvc.NewService(messagesvc.Deps{
		Ratchet:  engine,
		Crypto:   repo,
		Order:    order.New(w.db, repo),
		Messages: w.db,
		Queue:    w.db,
		Keys:     keys,
		Clock:    clock.System{},
	})
	return w, nil
}

// Close releases the database, the vault key and the home lock.
func (w *Wire) Close() error {
	var errs []error
	if w.db != nil {
		errs = append(errs, w.db.Close())
		w.db = nil
	}
	if w.vault != nil {
		w.vault.Close()
		w.vault = nil
	}
	if w.lock != nil {
		errs = append(errs, w.lock.Release())
		w.lock = nil
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
