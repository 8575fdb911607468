package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"safechat/internal/util/memzero"
)

const (
	// The current supported version of the vault format stored on disk.
	vaultFormatVersion = 1
	vaultFilename      = "vault.json"
	canary             = "safechat-vault"
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or a
	// sealed file has been modified.
	ErrWrongPassphrase = errors.New("store: wrong passphrase or corrupted data")
	// ErrVaultClosed is returned after Close.
	ErrVaultClosed = errors.New("store: vault closed")
)

// ScryptParams are the tunables of passphrase key derivation.
type ScryptParams struct {
	N, R, P int
}

// DefaultScryptParams returns the parameters used for new vaults.
func DefaultScryptParams() ScryptParams { return ScryptParams{N: 1 << 15, R: 8, P: 1} }

// vaultFile is the on-disk JSON structure holding the KDF parameters.
type vaultFile struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Canary []byte `json:"canary"`
}

// Vault seals files with a key derived from the passphrase.
type Vault struct {
	key []byte
}

// OpenVault derives the vault key for dir, creating the vault with params on
// first use. Existing vaults keep the parameters they were created with.
func OpenVault(dir, passphrase string, params ScryptParams) (*Vault, error) {
	path := filepath.Join(dir, vaultFilename)
	var vf vaultFile
	b, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return createVault(path, passphrase, params)
	}
	if err := json.Unmarshal(b, &vf); err != nil {
		return nil, fmt.Errorf("read vault: %w", err)
	}
	if vf.V > vaultFormatVersion {
		return nil, fmt.Errorf("unsupported vault version %d", vf.V)
	}
	v, err := deriveVault(passphrase, vf.Salt, ScryptParams{N: vf.N, R: vf.R, P: vf.P})
	if err != nil {
		return nil, err
	}
	pt, err := v.open(vf.Canary, []byte(vaultFilename))
	if err != nil || string(pt) != canary {
		v.Close()
		return nil, ErrWrongPassphrase
	}
	return v, nil
}

func createVault(path, passphrase string, params ScryptParams) (*Vault, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	v, err := deriveVault(passphrase, salt[:], params)
	if err != nil {
		return nil, err
	}
	c, err := v.seal([]byte(canary), []byte(vaultFilename))
	if err != nil {
		return nil, err
	}
	vf := vaultFile{V: vaultFormatVersion, Salt: salt[:], N: params.N, R: params.R, P: params.P, Canary: c}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(vf, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeFile(path, b, 0o600); err != nil {
		return nil, err
	}
	return v, nil
}

func deriveVault(passphrase string, salt []byte, p ScryptParams) (*Vault, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	return &Vault{key: key}, nil
}

// Close wipes the vault key.
func (v *Vault) Close() {
	memzero.Zero(v.key)
	v.key = nil
}

// seal encrypts raw with a random nonce; the file name is bound as
// associated data so sealed files cannot be swapped.
func (v *Vault) seal(raw, name []byte) ([]byte, error) {
	if v.key == nil {
		return nil, ErrVaultClosed
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(raw)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, raw, name), nil
}

func (v *Vault) open(ct, name []byte) ([]byte, error) {
	if v.key == nil {
		return nil, ErrVaultClosed
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}
	if len(ct) < aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	pt, err := aead.Open(nil, ct[:aead.NonceSize()], ct[aead.NonceSize():], name)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// readSealedJSON reads and opens path into out; a missing file is not an
// error.
func (v *Vault) readSealedJSON(path string, out any) error {
	b, err := readFile(path)
	if err != nil || b == nil {
		return err
	}
	pt, err := v.open(b, []byte(filepath.Base(path)))
	if err != nil {
		return err
	}
	defer memzero.Zero(pt)
	return json.Unmarshal(pt, out)
}

// writeSealedJSON seals v as JSON and writes it atomically.
func (v *Vault) writeSealedJSON(path string, val any) error {
	pt, err := json.Marshal(val)
	if err != nil {
		return err
	}
	defer memzero.Zero(pt)
	ct, err := v.seal(pt, []byte(filepath.Base(path)))
	if err != nil {
		return err
	}
	return writeFile(path, ct, 0o600)
}
