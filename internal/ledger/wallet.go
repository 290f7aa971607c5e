package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Identity struct {
	Label       string      `yaml:"label"`
	MSPID       string      `yaml:"mspId"`
	Type        string      `yaml:"type"`
	Credentials Credentials `yaml:"credentials"`
}

type Credentials struct {
	Certificate string `yaml:"certificate"`
	PrivateKey  string `yaml:"privateKey"`
}

// Wallet is a directory credential store holding one <label>.id.yaml file per identity.
type Wallet struct {
	dir string
}

func NewFileWallet(dir string) *Wallet {
	return &Wallet{dir: dir}
}

func (w *Wallet) path(label string) string {
	return filepath.Join(w.dir, label+".id.yaml")
}

func (w *Wallet) Get(label string) (Identity, error) {
	data, err := os.ReadFile(w.path(label))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Identity{}, fmt.Errorf("%w: %s", ErrIdentityNotFound, label)
		}
		return Identity{}, err
	}
	var id Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("decode identity %s: %w", label, err)
	}
	if id.Label == "" {
		id.Label = label
	}
	return id, nil
}

func (w *Wallet) Put(id Identity) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(w.path(id.Label), data, 0o600)
}
