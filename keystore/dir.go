package keystore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ABT-Tech-Limited/evmkit/account"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

// DirStorage is an account.KeyStorage over a directory of keystore files
// sharing one password. Files are named UTC--<timestamp>--<address>.
type DirStorage struct {
	dir      string
	password string
	params   Params

	mu sync.Mutex
}

var _ account.KeyStorage = (*DirStorage)(nil)

// NewDirStorage returns a DirStorage rooted at dir, creating it if needed.
// iterations is the pbkdf2 round count for new files; zero means
// DefaultIterations.
func NewDirStorage(dir, password string, iterations int) (*DirStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: create dir: %w", err)
	}
	return &DirStorage{dir: dir, password: password, params: Params{Iterations: iterations}}, nil
}

// FileName returns the conventional keystore file name for addr.
func FileName(t time.Time, addr types.Address) string {
	return fmt.Sprintf("UTC--%s--%s", t.UTC().Format("2006-01-02T15-04-05.000000000Z"), hex.EncodeToString(addr[:]))
}

// find returns the path of the newest file recorded for addr.
func (d *DirStorage) find(addr types.Address) (string, error) {
	files, err := d.scan()
	if err != nil {
		return "", err
	}
	path, ok := files[addr]
	if !ok {
		return "", account.ErrKeyNotFound
	}
	return path, nil
}

// scan maps the address field of every readable keystore file to its path.
// Files that do not parse are skipped.
func (d *DirStorage) scan() (map[types.Address]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("keystore: read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	// later names carry later timestamps and win
	sort.Strings(names)

	out := make(map[types.Address]string, len(names))
	for _, name := range names {
		path := filepath.Join(d.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		f, err := Parse(data)
		if err != nil {
			continue
		}
		addr, err := f.Address()
		if err != nil {
			continue
		}
		out[addr] = path
	}
	return out, nil
}

func (d *DirStorage) Load(_ context.Context, addr types.Address) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	path, err := d.find(addr)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}
	return Decrypt(data, d.password)
}

// Store writes a new file for addr. Older files for the same address are
// removed once the new one is in place.
func (d *DirStorage) Store(_ context.Context, addr types.Address, key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	got, err := signer.PrivateKeyToAddress(key)
	if err != nil {
		return fmt.Errorf("%w: %v", account.ErrFailedToSave, err)
	}
	if got != addr {
		return fmt.Errorf("%w: key belongs to %s, not %s", account.ErrFailedToSave, got, addr)
	}
	data, err := EncryptWithParams(key, d.password, d.params)
	if err != nil {
		return fmt.Errorf("%w: %v", account.ErrFailedToSave, err)
	}

	old, _ := d.find(addr)
	path := filepath.Join(d.dir, FileName(time.Now(), addr))
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %v", account.ErrFailedToSave, err)
	}
	if old != "" && old != path {
		_ = os.Remove(old)
	}
	return nil
}

func (d *DirStorage) Delete(_ context.Context, addr types.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	path, err := d.find(addr)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("keystore: remove %s: %w", path, err)
	}
	return nil
}

// ListAddresses returns every address with a file in the directory, in
// byte order.
func (d *DirStorage) ListAddresses(_ context.Context) ([]types.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	files, err := d.scan()
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, len(files))
	for addr := range files {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Export loads the key held for addr and encrypts it with password.
func Export(ctx context.Context, storage account.KeyStorage, addr types.Address, password string, p Params) ([]byte, error) {
	key, err := storage.Load(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer signer.ZeroBytes(key)
	return EncryptWithParams(key, password, p)
}

// Import decrypts a keystore file and stores the key in storage.
func Import(ctx context.Context, storage account.KeyStorage, data []byte, password string) (*account.Account, error) {
	key, err := Decrypt(data, password)
	if err != nil {
		return nil, err
	}
	defer signer.ZeroBytes(key)
	return account.Import(ctx, storage, key)
}
