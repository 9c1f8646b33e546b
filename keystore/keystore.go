// Package keystore encrypts private keys into Web3 Secret Storage (version 3)
// JSON files and decrypts them back.
//
// Files are written with the pbkdf2 KDF and aes-128-ctr. Decryption also
// accepts scrypt files as produced by geth and most wallets. The MAC is
// verified before any key material is decrypted.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	"github.com/ABT-Tech-Limited/evmkit/keccak"
	"github.com/ABT-Tech-Limited/evmkit/signer"
	"github.com/ABT-Tech-Limited/evmkit/types"
)

var (
	// ErrCorruptedKeystore is returned when the MAC does not match, which
	// means either a wrong password or a tampered file.
	ErrCorruptedKeystore = errors.New("keystore: mac mismatch (wrong password or corrupted file)")
	// ErrUnsupported is returned for versions, ciphers or KDFs this package
	// does not implement.
	ErrUnsupported = errors.New("keystore: unsupported format")
	// ErrInvalidParams is returned for malformed or out-of-range parameters.
	ErrInvalidParams = errors.New("keystore: invalid parameters")
)

const (
	Version = 3

	// DefaultIterations is the pbkdf2 round count used by Encrypt.
	DefaultIterations = 262144

	cipherName = "aes-128-ctr"
	kdfPBKDF2  = "pbkdf2"
	kdfScrypt  = "scrypt"
	prfSHA256  = "hmac-sha256"
	dkLen      = 32
	saltLen    = 32
	ivLen      = aes.BlockSize

	// upper bounds on decryption work, well above any wallet default
	maxIterations = 10_000_000
	maxDKLen      = 64
	maxScryptN    = 1 << 20
	maxScryptR    = 32
	maxScryptP    = 16

	// 128*r*N bytes; geth's standard n=262144 r=8 is exactly this
	maxScryptMemory = 256 << 20
)

// File is the JSON envelope of a version 3 keystore.
type File struct {
	Crypto     Crypto `json:"crypto"`
	RawAddress string `json:"address"`
	ID         string `json:"id,omitempty"`
	Version    int    `json:"version"`
}

// Crypto is the "crypto" section of a keystore file.
type Crypto struct {
	Cipher       string       `json:"cipher"`
	CipherParams CipherParams `json:"cipherparams"`
	CipherText   string       `json:"ciphertext"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

// CipherParams holds the AES-CTR initialization vector.
type CipherParams struct {
	IV string `json:"iv"`
}

// KDFParams covers both pbkdf2 (c, prf) and scrypt (n, r, p).
type KDFParams struct {
	C     int    `json:"c,omitempty"`
	DKLen int    `json:"dklen"`
	N     int    `json:"n,omitempty"`
	P     int    `json:"p,omitempty"`
	PRF   string `json:"prf,omitempty"`
	R     int    `json:"r,omitempty"`
	Salt  string `json:"salt"`
}

// Address returns the address recorded in the file.
func (f *File) Address() (types.Address, error) {
	return types.ParseAddress(f.RawAddress)
}

// Parse decodes a keystore file without decrypting it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("keystore: decode json: %w", err)
	}
	if f.Version != Version {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupported, f.Version)
	}
	return &f, nil
}

// Params controls encryption. Zero Salt or IV are replaced with random
// bytes; zero Iterations means DefaultIterations.
type Params struct {
	Iterations int
	Salt       []byte
	IV         []byte
}

// Encrypt encrypts a raw private key with the default round count. A nil
// salt or iv is drawn from crypto/rand.
func Encrypt(key []byte, password string, salt, iv []byte) ([]byte, error) {
	return EncryptWithParams(key, password, Params{Salt: salt, IV: iv})
}

// EncryptWithParams encrypts a raw private key and returns the JSON file.
func EncryptWithParams(key []byte, password string, p Params) ([]byte, error) {
	f, err := encrypt(key, password, p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(f)
}

func encrypt(key []byte, password string, p Params) (*File, error) {
	addr, err := signer.PrivateKeyToAddress(key)
	if err != nil {
		return nil, err
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultIterations
	}
	if p.Iterations < 0 || p.Iterations > maxIterations {
		return nil, fmt.Errorf("%w: %d iterations", ErrInvalidParams, p.Iterations)
	}
	if p.Salt, err = randomIfEmpty(p.Salt, saltLen); err != nil {
		return nil, err
	}
	if p.IV, err = randomIfEmpty(p.IV, ivLen); err != nil {
		return nil, err
	}
	if len(p.IV) != ivLen {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrInvalidParams, ivLen)
	}

	dk := pbkdf2.Key([]byte(password), p.Salt, p.Iterations, dkLen, sha256.New)
	defer signer.ZeroBytes(dk)

	ciphertext, err := aesCTR(dk[:16], p.IV, key)
	if err != nil {
		return nil, err
	}
	mac := keccak.Sum256(dk[16:32], ciphertext)

	return &File{
		Crypto: Crypto{
			Cipher:       cipherName,
			CipherParams: CipherParams{IV: hex.EncodeToString(p.IV)},
			CipherText:   hex.EncodeToString(ciphertext),
			KDF:          kdfPBKDF2,
			KDFParams: KDFParams{
				C:     p.Iterations,
				DKLen: dkLen,
				PRF:   prfSHA256,
				Salt:  hex.EncodeToString(p.Salt),
			},
			MAC: hex.EncodeToString(mac),
		},
		RawAddress: strings.TrimPrefix(addr.Hex(), "0x"),
		ID:         uuid.NewString(),
		Version:    Version,
	}, nil
}

// Decrypt returns the raw private key held in a keystore file. A wrong
// password and a modified file both fail with ErrCorruptedKeystore.
func Decrypt(data []byte, password string) ([]byte, error) {
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return f.Decrypt(password)
}

// Decrypt returns the raw private key held in f.
func (f *File) Decrypt(password string) ([]byte, error) {
	c := f.Crypto
	if !strings.EqualFold(c.Cipher, cipherName) {
		return nil, fmt.Errorf("%w: cipher %q", ErrUnsupported, c.Cipher)
	}
	iv, err := hex.DecodeString(c.CipherParams.IV)
	if err != nil || len(iv) != ivLen {
		return nil, fmt.Errorf("%w: iv", ErrInvalidParams)
	}
	ciphertext, err := hex.DecodeString(c.CipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrInvalidParams, err)
	}
	mac, err := hex.DecodeString(c.MAC)
	if err != nil {
		return nil, fmt.Errorf("%w: mac: %v", ErrInvalidParams, err)
	}

	dk, err := deriveKey(c.KDF, c.KDFParams, password)
	if err != nil {
		return nil, err
	}
	defer signer.ZeroBytes(dk)

	if subtle.ConstantTimeCompare(keccak.Sum256(dk[16:32], ciphertext), mac) != 1 {
		return nil, ErrCorruptedKeystore
	}
	key, err := aesCTR(dk[:16], iv, ciphertext)
	if err != nil {
		return nil, err
	}

	if f.RawAddress != "" {
		want, err := f.Address()
		got, kerr := signer.PrivateKeyToAddress(key)
		if err != nil || kerr != nil || got != want {
			signer.ZeroBytes(key)
			return nil, fmt.Errorf("%w: key does not match address %q", ErrCorruptedKeystore, f.RawAddress)
		}
	}
	return key, nil
}

func deriveKey(kdf string, p KDFParams, password string) ([]byte, error) {
	salt, err := hex.DecodeString(p.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrInvalidParams, err)
	}
	if p.DKLen < dkLen || p.DKLen > maxDKLen {
		return nil, fmt.Errorf("%w: dklen %d", ErrInvalidParams, p.DKLen)
	}
	switch strings.ToLower(kdf) {
	case kdfPBKDF2:
		if p.PRF != prfSHA256 {
			return nil, fmt.Errorf("%w: prf %q", ErrUnsupported, p.PRF)
		}
		if p.C <= 0 || p.C > maxIterations {
			return nil, fmt.Errorf("%w: %d iterations", ErrInvalidParams, p.C)
		}
		return pbkdf2.Key([]byte(password), salt, p.C, p.DKLen, sha256.New), nil
	case kdfScrypt:
		if p.N <= 1 || p.N > maxScryptN || p.R <= 0 || p.R > maxScryptR ||
			p.P <= 0 || p.P > maxScryptP || 128*p.R*p.N > maxScryptMemory {
			return nil, fmt.Errorf("%w: scrypt n=%d r=%d p=%d", ErrInvalidParams, p.N, p.R, p.P)
		}
		dk, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, p.DKLen)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		return dk, nil
	default:
		return nil, fmt.Errorf("%w: kdf %q", ErrUnsupported, kdf)
	}
}

func aesCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

func randomIfEmpty(b []byte, n int) ([]byte, error) {
	if len(b) > 0 {
		return b, nil
	}
	b = make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("keystore: read random: %w", err)
	}
	return b, nil
}
