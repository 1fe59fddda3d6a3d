package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/fluree/fluree-go/pkg/mlog"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// FileConfig configures a filesystem-backed store.
type FileConfig struct {
	// Identifier names the logical space this store serves; defaults to the root path.
	Identifier string `env:"FLUREE_FILE_IDENTIFIER"`
	// RootPath is the directory every path is resolved under.
	RootPath string `env:"FLUREE_FILE_ROOT" validate:"required"`
	// EncryptionKey, when set, enables symmetric encryption of every stored value.
	EncryptionKey string `env:"FLUREE_FILE_ENCRYPTION_KEY"`
	// HashEncoding overrides the digest encoding; hex when unset.
	HashEncoding HashEncoding
	// Logger receives operational logging; a NoneLogger when unset.
	Logger mlog.Logger
}

// FileStore persists values under a configured root directory. Every path is
// canonicalized and confined to the root; content-addressed writes land at
// dir/<hash>.json with intermediate directories created on first write.
type FileStore struct {
	identifier string
	root       string
	encoding   HashEncoding
	cipher     *valueCipher
	logger     mlog.Logger
}

// NewFileStore validates the configuration and returns a store rooted at
// cfg.RootPath. The root is created if absent.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfiguration, err, "file store configuration")
	}

	root, err := filepath.Abs(filepath.Clean(cfg.RootPath))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfiguration, err, "resolving root path %q", cfg.RootPath)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "creating root path %q", root)
	}

	s := &FileStore{
		identifier: cfg.Identifier,
		root:       root,
		encoding:   cfg.HashEncoding,
		logger:     cfg.Logger,
	}

	if s.identifier == "" {
		s.identifier = root
	}

	if s.encoding == "" {
		s.encoding = EncodingHex
	}

	if s.logger == nil {
		s.logger = &mlog.NoneLogger{}
	}

	if cfg.EncryptionKey != "" {
		s.cipher, err = newValueCipher(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Method implements Store.
func (s *FileStore) Method() Method { return MethodFile }

// Identifiers implements Identifiable.
func (s *FileStore) Identifiers() map[string]struct{} {
	return map[string]struct{}{s.identifier: {}}
}

// resolve maps a store-relative path to an absolute path, rejecting any
// traversal outside the configured root.
func (s *FileStore) resolve(path string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(path))
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrPathOutsideRoot, "path %q escapes store root", path)
	}

	return abs, nil
}

// WriteBytes implements ByteStore. The write is atomic: bytes land in a
// temporary sibling first and are renamed into place.
func (s *FileStore) WriteBytes(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	abs, err := s.resolve(path)
	if err != nil {
		return err
	}

	if s.cipher != nil {
		data, err = s.cipher.Encrypt(data)
		if err != nil {
			return err
		}
	}

	if err := s.writeAtomic(abs, data); err != nil {
		// Missing parent directories are created once; a second failure is fatal.
		if !errors.Is(err, fs.ErrNotExist) {
			return apperr.Wrap(apperr.KindIOError, err, "writing %q", path)
		}

		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return apperr.Wrap(apperr.KindIOError, err, "creating parent of %q", path)
		}

		if err := s.writeAtomic(abs, data); err != nil {
			return apperr.Wrap(apperr.KindIOError, err, "writing %q", path)
		}
	}

	return nil
}

func (s *FileStore) writeAtomic(abs string, data []byte) error {
	tmp := abs + ".tmp." + uuid.NewString()

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	return nil
}

// ReadBytes implements ByteStore. A missing file yields (nil, nil); any other
// failure raises classified.
func (s *FileStore) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		if errors.Is(err, fs.ErrPermission) {
			return nil, apperr.Wrap(apperr.KindIOError, err, "permission denied reading %q", path)
		}

		return nil, apperr.Wrap(apperr.KindIOError, err, "reading %q", path)
	}

	if s.cipher != nil {
		data, err = s.cipher.Decrypt(data)
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}

// WriteContent implements ContentAddressedStore.
func (s *FileStore) WriteContent(ctx context.Context, dir string, data []byte) (*WriteResult, error) {
	hash := Digest(data, s.encoding)
	path := ContentPath(dir, hash)

	if err := s.WriteBytes(ctx, path, data); err != nil {
		return nil, err
	}

	return &WriteResult{
		Hash:    hash,
		Size:    int64(len(data)),
		Address: NewAddress(MethodFile, path).String(),
		Path:    path,
	}, nil
}

// ReadJSON implements JsonArchive.
func (s *FileStore) ReadJSON(ctx context.Context, address string, keywordize bool) (any, error) {
	path, err := s.addressPath(address)
	if err != nil {
		return nil, err
	}

	data, err := s.ReadBytes(ctx, path)
	if err != nil || data == nil {
		return nil, err
	}

	v, err := DecodeJSON(data, keywordize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIntegrity, err, "parsing stored JSON at %q", address)
	}

	return v, nil
}

// Delete implements EraseableStore. Deleting an absent value is a no-op.
func (s *FileStore) Delete(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.addressPath(address)
	if err != nil {
		return err
	}

	abs, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Wrap(apperr.KindIOError, err, "deleting %q", path)
	}

	return nil
}

// Stat implements StatStore.
func (s *FileStore) Stat(ctx context.Context, address string) (*StatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.addressPath(address)
	if err != nil {
		return nil, err
	}

	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, apperr.Wrap(apperr.KindIOError, err, "stating %q", path)
	}

	return &StatResult{Size: info.Size(), LastModified: info.ModTime()}, nil
}

func (s *FileStore) addressPath(address string) (string, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return "", err
	}

	if addr.Method != MethodFile {
		return "", apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrAddressMethodMismatch, "address %q is not a file address", address)
	}

	return addr.Path, nil
}
