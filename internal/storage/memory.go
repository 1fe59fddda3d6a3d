package storage

import (
	"context"
	"sync"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
)

// MemoryStore is a process-wide associative store guarded for concurrent
// access. It carries every storage capability except range reads and is the substrate of choice
// for tests and ephemeral ledgers.
type MemoryStore struct {
	mu         sync.RWMutex
	values     map[string][]byte
	identifier string
	encoding   HashEncoding
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(identifier string) *MemoryStore {
	if identifier == "" {
		identifier = "memory"
	}

	return &MemoryStore{
		values:     make(map[string][]byte),
		identifier: identifier,
		encoding:   EncodingHex,
	}
}

// Method implements Store.
func (s *MemoryStore) Method() Method { return MethodMemory }

// Identifiers implements Identifiable.
func (s *MemoryStore) Identifiers() map[string]struct{} {
	return map[string]struct{}{s.identifier: {}}
}

// WriteBytes implements ByteStore.
func (s *MemoryStore) WriteBytes(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.values[path] = cp
	s.mu.Unlock()

	return nil
}

// ReadBytes implements ByteStore. A missing key yields (nil, nil).
func (s *MemoryStore) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.values[path]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	return cp, nil
}

// WriteContent implements ContentAddressedStore.
func (s *MemoryStore) WriteContent(ctx context.Context, dir string, data []byte) (*WriteResult, error) {
	hash := Digest(data, s.encoding)
	path := ContentPath(dir, hash)

	if err := s.WriteBytes(ctx, path, data); err != nil {
		return nil, err
	}

	return &WriteResult{
		Hash:    hash,
		Size:    int64(len(data)),
		Address: NewAddress(MethodMemory, path).String(),
		Path:    path,
	}, nil
}

// ReadJSON implements JsonArchive.
func (s *MemoryStore) ReadJSON(ctx context.Context, address string, keywordize bool) (any, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	if addr.Method != MethodMemory {
		return nil, apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrAddressMethodMismatch, "address %q is not a memory address", address)
	}

	data, err := s.ReadBytes(ctx, addr.Path)
	if err != nil || data == nil {
		return nil, err
	}

	v, err := DecodeJSON(data, keywordize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIntegrity, err, "parsing stored JSON at %q", address)
	}

	return v, nil
}

// Delete implements EraseableStore.
func (s *MemoryStore) Delete(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr, err := ParseAddress(address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.values, addr.Path)
	s.mu.Unlock()

	return nil
}

// Stat implements StatStore.
func (s *MemoryStore) Stat(ctx context.Context, address string) (*StatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.values[addr.Path]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	return &StatResult{Size: int64(len(data))}, nil
}
