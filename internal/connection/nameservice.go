package connection

import (
	"context"
	"strings"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"

	"github.com/fluree/fluree-go/internal/storage"
)

// NameService maps between aliases and addresses and owns the mutable head
// pointer of each branch. Push is the only mutation.
type NameService interface {
	// Address returns the head address for an alias and branch.
	Address(alias, branch string) (string, error)
	// Alias extracts the alias from an address.
	Alias(address string) (string, error)
	// Lookup reads a head pointer and returns the commit address it holds.
	Lookup(ctx context.Context, headAddress string) (string, error)
	// Exists reports whether any value is stored at the address.
	Exists(ctx context.Context, address string) (bool, error)
	// Push points a head at a commit that must already exist in storage and
	// returns the resolved head address. Concurrent pushes to one head race
	// with last-writer-wins semantics.
	Push(ctx context.Context, headPath, commitAddress string) (string, error)
}

// StorageNameService is a NameService over a byte store; the head pointer is
// a file whose payload is the bare commit address string.
type StorageNameService struct {
	store storage.Store
}

// NewStorageNameService returns a name service bound to the store.
func NewStorageNameService(store storage.Store) *StorageNameService {
	return &StorageNameService{store: store}
}

// Address implements NameService.
func (ns *StorageNameService) Address(alias, branch string) (string, error) {
	if alias == "" {
		return "", apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrMalformedAddress, "alias is empty")
	}

	if branch == "" {
		branch = "main"
	}

	return storage.NewAddress(ns.store.Method(), storage.HeadPath(alias, branch)).String(), nil
}

// Alias implements NameService.
func (ns *StorageNameService) Alias(address string) (string, error) {
	addr, err := storage.ParseAddress(address)
	if err != nil {
		return "", err
	}

	return storage.AliasOf(addr.Path)
}

// Lookup implements NameService. A missing head raises NotFound: a head that
// was asked for by address is expected to exist.
func (ns *StorageNameService) Lookup(ctx context.Context, headAddress string) (string, error) {
	addr, err := storage.ParseAddress(headAddress)
	if err != nil {
		return "", err
	}

	data, err := ns.store.ReadBytes(ctx, addr.Path)
	if err != nil {
		return "", err
	}

	if data == nil {
		return "", apperr.NewWithCode(apperr.KindNotFound, constant.ErrHeadCommitMissing, "head %q not found", headAddress)
	}

	return strings.TrimSpace(string(data)), nil
}

// Exists implements NameService.
func (ns *StorageNameService) Exists(ctx context.Context, address string) (bool, error) {
	addr, err := storage.ParseAddress(address)
	if err != nil {
		return false, err
	}

	data, err := ns.store.ReadBytes(ctx, addr.Path)
	if err != nil {
		return false, err
	}

	return data != nil, nil
}

// Push implements NameService. The referenced commit is verified before the
// head is rewritten so a head can never point at a missing commit.
func (ns *StorageNameService) Push(ctx context.Context, headPath, commitAddress string) (string, error) {
	commit, err := storage.ParseAddress(commitAddress)
	if err != nil {
		return "", err
	}

	data, err := ns.store.ReadBytes(ctx, commit.Path)
	if err != nil {
		return "", err
	}

	if data == nil {
		return "", apperr.NewWithCode(apperr.KindNotFound, constant.ErrHeadCommitMissing, "commit %q does not exist, refusing head push", commitAddress)
	}

	if err := ns.store.WriteBytes(ctx, headPath, []byte(commitAddress)); err != nil {
		return "", err
	}

	return storage.NewAddress(ns.store.Method(), headPath).String(), nil
}
