package storage

import (
	"fmt"
	"strings"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
)

// Scheme is the URI scheme every ledger address carries.
const Scheme = "fluree"

// Method identifies the storage backend an address resolves through.
type Method string

// The recognized address methods.
const (
	MethodFile         Method = "file"
	MethodMemory       Method = "memory"
	MethodIPFS         Method = "ipfs"
	MethodIPNS         Method = "ipns"
	MethodS3           Method = "s3"
	MethodLocalStorage Method = "localstorage"
	MethodRemote       Method = "remote"
)

// ParseMethod validates a method string.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodFile, MethodMemory, MethodIPFS, MethodIPNS, MethodS3, MethodLocalStorage, MethodRemote:
		return Method(s), nil
	}

	return "", apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrMalformedAddress, "unknown address method %q", s)
}

// Address identifies a commit, context, index node or head pointer. Its string
// form is fluree:<method>://<path>.
type Address struct {
	Method Method
	Path   string
}

// NewAddress builds an address from a method and a path. A leading "/" is
// stripped so the path is relative and the string form carries exactly the
// "//" after the method.
func NewAddress(method Method, path string) Address {
	path = strings.TrimPrefix(path, "/")

	return Address{Method: method, Path: path}
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return fmt.Sprintf("%s:%s://%s", Scheme, a.Method, a.Path)
}

// ParseAddress parses the string form of an address.
func ParseAddress(s string) (Address, error) {
	rest, ok := strings.CutPrefix(s, Scheme+":")
	if !ok {
		return Address{}, apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrMalformedAddress, "address %q does not start with %q", s, Scheme+":")
	}

	method, path, ok := strings.Cut(rest, "://")
	if !ok {
		return Address{}, apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrMalformedAddress, "address %q is missing '://'", s)
	}

	m, err := ParseMethod(method)
	if err != nil {
		return Address{}, err
	}

	if path == "" {
		return Address{}, apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrMalformedAddress, "address %q has an empty path", s)
	}

	return Address{Method: m, Path: path}, nil
}

// CommitDir returns the content-addressed directory for commits of a branch.
func CommitDir(alias, branch string) string {
	return alias + "/" + branch + "/commits"
}

// ContextDir returns the content-addressed directory for contexts of a branch.
func ContextDir(alias, branch string) string {
	return alias + "/" + branch + "/contexts"
}

// IndexDir returns the content-addressed directory for nodes of one index of a branch.
func IndexDir(alias, branch, idx string) string {
	return alias + "/" + branch + "/index/" + idx
}

// HeadPath returns the mutable head-pointer path of a branch.
func HeadPath(alias, branch string) string {
	return alias + "/" + branch + "/head"
}

// AliasOf extracts the <alias> segment of an in-ledger path. It accepts both
// content paths and head paths.
func AliasOf(path string) (string, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return "", apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrMalformedAddress, "path %q is not inside a ledger", path)
	}

	return parts[0], nil
}
