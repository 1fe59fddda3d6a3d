package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/fluree/fluree-go/pkg/mlog"
)

// IPFSConfig configures an IPFS HTTP API substrate.
type IPFSConfig struct {
	// Endpoint is the HTTP URL of the IPFS API; it must end in '/'.
	Endpoint string `env:"FLUREE_IPFS_ENDPOINT"`
	// IPNSDefaultKey is the key name used when publishing head pointers.
	IPNSDefaultKey string `env:"FLUREE_IPFS_IPNS_KEY"`

	HTTPClient *http.Client
	Logger     mlog.Logger
}

// IPFSStore persists content through an IPFS node: write is `add`, read is
// `cat`. Addresses resolve either directly (ipfs) or through a name-service
// lookup (ipns); pushing a head rewrites an IPNS record.
type IPFSStore struct {
	endpoint string
	ipnsKey  string
	client   *http.Client
	logger   mlog.Logger
}

// NewIPFSStore validates the endpoint and returns a store.
func NewIPFSStore(cfg IPFSConfig) (*IPFSStore, error) {
	if cfg.Endpoint == "" || !strings.HasSuffix(cfg.Endpoint, "/") {
		return nil, apperr.New(apperr.KindInvalidConfiguration, "ipfs endpoint must be an HTTP URL ending in '/', got %q", cfg.Endpoint)
	}

	s := &IPFSStore{
		endpoint: cfg.Endpoint,
		ipnsKey:  cfg.IPNSDefaultKey,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}

	if s.ipnsKey == "" {
		s.ipnsKey = "self"
	}

	if s.client == nil {
		s.client = &http.Client{Timeout: 60 * time.Second}
	}

	if s.logger == nil {
		s.logger = &mlog.NoneLogger{}
	}

	return s, nil
}

// Method implements Store.
func (s *IPFSStore) Method() Method { return MethodIPFS }

func (s *IPFSStore) api(path string, query url.Values) string {
	u := s.endpoint + "api/v0/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u
}

// add pins the data on the node and returns the content hash.
func (s *IPFSStore) add(ctx context.Context, data []byte) (string, error) {
	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "data.json")
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "building ipfs add request")
	}

	if _, err := part.Write(data); err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "building ipfs add request")
	}

	if err := mw.Close(); err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "building ipfs add request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api("add", url.Values{"pin": {"true"}}), &body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "building ipfs add request")
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "calling ipfs add")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.KindIOError, "ipfs add returned status %d", resp.StatusCode)
	}

	var out struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "decoding ipfs add response")
	}

	return out.Hash, nil
}

// cat fetches the bytes behind a content hash. An unknown hash yields (nil, nil).
func (s *IPFSStore) cat(ctx context.Context, hash string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api("cat", url.Values{"arg": {hash}}), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "building ipfs cat request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "calling ipfs cat")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusInternalServerError || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindIOError, "ipfs cat returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// resolveIPNS maps an IPNS name to the content hash it currently points at.
func (s *IPFSStore) resolveIPNS(ctx context.Context, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api("name/resolve", url.Values{"arg": {name}}), nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "building ipns resolve request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "calling ipns resolve")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.KindIOError, "ipns resolve returned status %d", resp.StatusCode)
	}

	var out struct {
		Path string `json:"Path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "decoding ipns resolve response")
	}

	return strings.TrimPrefix(out.Path, "/ipfs/"), nil
}

// PublishHead rewrites the IPNS record for the store's key to point at the
// given content hash and returns the IPNS name.
func (s *IPFSStore) PublishHead(ctx context.Context, hash string) (string, error) {
	q := url.Values{"arg": {"/ipfs/" + hash}, "key": {s.ipnsKey}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.api("name/publish", q), nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "building ipns publish request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "calling ipns publish")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.New(apperr.KindIOError, "ipns publish returned status %d", resp.StatusCode)
	}

	var out struct {
		Name string `json:"Name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Wrap(apperr.KindIOError, err, "decoding ipns publish response")
	}

	return out.Name, nil
}

// WriteContent implements ContentAddressedStore. The node's own content hash
// is the address path; the digest in the write record is still the sha2-256
// of the input so callers can verify integrity independently of the node.
func (s *IPFSStore) WriteContent(ctx context.Context, dir string, data []byte) (*WriteResult, error) {
	ipfsHash, err := s.add(ctx, data)
	if err != nil {
		return nil, err
	}

	return &WriteResult{
		Hash:    Digest(data, EncodingHex),
		Size:    int64(len(data)),
		Address: NewAddress(MethodIPFS, ipfsHash).String(),
		Path:    ipfsHash,
	}, nil
}

// WriteBytes implements ByteStore. IPFS is content-addressed only; the path
// argument is ignored beyond logging because the node names the content.
func (s *IPFSStore) WriteBytes(ctx context.Context, path string, data []byte) error {
	if _, err := s.add(ctx, data); err != nil {
		return err
	}

	s.logger.Debugf("ipfs write for path %s pinned by content hash", path)

	return nil
}

// ReadBytes implements ByteStore; path is a content hash.
func (s *IPFSStore) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	return s.cat(ctx, path)
}

// ReadJSON implements JsonArchive for both ipfs and ipns addresses.
func (s *IPFSStore) ReadJSON(ctx context.Context, address string, keywordize bool) (any, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	hash := addr.Path

	switch addr.Method {
	case MethodIPFS:
	case MethodIPNS:
		hash, err = s.resolveIPNS(ctx, hash)
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrAddressMethodMismatch, "address %q is not an ipfs/ipns address", address)
	}

	data, err := s.cat(ctx, hash)
	if err != nil || data == nil {
		return nil, err
	}

	v, err := DecodeJSON(data, keywordize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIntegrity, err, "parsing stored JSON at %q", address)
	}

	return v, nil
}

// String implements fmt.Stringer.
func (s *IPFSStore) String() string {
	return fmt.Sprintf("ipfs-store{endpoint: %s}", s.endpoint)
}
