package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/fluree/fluree-go/pkg/mlog"
)

// RemoteConfig configures a remote read-through substrate.
type RemoteConfig struct {
	// Servers is the set of server base URLs operations tunnel to.
	Servers []string `validate:"required,min=1"`

	HTTPClient *http.Client
	Logger     mlog.Logger
}

// RemoteStore tunnels reads to a configured set of servers. It keeps one
// active server and fails over on connection loss; writes are refused since
// the remote end owns mutation.
type RemoteStore struct {
	servers []string
	client  *http.Client
	logger  mlog.Logger

	mu     sync.Mutex
	active int
}

// NewRemoteStore returns a store over the given server set.
func NewRemoteStore(cfg RemoteConfig) (*RemoteStore, error) {
	if len(cfg.Servers) == 0 {
		return nil, apperr.New(apperr.KindInvalidConfiguration, "remote store requires at least one server")
	}

	s := &RemoteStore{
		servers: cfg.Servers,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}

	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}

	if s.logger == nil {
		s.logger = &mlog.NoneLogger{}
	}

	return s, nil
}

// Method implements Store.
func (s *RemoteStore) Method() Method { return MethodRemote }

func (s *RemoteStore) activeServer() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.servers[s.active]
}

func (s *RemoteStore) failover() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = (s.active + 1) % len(s.servers)
	s.logger.Warnf("remote store failing over to %s", s.servers[s.active])
}

// ReadBytes implements ByteStore. Connection loss rotates to the next server
// with exponential backoff; a resource the remote does not hold yields (nil, nil).
func (s *RemoteStore) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	var data []byte

	found := true

	op := func() error {
		server := s.activeServer()

		u := server + "/fluree/storage?resource=" + url.QueryEscape(path)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(apperr.Wrap(apperr.KindIOError, err, "building remote read request"))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			s.failover()
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			data, err = io.ReadAll(resp.Body)
			if err != nil {
				return err
			}

			return nil
		case http.StatusNotFound:
			found = false
			return nil
		default:
			return apperr.New(apperr.KindIOError, "remote read of %q returned status %d", path, resp.StatusCode)
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(len(s.servers)*2)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "remote read of %q", path)
	}

	if !found {
		return nil, nil
	}

	return data, nil
}

// WriteBytes implements ByteStore. The remote substrate is read-through only.
func (s *RemoteStore) WriteBytes(ctx context.Context, path string, data []byte) error {
	return apperr.NewWithCode(apperr.KindUnsupported, constant.ErrStoreCapability, "remote store does not accept writes")
}

// WriteContent implements ContentAddressedStore; refused like WriteBytes.
func (s *RemoteStore) WriteContent(ctx context.Context, dir string, data []byte) (*WriteResult, error) {
	return nil, apperr.NewWithCode(apperr.KindUnsupported, constant.ErrStoreCapability, "remote store does not accept writes")
}

// ReadJSON implements JsonArchive.
func (s *RemoteStore) ReadJSON(ctx context.Context, address string, keywordize bool) (any, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	if addr.Method != MethodRemote {
		return nil, apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrAddressMethodMismatch, "address %q is not a remote address", address)
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
