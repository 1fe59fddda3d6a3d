package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fluree/fluree-go/pkg/apperr"
	"github.com/fluree/fluree-go/pkg/constant"
	"github.com/fluree/fluree-go/pkg/mlog"
	"github.com/go-playground/validator/v10"
)

// expressBucketSuffix marks an S3 Express One Zone directory bucket; reads and
// writes against such buckets require session credentials.
const expressBucketSuffix = "--x-s3"

// credentialRefreshBuffer forces a refresh strictly before expiration.
const credentialRefreshBuffer = 30 * time.Second

// s3Client is the slice of the S3 API the store depends on.
type s3Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateSession(ctx context.Context, in *s3.CreateSessionInput, optFns ...func(*s3.Options)) (*s3.CreateSessionOutput, error)
}

// VendedCredentialsFunc fetches short-lived credentials from an opaque source
// (REST catalog, STS, static). The returned credentials must carry their
// expiration when they can expire.
type VendedCredentialsFunc func(ctx context.Context) (aws.Credentials, error)

// S3Config configures an object-store substrate.
type S3Config struct {
	Identifier string `env:"FLUREE_S3_IDENTIFIER"`
	Bucket     string `env:"FLUREE_S3_BUCKET" validate:"required"`
	Prefix     string `env:"FLUREE_S3_PREFIX"`
	Endpoint   string `env:"FLUREE_S3_ENDPOINT"`
	Region     string `env:"FLUREE_S3_REGION"`
	PathStyle  bool   `env:"FLUREE_S3_PATH_STYLE"`

	// CredentialsProvider supplies the base credentials.
	CredentialsProvider aws.CredentialsProvider `validate:"required_without=VendedCredentials"`
	// VendedCredentials, when set, replaces the base provider with a cached
	// caller-supplied fetch function.
	VendedCredentials VendedCredentialsFunc

	Logger mlog.Logger
}

// S3Store persists values as S3 objects. A bucket matching the Express One
// Zone convention transparently acquires and caches per-bucket session
// credentials. Hashes default to lowercase base32.
type S3Store struct {
	client     s3Client
	bucket     string
	prefix     string
	identifier string
	encoding   HashEncoding
	express    bool
	sessions   *sessionCache
	logger     mlog.Logger
}

// NewS3Store validates the configuration and builds the backing client.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfiguration, err, "s3 store configuration")
	}

	provider := cfg.CredentialsProvider
	if cfg.VendedCredentials != nil {
		provider = newVendedCredentialsCache(cfg.VendedCredentials, credentialRefreshBuffer)
	}

	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  provider,
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.New(opts)

	return newS3StoreWithClient(client, cfg), nil
}

func newS3StoreWithClient(client s3Client, cfg S3Config) *S3Store {
	s := &S3Store{
		client:     client,
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		identifier: cfg.Identifier,
		encoding:   EncodingBase32,
		express:    strings.HasSuffix(cfg.Bucket, expressBucketSuffix),
		logger:     cfg.Logger,
	}

	if s.identifier == "" {
		s.identifier = cfg.Bucket
	}

	if s.logger == nil {
		s.logger = &mlog.NoneLogger{}
	}

	if s.express {
		s.sessions = newSessionCache(credentialRefreshBuffer, time.Now)
	}

	return s
}

// Method implements Store.
func (s *S3Store) Method() Method { return MethodS3 }

// Identifiers implements Identifiable.
func (s *S3Store) Identifiers() map[string]struct{} {
	return map[string]struct{}{s.identifier: {}}
}

func (s *S3Store) key(path string) string {
	if s.prefix == "" {
		return path
	}

	return s.prefix + "/" + path
}

// opOptions returns per-request option functions; for Express buckets they
// swap in session credentials. Non-Express buckets use the base credentials
// unchanged.
func (s *S3Store) opOptions(ctx context.Context) ([]func(*s3.Options), error) {
	if !s.express {
		return nil, nil
	}

	creds, err := s.sessions.get(ctx, s.bucket, s.fetchSession)
	if err != nil {
		return nil, err
	}

	return []func(*s3.Options){func(o *s3.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	}}, nil
}

func (s *S3Store) fetchSession(ctx context.Context, bucket string) (aws.Credentials, error) {
	out, err := s.client.CreateSession(ctx, &s3.CreateSessionInput{Bucket: aws.String(bucket)})
	if err != nil {
		return aws.Credentials{}, apperr.Wrap(apperr.KindIOError, err, "creating express session for bucket %q", bucket)
	}

	sc := out.Credentials

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(sc.AccessKeyId),
		SecretAccessKey: aws.ToString(sc.SecretAccessKey),
		SessionToken:    aws.ToString(sc.SessionToken),
	}
	if sc.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *sc.Expiration
	}

	return creds, nil
}

// WriteBytes implements ByteStore.
func (s *S3Store) WriteBytes(ctx context.Context, path string, data []byte) error {
	optFns, err := s.opOptions(ctx)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Body:   bytes.NewReader(data),
	}, optFns...)
	if err != nil {
		return apperr.Wrap(apperr.KindIOError, err, "putting object %q", path)
	}

	return nil
}

// ReadBytes implements ByteStore. A missing key yields (nil, nil), never an error.
func (s *S3Store) ReadBytes(ctx context.Context, path string) ([]byte, error) {
	optFns, err := s.opOptions(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}, optFns...)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}

		return nil, apperr.Wrap(apperr.KindIOError, err, "getting object %q", path)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "reading object body %q", path)
	}

	return data, nil
}

// WriteContent implements ContentAddressedStore.
func (s *S3Store) WriteContent(ctx context.Context, dir string, data []byte) (*WriteResult, error) {
	hash := Digest(data, s.encoding)
	path := ContentPath(dir, hash)

	if err := s.WriteBytes(ctx, path, data); err != nil {
		return nil, err
	}

	return &WriteResult{
		Hash:    hash,
		Size:    int64(len(data)),
		Address: NewAddress(MethodS3, path).String(),
		Path:    path,
	}, nil
}

// ReadJSON implements JsonArchive.
func (s *S3Store) ReadJSON(ctx context.Context, address string, keywordize bool) (any, error) {
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

// Delete implements EraseableStore.
func (s *S3Store) Delete(ctx context.Context, address string) error {
	path, err := s.addressPath(address)
	if err != nil {
		return err
	}

	optFns, err := s.opOptions(ctx)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}, optFns...)
	if err != nil {
		return apperr.Wrap(apperr.KindIOError, err, "deleting object %q", path)
	}

	return nil
}

// Stat implements StatStore.
func (s *S3Store) Stat(ctx context.Context, address string) (*StatResult, error) {
	path, err := s.addressPath(address)
	if err != nil {
		return nil, err
	}

	optFns, err := s.opOptions(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}, optFns...)
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}

		return nil, apperr.Wrap(apperr.KindIOError, err, "heading object %q", path)
	}

	res := &StatResult{
		Size: aws.ToInt64(out.ContentLength),
		ETag: aws.ToString(out.ETag),
	}
	if out.LastModified != nil {
		res.LastModified = *out.LastModified
	}

	return res, nil
}

// ReadRange implements RangeReadableStore.
func (s *S3Store) ReadRange(ctx context.Context, address string, offset, length int64) ([]byte, error) {
	path, err := s.addressPath(address)
	if err != nil {
		return nil, err
	}

	optFns, err := s.opOptions(ctx)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	}, optFns...)
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil
		}

		return nil, apperr.Wrap(apperr.KindIOError, err, "range-getting object %q", path)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "reading ranged body %q", path)
	}

	return data, nil
}

func (s *S3Store) addressPath(address string) (string, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return "", err
	}

	if addr.Method != MethodS3 {
		return "", apperr.NewWithCode(apperr.KindInvalidAddress, constant.ErrAddressMethodMismatch, "address %q is not an s3 address", address)
	}

	return addr.Path, nil
}

// sessionCache caches Express One Zone session credentials per bucket and
// refreshes them strictly before expiration.
type sessionCache struct {
	mu      sync.Mutex
	entries map[string]aws.Credentials
	buffer  time.Duration
	now     func() time.Time
}

func newSessionCache(buffer time.Duration, now func() time.Time) *sessionCache {
	return &sessionCache{
		entries: make(map[string]aws.Credentials),
		buffer:  buffer,
		now:     now,
	}
}

func (c *sessionCache) get(ctx context.Context, bucket string, fetch func(context.Context, string) (aws.Credentials, error)) (aws.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if creds, ok := c.entries[bucket]; ok {
		if !creds.CanExpire || c.now().Before(creds.Expires.Add(-c.buffer)) {
			return creds, nil
		}
	}

	creds, err := fetch(ctx, bucket)
	if err != nil {
		return aws.Credentials{}, err
	}

	c.entries[bucket] = creds

	return creds, nil
}

// vendedCredentialsCache adapts a VendedCredentialsFunc into an
// aws.CredentialsProvider with eviction driven by the embedded expiration.
type vendedCredentialsCache struct {
	mu     sync.Mutex
	fetch  VendedCredentialsFunc
	buffer time.Duration
	now    func() time.Time
	creds  aws.Credentials
	loaded bool
}

func newVendedCredentialsCache(fetch VendedCredentialsFunc, buffer time.Duration) *vendedCredentialsCache {
	return &vendedCredentialsCache{
		fetch:  fetch,
		buffer: buffer,
		now:    time.Now,
	}
}

// Retrieve implements aws.CredentialsProvider.
func (c *vendedCredentialsCache) Retrieve(ctx context.Context) (aws.Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && (!c.creds.CanExpire || c.now().Before(c.creds.Expires.Add(-c.buffer))) {
		return c.creds, nil
	}

	creds, err := c.fetch(ctx)
	if err != nil {
		return aws.Credentials{}, apperr.Wrap(apperr.KindIOError, err, "fetching vended credentials")
	}

	c.creds = creds
	c.loaded = true

	return creds, nil
}
