package objectstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	"github.com/yndnr/pageserver-go/internal/core/domain"
)

// S3Store implements Store on an S3-compatible bucket.
//
// Each key becomes one object named prefix + "/" + hex(key). Lower-case
// hex preserves byte order, so ListObjectsV2 returns keys in Store order.
type S3Store struct {
	client  *s3.Client
	bucket  string
	prefix  string
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool

	gets    atomic.Uint64
	puts    atomic.Uint64
	deletes atomic.Uint64
}

// OpenS3 connects to the bucket, creating it when cfg.CreateBucket is set.
func OpenS3(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("s3: bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// S3-compatible servers commonly reject the newer default
		// integrity checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	s := &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}

	if err := s.ensureBucket(ctx, cfg.CreateBucket); err != nil {
		return nil, err
	}

	logger.Info("s3 object store opened",
		"endpoint", cfg.Endpoint,
		"bucket", cfg.Bucket,
		"prefix", s.prefix)
	return s, nil
}

func (s *S3Store) ensureBucket(ctx context.Context, create bool) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !create || !isNotFound(err) {
		return fmt.Errorf("s3: head bucket %s: %w", s.bucket, err)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3: create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created s3 bucket", "bucket", s.bucket)
	return nil
}

// objectKey maps a store key (or key prefix) to its object name.
func (s *S3Store) objectKey(key []byte) string {
	enc := hex.EncodeToString(key)
	if s.prefix == "" {
		return enc
	}
	return s.prefix + "/" + enc
}

func (s *S3Store) decodeKey(objectKey string) ([]byte, error) {
	if s.prefix != "" {
		objectKey = strings.TrimPrefix(objectKey, s.prefix+"/")
	}
	return hex.DecodeString(objectKey)
}

func (s *S3Store) acquire(ctx context.Context) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return domain.ErrStoreClosed
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.mu.RUnlock()
		return err
	}
	return nil
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	s.gets.Add(1)
	return s.getObject(ctx, s.objectKey(key))
}

func (s *S3Store) getObject(ctx context.Context, objectKey string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("s3: get %s: %w", objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s: %w", objectKey, err)
	}
	return data, nil
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, key, value []byte) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()
	s.puts.Add(1)

	objectKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", objectKey, err)
	}
	return nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, key []byte) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()
	s.deletes.Add(1)

	objectKey := s.objectKey(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3: delete %s: %w", objectKey, err)
	}
	return nil
}

// Scan implements Store. Objects are fetched one at a time as the
// listing is consumed.
func (s *S3Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.mu.RUnlock()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})
	for paginator.HasMorePages() {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3: list: %w", err)
		}
		for _, obj := range page.Contents {
			objectKey := aws.ToString(obj.Key)
			key, err := s.decodeKey(objectKey)
			if err != nil {
				s.logger.Warn("skipping foreign object", "key", objectKey)
				continue
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			value, err := s.getObject(ctx, objectKey)
			if errors.Is(err, domain.ErrKeyNotFound) {
				// Deleted between list and get.
				continue
			}
			if err != nil {
				return err
			}
			if !fn(key, value) {
				return nil
			}
		}
	}
	return nil
}

// Stats implements Store. Bucket size is not reported.
func (s *S3Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Stats{}, domain.ErrStoreClosed
	}
	return Stats{
		Driver:  DriverS3,
		Gets:    s.gets.Load(),
		Puts:    s.puts.Load(),
		Deletes: s.deletes.Load(),
	}, nil
}

// Close marks the store closed. The HTTP client needs no cleanup.
func (s *S3Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == 404
}
