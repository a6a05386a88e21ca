// Package storage presigns attachment uploads and downloads against an S3
// compatible bucket.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"student-helpdesk/internal/config"
	"student-helpdesk/internal/validate"
)

var ErrInvalidKey = errors.New("invalid attachment key")

// Presigner is the subset of *s3.PresignClient used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Upload struct {
	Key         string    `json:"storagePath"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Store struct {
	presign Presigner
	bucket  string
	ttl     time.Duration
}

func NewStore(p Presigner, bucket string, ttl time.Duration) *Store {
	return &Store{presign: p, bucket: bucket, ttl: ttl}
}

// New builds a Store from configuration. It returns nil when no bucket is set.
func New(ctx context.Context, cfg config.S3Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsConf, func(o *s3.Options) {
		// LocalStack / MinIO need path-style addressing.
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewStore(s3.NewPresignClient(client), cfg.Bucket, cfg.PresignTTL), nil
}

// NewKey returns attachments/<owner>/<ulid>/<sanitized name>.
func NewKey(owner, filename string) string {
	return validate.StoragePrefix + owner + "/" + ulid.Make().String() + "/" + sanitizeName(filename)
}

func (s *Store) PresignUpload(ctx context.Context, owner, filename, contentType string) (*Upload, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := NewKey(owner, filename)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"owner": owner},
	}, func(o *s3.PresignOptions) { o.Expires = s.ttl })
	if err != nil {
		return nil, err
	}
	return &Upload{Key: key, URL: req.URL, ContentType: contentType, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func (s *Store) PresignDownload(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, validate.StoragePrefix) || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = s.ttl })
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// sanitizeName keeps the base name and replaces characters unsafe in keys.
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), ".")
	if s == "" {
		return "file"
	}
	return s
}
