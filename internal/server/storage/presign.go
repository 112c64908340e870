// Package storage issues time-limited, signed object-storage grants.
// A grant is a presigned S3 URL the client uses to move bytes directly
// against the storage backend; the server never mediates the transfer.
// Issued grants are not tracked: validity is enforced entirely by the
// backend's signature check, so several valid grants for one key may
// coexist until they expire.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/snapvault/snapvault/internal/common"
)

// Grant TTL bounds, in minutes.
const (
	MinTTLMinutes = 1
	MaxTTLMinutes = 1440
)

// Seams for tests: the AWS SDK entry points used by the issuer.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in, optFns...)
	}
)

// Config holds the S3-compatible backend settings.
type Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// Grant is a signed URL plus its expiry instant.
type Grant struct {
	URL       string
	ExpiresAt time.Time
}

// Issuer produces presigned upload/download grants against one bucket.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer constructs an Issuer for the given backend settings.
func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

func (i *Issuer) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(i.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			i.cfg.AccessKey,
			i.cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorStorageUnavailable, err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if i.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(i.cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func validateTTL(ttlMinutes int) error {
	if ttlMinutes < MinTTLMinutes || ttlMinutes > MaxTTLMinutes {
		return fmt.Errorf("%w: ttl must be between %d and %d minutes", common.ErrorValidation, MinTTLMinutes, MaxTTLMinutes)
	}
	return nil
}

// GrantUpload issues a presigned PUT URL for key, valid for ttlMinutes.
func (i *Issuer) GrantUpload(ctx context.Context, key, contentType string, ttlMinutes int) (*Grant, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: storage key must not be empty", common.ErrorValidation)
	}
	if strings.TrimSpace(contentType) == "" {
		return nil, fmt.Errorf("%w: content type must not be empty", common.ErrorValidation)
	}
	if err := validateTTL(ttlMinutes); err != nil {
		return nil, err
	}

	client, err := i.getClient(ctx)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(ttlMinutes) * time.Minute
	req, err := presignPutObject(newS3PresignClient(client), ctx, &s3.PutObjectInput{
		Bucket:      aws.String(i.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("%w: presign put: %v", common.ErrorStorageUnavailable, err)
	}

	return &Grant{URL: req.URL, ExpiresAt: i.now().UTC().Add(ttl)}, nil
}

// GrantDownload issues a presigned GET URL for key, valid for ttlMinutes.
func (i *Issuer) GrantDownload(ctx context.Context, key string, ttlMinutes int) (*Grant, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%w: storage key must not be empty", common.ErrorValidation)
	}
	if err := validateTTL(ttlMinutes); err != nil {
		return nil, err
	}

	client, err := i.getClient(ctx)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(ttlMinutes) * time.Minute
	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: aws.String(i.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("%w: presign get: %v", common.ErrorStorageUnavailable, err)
	}

	return &Grant{URL: req.URL, ExpiresAt: i.now().UTC().Add(ttl)}, nil
}

// Revoke deletes the object under key, best effort. Callers surface the
// error but are not expected to retry; leftover objects are cleaned up
// manually.
func (i *Issuer) Revoke(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: storage key must not be empty", common.ErrorValidation)
	}

	client, err := i.getClient(ctx)
	if err != nil {
		return err
	}

	if _, err := deleteObject(client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(i.cfg.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("%w: delete object: %v", common.ErrorStorageUnavailable, err)
	}
	return nil
}
