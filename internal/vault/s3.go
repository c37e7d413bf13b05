package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"usdt-ledger/internal/config"
	"usdt-ledger/internal/counting"
	"usdt-ledger/internal/ledger"
)

// s3Client is the part of *s3.Client the vault uses.
type s3Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// s3Uploader is the part of *manager.Uploader the vault uses.
type s3Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Vault stores blobs as objects in an S3 (or S3-compatible) bucket under
// an optional prefix. Large blobs are uploaded in parts.
type S3Vault struct {
	name          string
	bucket        string
	prefix        string
	publicBaseURL string
	client        s3Client
	uploader      s3Uploader
}

// NewS3Vault creates an S3 vault from cfg. Static credentials are used when
// both key fields are set; otherwise the default AWS credential chain
// applies. A custom endpoint switches to path-style addressing.
func NewS3Vault(ctx context.Context, cfg config.VaultConfig) (*S3Vault, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Vault(cfg, client, manager.NewUploader(client)), nil
}

func newS3Vault(cfg config.VaultConfig, client s3Client, uploader s3Uploader) *S3Vault {
	return &S3Vault{
		name:          cfg.Name,
		bucket:        cfg.S3Bucket,
		prefix:        strings.Trim(cfg.S3Prefix, "/"),
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		client:        client,
		uploader:      uploader,
	}
}

func (v *S3Vault) objectKey(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if v.prefix == "" {
		return key, nil
	}
	return path.Join(v.prefix, key), nil
}

// Put uploads the blob read from r under key, replacing any previous object.
func (v *S3Vault) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	objKey, err := v.objectKey(key)
	if err != nil {
		return err
	}

	counter := counting.NewReader(r)
	_, err = v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
		Body:   counter,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", objKey, err)
	}

	if counter.N() != size {
		mismatch := fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.N())
		// Do not leave a truncated object behind.
		if err := v.Delete(ctx, key); err != nil {
			return errors.Join(mismatch, fmt.Errorf("removing partial object: %w", err))
		}
		return mismatch
	}
	return nil
}

// Get streams the object under key to w.
func (v *S3Vault) Get(ctx context.Context, key string, w io.Writer) error {
	objKey, err := v.objectKey(key)
	if err != nil {
		return err
	}

	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("blob not found: %s", key)
		}
		return fmt.Errorf("downloading %s: %w", objKey, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", objKey, err)
	}
	return nil
}

// Delete removes the object under key. S3 treats missing keys as deleted.
func (v *S3Vault) Delete(ctx context.Context, key string) error {
	objKey, err := v.objectKey(key)
	if err != nil {
		return err
	}

	_, err = v.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", objKey, err)
	}
	return nil
}

// Locator returns the public URL of key when a public base URL is
// configured, and an s3:// URI otherwise.
func (v *S3Vault) Locator(key string) string {
	objKey, err := v.objectKey(key)
	if err != nil {
		return ""
	}
	if v.publicBaseURL != "" {
		return v.publicBaseURL + "/" + objKey
	}
	return "s3://" + v.bucket + "/" + objKey
}

// ValidateSetup checks that the bucket exists and is reachable.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	_, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

var _ ledger.Vault = (*S3Vault)(nil)
