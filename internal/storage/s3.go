package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errMissingBucket = errors.New("storage: bucket is required")
	errMissingRegion = errors.New("storage: region is required")

	// ErrInvalidImagePayload indicates a create payload that is not a
	// well-formed base64 data URL.
	ErrInvalidImagePayload = errors.New("storage: invalid image payload")
	// ErrUnsupportedImageFormat indicates an image format outside the accepted set.
	ErrUnsupportedImageFormat = errors.New("storage: unsupported image format")

	noOpLogger = zap.NewNop()
)

var allowedImageExtensions = map[string]struct{}{
	"jpeg": {},
	"jpg":  {},
	"png":  {},
	"gif":  {},
	"webp": {},
}

// Image is a decoded upload payload.
type Image struct {
	MediaType string
	Extension string
	Data      []byte
}

// DecodeImageDataURL parses a "data:<mime>;base64,<payload>" create payload
// into raw bytes, rejecting formats outside jpeg/jpg/png/gif/webp.
func DecodeImageDataURL(payload string) (Image, error) {
	header, encoded, found := strings.Cut(payload, ",")
	if !found {
		return Image{}, fmt.Errorf("%w: missing data url header", ErrInvalidImagePayload)
	}
	if !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return Image{}, fmt.Errorf("%w: malformed data url header", ErrInvalidImagePayload)
	}
	mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	slash := strings.Index(mediaType, "/")
	if slash < 0 {
		return Image{}, fmt.Errorf("%w: malformed media type %q", ErrInvalidImagePayload, mediaType)
	}
	extension := mediaType[slash+1:]
	if _, ok := allowedImageExtensions[extension]; !ok {
		return Image{}, fmt.Errorf("%w: %q", ErrUnsupportedImageFormat, extension)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImagePayload, err)
	}
	return Image{MediaType: mediaType, Extension: extension, Data: data}, nil
}

// KeyFromURL extracts the object key from a public object URL.
func KeyFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Path, "/")
}

// S3Config captures the object storage connection settings.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps image blobs in an S3 bucket, one object per image, public
// URL per object. Card records reference images by that URL only.
type S3Store struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
	logger   *zap.Logger
}

// NewS3Store builds the S3 client. A non-empty endpoint switches the client
// to a custom (for example MinIO) deployment.
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errMissingBucket
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errMissingRegion
	}
	if logger == nil {
		logger = noOpLogger
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		logger:   logger,
	}, nil
}

// UploadImage stores one decoded image under the given key prefix and
// returns its public URL.
func (s *S3Store) UploadImage(ctx context.Context, keyPrefix string, image Image) (string, error) {
	key := BuildObjectKey(keyPrefix, image.Extension)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image.Data),
		ContentType: aws.String(image.MediaType),
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("image uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(image.Data)))
	return s.PublicURL(key), nil
}

// objectKey resolves the object key behind one of this store's public URLs.
// Custom-endpoint URLs are path style, so the bucket segment precedes the
// key and has to be stripped off.
func (s *S3Store) objectKey(rawURL string) string {
	key := KeyFromURL(rawURL)
	if s.endpoint == "" {
		return key
	}
	return strings.TrimPrefix(key, s.bucket+"/")
}

// DownloadByURL fetches the object behind a public URL. The media type is
// derived from the key's extension.
func (s *S3Store) DownloadByURL(ctx context.Context, rawURL string) (Image, error) {
	key := s.objectKey(rawURL)
	if key == "" {
		return Image{}, fmt.Errorf("%w: unparseable object url %q", ErrInvalidImagePayload, rawURL)
	}
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Image{}, err
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return Image{}, err
	}

	extension := strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	if _, ok := allowedImageExtensions[extension]; !ok {
		return Image{}, fmt.Errorf("%w: %q", ErrUnsupportedImageFormat, extension)
	}
	mediaType := "image/" + extension
	if extension == "jpg" {
		mediaType = "image/jpeg"
	}
	return Image{MediaType: mediaType, Extension: extension, Data: data}, nil
}

// DeleteByURL removes the object behind a public URL. Unparseable URLs are
// ignored so record cleanup can proceed past stale references.
func (s *S3Store) DeleteByURL(ctx context.Context, rawURL string) error {
	key := s.objectKey(rawURL)
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// PublicURL returns the address clients use to fetch an object.
func (s *S3Store) PublicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// BuildObjectKey derives a fresh object key under the given prefix.
func BuildObjectKey(keyPrefix, extension string) string {
	return fmt.Sprintf("%s/%s.%s", strings.Trim(keyPrefix, "/"), uuid.NewString(), extension)
}
