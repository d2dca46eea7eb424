package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cuemby/dialog/pkg/dialogerr"
)

// S3Backend is a Backend over an S3 (or S3-compatible) bucket. Editions
// are the object's ETag. Where the bucket supports conditional writes
// (If-Match / If-None-Match), Replace uses them for a true CAS (Set is an
// unconditional put);
// otherwise the write still succeeds but its returned Edition is flagged
// Weak, per the "no required environment variables" external-interfaces
// note: credentials and endpoint come from the SDK's standard env/config
// chain.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend constructs an S3Backend for the given bucket, loading AWS
// credentials and region from the SDK's default configuration chain
// (environment variables, shared config file, or an attached role).
func NewS3Backend(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialog: storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Backend{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *S3Backend) objectKey(key string) string {
	encoded := EncodeKey(key)
	if s.prefix == "" {
		return encoded
	}
	return s.prefix + "/" + encoded
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &notFound)
}

func (s *S3Backend) Get(ctx context.Context, key string) ([]byte, Edition, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, Edition{}, dialogerr.ErrNotFound
		}
		return nil, Edition{}, fmt.Errorf("dialog: storage: s3 get %q: %w", key, err)
	}
	defer out.Body.Close()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, Edition{}, fmt.Errorf("dialog: storage: s3 read body %q: %w", key, err)
	}
	return value, Edition{Token: []byte(aws.ToString(out.ETag))}, nil
}

func (s *S3Backend) Set(ctx context.Context, key string, value []byte) (Edition, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return Edition{}, fmt.Errorf("dialog: storage: s3 put %q: %w", key, err)
	}
	return Edition{Token: []byte(aws.ToString(out.ETag))}, nil
}

func (s *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("dialog: storage: s3 delete %q: %w", key, err)
	}
	return nil
}

func (s *S3Backend) Resolve(ctx context.Context, key string) (Edition, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return Edition{}, dialogerr.ErrNotFound
		}
		return Edition{}, fmt.Errorf("dialog: storage: s3 head %q: %w", key, err)
	}
	return Edition{Token: []byte(aws.ToString(out.ETag))}, nil
}

// Replace performs a conditional PutObject keyed on If-Match (or
// If-None-Match when when is empty), after first checking when against
// the object's current ETag. If the conditional put fails for any reason
// (for example a bucket that rejects the conditional header), Replace
// retries it as an unconditional put and returns that put's edition
// flagged Weak.
func (s *S3Backend) Replace(ctx context.Context, key string, when Edition, value []byte) (Edition, error) {
	current, err := s.Resolve(ctx, key)
	if err != nil && !errors.Is(err, dialogerr.ErrNotFound) {
		return Edition{}, err
	}
	if !current.Equal(when) {
		return current, dialogerr.ErrEditionMismatch
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(value),
	}
	if len(when.Token) > 0 {
		input.IfMatch = aws.String(string(when.Token))
	} else {
		input.IfNoneMatch = aws.String("*")
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		// The bucket may not support conditional writes; fall back to
		// an unconditional put and flag the edition as weak rather
		// than failing a store that otherwise works fine.
		out, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
			Body:   bytes.NewReader(value),
		})
		if err != nil {
			return Edition{}, fmt.Errorf("dialog: storage: s3 replace %q: %w", key, err)
		}
		return Edition{Token: []byte(aws.ToString(out.ETag)), Weak: true}, nil
	}
	return Edition{Token: []byte(aws.ToString(out.ETag))}, nil
}

// List returns one page of entries under prefix. Its entries carry Key and
// Edition only; Value is left nil (Read fetches each value with Get).
func (s *S3Backend) List(ctx context.Context, prefix, cursor string) (Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.objectKey(prefix)),
		MaxKeys: aws.Int32(listPageSize),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return Page{}, fmt.Errorf("dialog: storage: s3 list %q: %w", prefix, err)
	}

	page := Page{Entries: make([]Entry, 0, len(out.Contents))}
	for _, obj := range out.Contents {
		logicalKey, err := s.logicalKey(aws.ToString(obj.Key))
		if err != nil {
			return Page{}, err
		}
		page.Entries = append(page.Entries, Entry{
			Key:     logicalKey,
			Edition: Edition{Token: []byte(aws.ToString(obj.ETag))},
		})
	}
	if out.IsTruncated != nil && *out.IsTruncated {
		page.Cursor = aws.ToString(out.NextContinuationToken)
	}
	return page, nil
}

func (s *S3Backend) logicalKey(objectKey string) (string, error) {
	trimmed := strings.TrimPrefix(objectKey, s.prefix+"/")
	return decodeFullKey(trimmed)
}

func (s *S3Backend) Read(ctx context.Context, prefix string) (<-chan Entry, <-chan error) {
	entries := make(chan Entry)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errs)

		cursor := ""
		for {
			page, err := s.List(ctx, prefix, cursor)
			if err != nil {
				errs <- err
				return
			}
			for _, e := range page.Entries {
				value, _, err := s.Get(ctx, e.Key)
				if err != nil {
					errs <- err
					return
				}
				e.Value = value
				select {
				case entries <- e:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if page.Cursor == "" {
				return
			}
			cursor = page.Cursor
		}
	}()

	return entries, errs
}

func (s *S3Backend) Write(ctx context.Context, entries <-chan Entry) error {
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			if _, err := s.Set(ctx, e.Key, e.Value); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
