package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"photobooth/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// objectAPI is the part of the S3 client the asset store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type s3Store struct {
	s3Client  objectAPI
	bucket    string
	publicURL string
}

// NewStore creates a new S3-based asset store using the default AWS config
// chain.
func NewStore(bucketName, publicURL string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName, publicURL)
}

func newStore(client objectAPI, bucketName, publicURL string) *s3Store {
	return &s3Store{
		s3Client:  client,
		bucket:    bucketName,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (s *s3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := core.CheckAssetKey(key); err != nil {
		return "", err
	}
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset %s: %w", key, err)
	}
	logrus.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
		"size":   len(data),
	}).Info("Asset uploaded successfully")
	return s.publicURL + "/" + key, nil
}

func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := core.CheckAssetKey(key); err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("asset %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get asset %s: %w", key, err)
	}
	return resp.Body, nil
}
