// Package s3 serves objects from an S3-compatible bucket. The object id is
// the object key; temporary locations are presigned GET URLs.
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"telecloud/internal/config"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	presignTTL time.Duration
}

// NewClient builds the S3 client and checks that the bucket is reachable.
// Static keys are used when configured, otherwise the default AWS chain.
func NewClient(ctx context.Context, conf config.S3Config, presignTTL time.Duration) (*Client, error) {
	if conf.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	var client *s3.Client
	if conf.AccessKeyID != "" && conf.SecretAccessKey != "" {
		client = s3.New(staticOptions(conf))
	} else {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(conf.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if conf.Endpoint != "" {
				o.BaseEndpoint = aws.String(conf.Endpoint)
			}
			o.UsePathStyle = conf.UsePathStyle
		})
	}

	c := newClient(client, conf.Bucket, presignTTL)

	checkCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := client.HeadBucket(checkCtx, &s3.HeadBucketInput{Bucket: aws.String(conf.Bucket)}); err != nil {
		return nil, fmt.Errorf("unable to access bucket %s: %w", conf.Bucket, err)
	}

	return c, nil
}

func staticOptions(conf config.S3Config) s3.Options {
	creds := credentials.NewStaticCredentialsProvider(conf.AccessKeyID, conf.SecretAccessKey, "")
	opts := s3.Options{
		Region:           conf.Region,
		Credentials:      aws.NewCredentialsCache(creds),
		UsePathStyle:     conf.UsePathStyle,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
	}
	if conf.Endpoint != "" {
		opts.BaseEndpoint = aws.String(conf.Endpoint)
	}
	return opts
}

func newClient(client *s3.Client, bucket string, presignTTL time.Duration) *Client {
	if presignTTL <= 0 {
		presignTTL = 5 * time.Minute
	}
	return &Client{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
	}
}

// ResolveLocation presigns a GET for key. Range headers sent to the URL are
// honoured by S3.
func (c *Client) ResolveLocation(ctx context.Context, key string) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = c.presignTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}

	return req.URL, nil
}

// DeleteRemoteObject removes key. A key that is already gone counts as
// deleted.
func (c *Client) DeleteRemoteObject(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			log.Debug().Str("key", key).Msg("object already deleted")
			return nil
		}
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}
