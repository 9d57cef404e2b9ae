//go:build integration
// +build integration

package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/linpawslitap/mds-scaling/pkg/bulk"
	bulktesting "github.com/linpawslitap/mds-scaling/pkg/bulk/testing"
)

// TestS3BulkStore_Integration runs the bulk store suite against a real
// S3-compatible service.
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or LOCALSTACK_ENDPOINT)
//   - Run with: go test -tags=integration ./pkg/bulk/s3/...
func TestS3BulkStore_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	bucket := "gtfs-test-bucket"
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	suite := &bulktesting.StoreTestSuite{
		NewStore: func(t *testing.T) bulk.Store {
			s, err := NewS3BulkStore(ctx, S3BulkStoreConfig{
				Client:    client,
				Bucket:    bucket,
				KeyPrefix: uuid.NewString() + "/",
			})
			require.NoError(t, err)
			return s
		},
	}
	suite.Run(t)
}
