package export

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/mock/gomock"

	"github.com/dgnsrekt/gql_sniffer/internal/export/mocks"
)

func TestBucketSink_Upload(t *testing.T) {
	fixedTime := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		bucket        string
		filename      string
		data          []byte
		setupMock     func(client *mocks.MockS3Client)
		expectedKey   string
		expectedError error
	}{
		{
			name:     "success - uploads under dated key",
			bucket:   "captures",
			filename: "UserMedia-responses.txt",
			data:     []byte(`{"data":{}}`),
			setupMock: func(client *mocks.MockS3Client) {
				client.EXPECT().
					PutObject(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
						if *in.Bucket != "captures" {
							t.Errorf("Bucket = %q; want captures", *in.Bucket)
						}
						body, _ := io.ReadAll(in.Body)
						if string(body) != `{"data":{}}` {
							t.Errorf("Body = %q", body)
						}
						return &s3.PutObjectOutput{}, nil
					})
			},
			expectedKey: "exports/2025-01-15/UserMedia-responses.txt",
		},
		{
			name:     "success - path components stripped from name",
			bucket:   "captures",
			filename: "../other/run.txt",
			data:     []byte("x"),
			setupMock: func(client *mocks.MockS3Client) {
				client.EXPECT().
					PutObject(gomock.Any(), gomock.Any()).
					Return(&s3.PutObjectOutput{}, nil)
			},
			expectedKey: "exports/2025-01-15/run.txt",
		},
		{
			name:     "error - S3 client fails",
			bucket:   "captures",
			filename: "a.txt",
			data:     []byte("x"),
			setupMock: func(client *mocks.MockS3Client) {
				client.EXPECT().
					PutObject(gomock.Any(), gomock.Any()).
					Return(nil, errors.New("s3 connection error"))
			},
			expectedError: errors.New("failed to upload to S3: s3 connection error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mocks.NewMockS3Client(ctrl)
			tt.setupMock(mockClient)

			sink := NewBucketSinkWithClient(tt.bucket, mockClient)
			sink.now = func() time.Time { return fixedTime }

			key, err := sink.Upload(context.Background(), tt.filename, tt.data)

			if tt.expectedError != nil {
				if err == nil {
					t.Fatalf("Upload() = nil; want %v", tt.expectedError)
				}
				if err.Error() != tt.expectedError.Error() {
					t.Fatalf("Upload() error = %v; want %v", err, tt.expectedError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Upload() = %v; want nil", err)
			}
			if key != tt.expectedKey {
				t.Fatalf("Upload() key = %q; want %q", key, tt.expectedKey)
			}
		})
	}
}

func TestNewBucketSinkWithClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockS3Client(ctrl)
	sink := NewBucketSinkWithClient("b", mockClient)

	if sink.bucket != "b" {
		t.Fatalf("bucket = %q; want b", sink.bucket)
	}
	if sink.client != mockClient {
		t.Fatal("client not set")
	}
}
