package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget"
)

const (
	s3BucketConfKey    = "s3.bucket"
	s3KeyPrefixConfKey = "s3.key_prefix"
	s3FormatConfKey    = "s3.format"

	defaultS3KeyPrefix = "linkget"
)

// 保存先ストレージの詳細を抽象化しておく
type objectStorage interface {
	put(key string, data []byte) error
}

// 結果を1つのオブジェクトとしてS3にアップロードする
type s3Sink struct {
	storage objectStorage
	prefix  string
	format  format
}

func S3SinkProvider(_ context.Context, conf *linkget.Configuration) (linkget.Sink, error) {
	formatName := "json"
	if f := conf.OptionAsString(s3FormatConfKey); f != nil {
		formatName = *f
	}

	f, err := lookupFormat(formatName)
	if err != nil {
		return nil, err
	}

	prefix := defaultS3KeyPrefix
	if p := conf.OptionAsString(s3KeyPrefixConfKey); p != nil {
		prefix = *p
	}

	storage, err := newS3StorageFromConfiguration(conf)
	if err != nil {
		return nil, err
	}

	return &s3Sink{storage: storage, prefix: prefix, format: f}, nil
}

func (s *s3Sink) Render(ctx context.Context, result *linkget.Result) error {
	content, err := s.format.render(result.Links)
	if err != nil {
		return err
	}

	key, err := s.buildNewKey(result)
	if err != nil {
		return err
	}

	if err = s.storage.put(key, content); err != nil {
		return xerrors.Errorf("can't upload result: %w", err)
	}

	linkget.LoggerFromContext(ctx).Infof("uploaded %d links to %s", len(result.Links), key)
	return nil
}

func (s *s3Sink) Finish() error { return nil }

// アップロード時のキーを生成する
func (s *s3Sink) buildNewKey(result *linkget.Result) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/%s.%s", s.prefix, result.CreatedAt.Format("2006-01-02-15-04-05"), u.String(), s.format.ext), nil
}

// objectStorageを実装したS3を対象にしたストレージ
type s3Storage struct {
	s3     *s3.S3
	bucket string
}

func newS3StorageFromConfiguration(conf *linkget.Configuration) (objectStorage, error) {
	bucket, err := conf.RequiredOptionAsString(s3BucketConfKey)
	if err != nil {
		return nil, err
	}

	if conf.AwsConfigurationMayBeDummy() {
		return nil, xerrors.New("aws region and credentials are required for s3 output")
	}

	sess, err := session.NewSession()
	if err != nil {
		return nil, xerrors.Errorf("can't create aws session: %v", err)
	}

	cred := credentials.NewStaticCredentials(conf.AwsAccessKeyID, conf.AwsSecretAccessKey, "")

	s3config := aws.NewConfig().WithCredentials(cred).WithRegion(conf.AwsRegion)
	if len(conf.AwsS3EndPoint) > 0 {
		s3config = s3config.WithEndpoint(conf.AwsS3EndPoint).WithS3ForcePathStyle(true)
	}

	return &s3Storage{
		s3:     s3.New(sess, s3config),
		bucket: bucket,
	}, nil
}

// 結果をS3のオブジェクトとして保存する
func (s *s3Storage) put(key string, data []byte) error {
	obj := &s3.PutObjectInput{
		ACL:    aws.String("private"),
		Body:   bytes.NewReader(data),
		Key:    aws.String(key),
		Bucket: aws.String(s.bucket),
	}

	_, err := s.s3.PutObject(obj)
	return err
}
