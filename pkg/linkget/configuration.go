package linkget

import (
	"context"
	"time"

	"golang.org/x/xerrors"
)

const (
	Version = "0.2.0"

	DefaultLimit        = 100
	DefaultFetchTimeout = 1 * time.Second
)

type (
	FetcherProviderFunc func(ctx context.Context, conf *Configuration) (PageFetcher, error)
	SinkProviderFunc    func(ctx context.Context, conf *Configuration) (Sink, error)
	TracerProviderFunc  func(conf *Configuration) (Tracer, error)
)

// 出力先の名前。Outputsに指定された順ではなく、この順で出力する
var OutputOrder = []string{"json", "txt", "csv", "screen", "s3", "sql", "redis"}

type Configuration struct {
	SeedURL      string
	Recursive    bool // パースはするが、クロールの挙動には影響しない
	Limit        uint
	DedupeUnique bool
	RequireText  bool
	Outputs      map[string]bool

	DebugLevelLogging bool
	JSONLogging       bool

	FetchTimeout  time.Duration
	UserAgent     string
	PageCacheSize int
	OutputDir     string

	AwsRegion          string
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsS3EndPoint      string

	FetcherProvider FetcherProviderFunc
	SinkProviders   map[string]SinkProviderFunc
	TracerProvider  TracerProviderFunc

	Options map[string]interface{}
}

func NewConfiguration() *Configuration {
	return &Configuration{
		Recursive:     true,
		Limit:         DefaultLimit,
		Outputs:       make(map[string]bool),
		FetchTimeout:  DefaultFetchTimeout,
		UserAgent:     "linkget/" + Version,
		OutputDir:     ".",
		SinkProviders: make(map[string]SinkProviderFunc),
		Options:       make(map[string]interface{}),
	}
}

// 有効な出力先の名前をOutputOrderの順で返す
func (c *Configuration) EnabledOutputs() []string {
	enabled := make([]string, 0, len(c.Outputs))
	for _, name := range OutputOrder {
		if c.Outputs[name] {
			enabled = append(enabled, name)
		}
	}

	return enabled
}

// AWSの認証情報が未設定(またはダミー)であればtrueを返す
func (c *Configuration) AwsConfigurationMayBeDummy() bool {
	return len(c.AwsRegion) == 0 || len(c.AwsAccessKeyID) == 0 || len(c.AwsSecretAccessKey) == 0
}

func (c *Configuration) OptionAsString(key string) *string {
	option, exists := c.Options[key]
	if !exists {
		return nil
	}

	str, ok := option.(string)
	if !ok || len(str) == 0 {
		return nil
	}

	return &str
}

func (c *Configuration) RequiredOptionAsString(key string) (string, error) {
	str := c.OptionAsString(key)
	if str == nil {
		return "", xerrors.Errorf("required option: '%s' was NOT set", key)
	}

	return *str, nil
}
