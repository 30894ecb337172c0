package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/murakmii/linkget/pkg/linkget/fetcher"
	"github.com/murakmii/linkget/pkg/linkget/sink"
	"github.com/murakmii/linkget/pkg/linkget/tracer"

	"github.com/murakmii/linkget/pkg/linkget"

	"github.com/urfave/cli"
)

const noSeedMessage = "Start point is not defined. Please, restart the application with -url parameter!"

type config struct {
	DebugLevelLogging bool   `json:"debug_level_logging"`
	JSONLogging       bool   `json:"json_logging"`
	OutputDir         string `json:"output_dir"`

	Fetch  fetchConfig  `json:"fetch"`
	Aws    awsConfig    `json:"aws"`
	S3     s3Config     `json:"s3"`
	SQL    sqlConfig    `json:"sql"`
	Redis  redisConfig  `json:"redis"`
	Tracer tracerConfig `json:"tracer"`
}

type fetchConfig struct {
	TimeoutMS     uint   `json:"timeout_ms"`
	UserAgent     string `json:"user_agent"`
	PageCacheSize int    `json:"page_cache_size"`
}

type awsConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	S3EndPoint      string `json:"s3_endpoint"`
}

type s3Config struct {
	Bucket    string `json:"bucket"`
	KeyPrefix string `json:"key_prefix"`
	Format    string `json:"format"`
}

type sqlConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

type redisConfig struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type tracerConfig struct {
	Namespace      string `json:"namespace"`
	DimensionName  string `json:"dimension_name"`
	DimensionValue string `json:"dimension_value"`
}

var appFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "url",
		Usage: "start point `URL`",
	},
	cli.BoolFlag{
		Name:  "nr",
		Usage: "non recursive (accepted, but has no effect)",
	},
	cli.BoolFlag{
		Name:  "u",
		Usage: "collect unique links only",
	},
	cli.BoolFlag{
		Name:  "completed",
		Usage: "collect links with anchor text only",
	},
	cli.StringFlag{
		Name:  "limit",
		Usage: "max number of links to collect (default 100)",
	},
	cli.BoolFlag{Name: "json", Usage: "write links to links_json_<time>.json"},
	cli.BoolFlag{Name: "txt", Usage: "write links to links_txt_<time>.txt"},
	cli.BoolFlag{Name: "csv", Usage: "write links to links_csv_<time>.csv"},
	cli.BoolFlag{Name: "screen", Usage: "print links to standard output"},
	cli.BoolFlag{Name: "s3", Usage: "upload links to S3 (requires configuration file)"},
	cli.BoolFlag{Name: "sql", Usage: "insert links to database (requires configuration file)"},
	cli.BoolFlag{Name: "redis", Usage: "push links to redis list (requires configuration file)"},
	cli.BoolFlag{Name: "debug", Usage: "debug level logging"},
	cli.StringFlag{
		Name:  "config",
		Usage: "configuration file `PATH`",
	},
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	app := cli.NewApp()
	app.Name = "linkget"
	app.Usage = "Collect links from the web, starting at one page"
	app.UsageText = "linkget -url URL [-limit N] [-u] [-completed] [-json] [-txt] [-csv] [-screen]"
	app.Version = linkget.Version
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = append([]cli.Flag{}, appFlags...)
	app.Action = crawlAction

	err := app.Run(normalizeArgs(args, append([]cli.Flag{cli.HelpFlag, cli.VersionFlag}, appFlags...)))
	if err == nil {
		return 0
	}

	if xerrors.Is(err, linkget.ErrNoSeedURL) {
		_, _ = fmt.Fprintln(stderr, noSeedMessage)
	} else {
		_, _ = fmt.Fprintf(stderr, "\nERROR DETECTED:\n   %v\n", err)
	}

	return 1
}

// クロール実行
func crawlAction(c *cli.Context) error {
	conf, err := buildConfiguration(c.String("config"))
	if err != nil {
		return xerrors.Errorf("failed to load configuration: %v", err)
	}

	applyFlags(conf, c)

	if err = linkget.Start(conf); err != nil {
		return xerrors.Errorf("failed to crawl: %w", err)
	}

	return nil
}

// flagパッケージに渡す前に引数を整える
// 未知のフラグと位置引数は無視する。値を伴わない-url、-limit、-configは取り除く
// -limitの値が数値でない場合は値ごと取り除き、デフォルトの上限を使う
func normalizeArgs(args []string, flags []cli.Flag) []string {
	if len(args) == 0 {
		return args
	}

	valueFlags, boolFlags := classifyFlags(flags)
	isKnownFlag := func(arg string) bool {
		name := strings.SplitN(flagName(arg), "=", 2)[0]
		return valueFlags[name] || boolFlags[name]
	}

	normalized := []string{args[0]}
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if !isKnownFlag(arg) {
			continue
		}

		name := flagName(arg)
		if kv := strings.SplitN(name, "=", 2); len(kv) == 2 {
			if acceptsInlineValue(kv[0], kv[1], boolFlags) {
				normalized = append(normalized, arg)
			}
			continue
		}

		if boolFlags[name] {
			normalized = append(normalized, arg)
			continue
		}

		if i+1 >= len(args) || isKnownFlag(args[i+1]) {
			continue
		}

		value := args[i+1]
		if name != "limit" && strings.HasPrefix(value, "-") {
			continue
		}

		i++
		if name == "limit" {
			if _, ok := parseLimit(value); !ok {
				continue
			}
		}

		normalized = append(normalized, arg, value)
	}

	return normalized
}

// "-name"、"--name"からnameを取り出す。フラグでなければ空文字列を返す
func flagName(arg string) string {
	var name string
	switch {
	case strings.HasPrefix(arg, "--"):
		name = arg[2:]
	case strings.HasPrefix(arg, "-"):
		name = arg[1:]
	default:
		return ""
	}

	if strings.HasPrefix(name, "-") {
		return ""
	}

	return name
}

// -name=value形式の引数をそのまま渡してよいか
func acceptsInlineValue(name, value string, boolFlags map[string]bool) bool {
	if boolFlags[name] {
		_, err := strconv.ParseBool(value)
		return err == nil
	}

	if name == "limit" {
		_, ok := parseLimit(value)
		return ok
	}

	return true
}

// 値を取るフラグと取らないフラグの名前(別名を含む)を返す
func classifyFlags(flags []cli.Flag) (map[string]bool, map[string]bool) {
	valueFlags := make(map[string]bool)
	boolFlags := make(map[string]bool)

	for _, f := range flags {
		for _, name := range strings.Split(f.GetName(), ",") {
			name = strings.TrimSpace(name)
			if _, ok := f.(cli.BoolFlag); ok {
				boolFlags[name] = true
			} else {
				valueFlags[name] = true
			}
		}
	}

	return valueFlags, boolFlags
}

// 符号なし10進数のみ受け付ける
func parseLimit(s string) (uint, bool) {
	if len(s) == 0 {
		return 0, false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	limit, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, false
	}

	return uint(limit), true
}

func applyFlags(conf *linkget.Configuration, c *cli.Context) {
	conf.SeedURL = c.String("url")
	conf.Recursive = !c.Bool("nr")
	conf.DedupeUnique = c.Bool("u")
	conf.RequireText = c.Bool("completed")

	if limit, ok := parseLimit(c.String("limit")); ok {
		conf.Limit = limit
	}

	if c.Bool("debug") {
		conf.DebugLevelLogging = true
	}

	for _, name := range linkget.OutputOrder {
		if c.Bool(name) {
			conf.Outputs[name] = true
		}
	}
}

// Configuration生成
// 設定ファイルが指定されていなければデフォルトの設定を使う
func buildConfiguration(path string) (*linkget.Configuration, error) {
	configContent := config{}

	if len(path) > 0 {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		content, err := ioutil.ReadAll(file)
		if err != nil {
			return nil, err
		}

		if err = json.Unmarshal(content, &configContent); err != nil {
			return nil, err
		}
	}

	conf := linkget.NewConfiguration()
	conf.DebugLevelLogging = configContent.DebugLevelLogging
	conf.JSONLogging = configContent.JSONLogging

	if len(configContent.OutputDir) > 0 {
		conf.OutputDir = configContent.OutputDir
	}

	if configContent.Fetch.TimeoutMS > 0 {
		conf.FetchTimeout = time.Duration(configContent.Fetch.TimeoutMS) * time.Millisecond
	}

	if len(configContent.Fetch.UserAgent) > 0 {
		conf.UserAgent = configContent.Fetch.UserAgent
	}
	conf.PageCacheSize = configContent.Fetch.PageCacheSize

	conf.AwsRegion = configContent.Aws.Region
	conf.AwsAccessKeyID = configContent.Aws.AccessKeyID
	conf.AwsSecretAccessKey = configContent.Aws.SecretAccessKey
	if len(configContent.Aws.S3EndPoint) > 0 {
		conf.AwsS3EndPoint = configContent.Aws.S3EndPoint
	}

	conf.FetcherProvider = fetcher.BuiltInFetcherProvider
	conf.SinkProviders["json"] = sink.JSONSinkProvider
	conf.SinkProviders["txt"] = sink.TxtSinkProvider
	conf.SinkProviders["csv"] = sink.CSVSinkProvider
	conf.SinkProviders["screen"] = sink.ScreenSinkProvider
	conf.SinkProviders["s3"] = sink.S3SinkProvider
	conf.SinkProviders["sql"] = sink.SQLSinkProvider
	conf.SinkProviders["redis"] = sink.RedisSinkProvider

	conf.Options["s3.bucket"] = configContent.S3.Bucket
	conf.Options["s3.key_prefix"] = configContent.S3.KeyPrefix
	conf.Options["s3.format"] = configContent.S3.Format

	conf.Options["sql.driver"] = configContent.SQL.Driver
	conf.Options["sql.dsn"] = configContent.SQL.DSN

	conf.Options["redis.url"] = configContent.Redis.URL
	conf.Options["redis.key"] = configContent.Redis.Key

	if !conf.AwsConfigurationMayBeDummy() && len(configContent.Tracer.Namespace) > 0 {
		conf.TracerProvider = tracer.NewMetricsTracer
		conf.Options["tracer.namespace"] = configContent.Tracer.Namespace
		conf.Options["tracer.dimension_name"] = configContent.Tracer.DimensionName
		conf.Options["tracer.dimension_value"] = configContent.Tracer.DimensionValue
	}

	return conf, nil
}
