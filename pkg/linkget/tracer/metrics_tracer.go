package tracer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/aws/aws-sdk-go/service/cloudwatch"

	"github.com/murakmii/linkget/pkg/linkget"
)

const (
	namespaceConfKey = "tracer.namespace"
	dimNameConfKey   = "tracer.dimension_name"
	dimValueConfKey  = "tracer.dimension_value"
)

// 動作をトレースしてメトリクスとして外部(CloudWatch)に送信するトレーサー
type metricsTracer struct {
	client   metricsClient
	ns       string
	dimName  string
	dimValue string

	fetched      metrics
	failed       metrics
	accepted     metrics
	fetchLatency metrics
}

// 外部(CloudWatch)送信するためのClient
type metricsClient interface {
	put(ctx context.Context, ns string, e *emitted, dimName, dimValue string)
	finish()
}

// metricsClientの実装
type cloudWatchMetricsClient struct {
	client *cloudwatch.CloudWatch
	wg     *sync.WaitGroup
}

type metrics interface {
	add(value float64) *emitted

	// 集計中の値があれば返す
	flush() *emitted
}

type emitted struct {
	name      *string
	unit      *string
	value     *float64
	timestamp *time.Time
}

type sumInMinuteMetrics struct {
	m            *sync.Mutex
	timeProvider func() time.Time
	window       *time.Time
	count        *float64
	n            string
	u            string
}

type avgInMinuteMetrics struct {
	m            *sync.Mutex
	timeProvider func() time.Time
	window       *time.Time
	avg          *float64
	count        int
	n            string
	u            string
}

func newSumInMinuteMetrics(timeProvider func() time.Time, name string, unit string) *sumInMinuteMetrics {
	defaultCount := 0.0
	return &sumInMinuteMetrics{
		m:            &sync.Mutex{},
		timeProvider: timeProvider,
		count:        &defaultCount,
		n:            name,
		u:            unit,
	}
}

func (m *sumInMinuteMetrics) add(value float64) *emitted {
	var e *emitted
	nowWindow := m.timeProvider().Truncate(1 * time.Minute)

	m.m.Lock()
	defer m.m.Unlock()

	if m.window != nil && *m.window != nowWindow {
		e = m.emit()
		m.window = &nowWindow
	} else if m.window == nil {
		m.window = &nowWindow
	}

	*m.count += value
	return e
}

func (m *sumInMinuteMetrics) flush() *emitted {
	m.m.Lock()
	defer m.m.Unlock()

	if m.window == nil {
		return nil
	}

	e := m.emit()
	m.window = nil
	return e
}

func (m *sumInMinuteMetrics) emit() *emitted {
	e := &emitted{
		name:      &m.n,
		unit:      &m.u,
		value:     m.count,
		timestamp: m.window,
	}

	newCount := 0.0
	m.count = &newCount
	return e
}

func newAvgInMinuteMetrics(timeProvider func() time.Time, name string, unit string) *avgInMinuteMetrics {
	return &avgInMinuteMetrics{
		m:            &sync.Mutex{},
		timeProvider: timeProvider,
		n:            name,
		u:            unit,
	}
}

func (m *avgInMinuteMetrics) add(value float64) *emitted {
	var e *emitted
	nowWindow := m.timeProvider().Truncate(1 * time.Minute)

	m.m.Lock()
	defer m.m.Unlock()

	if m.window != nil && *m.window != nowWindow {
		e = m.emit()
		m.window = &nowWindow
	} else if m.window == nil {
		m.window = &nowWindow
	}

	m.count++
	if m.count == 1 {
		m.avg = &value
	} else {
		diff := (value - *m.avg) / float64(m.count)
		*m.avg += diff
	}

	return e
}

func (m *avgInMinuteMetrics) flush() *emitted {
	m.m.Lock()
	defer m.m.Unlock()

	if m.window == nil || m.avg == nil {
		return nil
	}

	e := m.emit()
	m.window = nil
	return e
}

func (m *avgInMinuteMetrics) emit() *emitted {
	e := &emitted{
		name:      &m.n,
		unit:      &m.u,
		value:     m.avg,
		timestamp: m.window,
	}

	m.avg = nil
	m.count = 0
	return e
}

// metricsTracerをTracerとして生成して返す
func NewMetricsTracer(conf *linkget.Configuration) (linkget.Tracer, error) {
	ns, err := conf.RequiredOptionAsString(namespaceConfKey)
	if err != nil {
		return nil, err
	}

	dimName, err := conf.RequiredOptionAsString(dimNameConfKey)
	if err != nil {
		return nil, err
	}

	dimValue, err := conf.RequiredOptionAsString(dimValueConfKey)
	if err != nil {
		return nil, err
	}

	client, err := newCloudWatchMetricsClient(conf)
	if err != nil {
		return nil, xerrors.Errorf("failed to build cloudwatch client: %w", err)
	}

	return newMetricsTracer(client, time.Now, ns, dimName, dimValue), nil
}

func newMetricsTracer(client metricsClient, timeProvider func() time.Time, ns, dimName, dimValue string) *metricsTracer {
	return &metricsTracer{
		client:   client,
		ns:       ns,
		dimName:  dimName,
		dimValue: dimValue,

		fetched:      newSumInMinuteMetrics(timeProvider, "Fetched Pages", "Count"),
		failed:       newSumInMinuteMetrics(timeProvider, "Failed Fetches", "Count"),
		accepted:     newSumInMinuteMetrics(timeProvider, "Accepted Links", "Count"),
		fetchLatency: newAvgInMinuteMetrics(timeProvider, "Fetch Latency", "Seconds"),
	}
}

// 1 HTTP GETをトレースして、1分間のGET回数、失敗回数、レイテンシの平均をCloudWatchに送信する
func (tracer *metricsTracer) TraceFetched(ctx context.Context, elapsed float64, ok bool) {
	tracer.put(ctx, tracer.fetched.add(1))
	tracer.put(ctx, tracer.fetchLatency.add(elapsed))

	if !ok {
		tracer.put(ctx, tracer.failed.add(1))
	}
}

// 1分間に受け入れたリンクの数をCloudWatchに送信する
func (tracer *metricsTracer) TraceAccepted(ctx context.Context) {
	tracer.put(ctx, tracer.accepted.add(1))
}

// 集計途中のメトリクスも送信してから終了する
func (tracer *metricsTracer) Finish() error {
	ctx := context.Background()
	for _, m := range []metrics{tracer.fetched, tracer.failed, tracer.accepted, tracer.fetchLatency} {
		tracer.put(ctx, m.flush())
	}

	tracer.client.finish()
	return nil
}

func (tracer *metricsTracer) put(ctx context.Context, e *emitted) {
	if e != nil {
		tracer.client.put(ctx, tracer.ns, e, tracer.dimName, tracer.dimValue)
	}
}

func newCloudWatchMetricsClient(conf *linkget.Configuration) (metricsClient, error) {
	if conf.AwsConfigurationMayBeDummy() {
		return nil, xerrors.New("aws region and credentials are required for tracer")
	}

	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}

	cred := credentials.NewStaticCredentials(conf.AwsAccessKeyID, conf.AwsSecretAccessKey, "")
	config := aws.NewConfig().WithCredentials(cred).WithRegion(conf.AwsRegion).WithMaxRetries(5)

	return &cloudWatchMetricsClient{
		client: cloudwatch.New(sess, config),
		wg:     &sync.WaitGroup{},
	}, nil
}

func (m *cloudWatchMetricsClient) put(_ context.Context, ns string, e *emitted, dimName, dimValue string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = m.client.PutMetricData(&cloudwatch.PutMetricDataInput{
			MetricData: []*cloudwatch.MetricDatum{
				{
					Dimensions: []*cloudwatch.Dimension{
						{
							Name:  &dimName,
							Value: &dimValue,
						},
					},
					MetricName: e.name,
					Timestamp:  e.timestamp,
					Value:      e.value,
					Unit:       e.unit,
				},
			},
			Namespace: &ns,
		})
	}()
}

func (m *cloudWatchMetricsClient) finish() {
	m.wg.Wait()
}
