package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// maxDatumsPerCall is the PutMetricData limit on values per request.
const maxDatumsPerCall = 1000

// PutMetricDataAPI is the subset of the CloudWatch client used by the registry.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// NewCloudWatchRegistry creates a new metric registry that will emit values using the specified cloudwatch client
func NewCloudWatchRegistry(lg *zap.Logger, cw PutMetricDataAPI) MetricRegistry {
	return &cloudwatchRegistry{
		lg:              lg,
		cw:              cw,
		dataByNamespace: make(map[string][]*cloudwatchMetricDatum),
	}
}

type cloudwatchRegistry struct {
	lg              *zap.Logger
	cw              PutMetricDataAPI
	mu              sync.Mutex
	dataByNamespace map[string][]*cloudwatchMetricDatum
}

type cloudwatchMetricDatum struct {
	spec       *MetricSpec
	value      float64
	dimensions map[string]string
	timestamp  time.Time
}

func (r *cloudwatchRegistry) Record(spec *MetricSpec, value float64, dimensions map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataByNamespace[spec.Namespace] = append(r.dataByNamespace[spec.Namespace], &cloudwatchMetricDatum{
		spec:       spec,
		value:      value,
		dimensions: dimensions,
		timestamp:  time.Now(),
	})
}

func (r *cloudwatchRegistry) Emit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for namespace, data := range r.dataByNamespace {
		for i := 0; i < len(data); {
			var metricData []types.MetricDatum
			for ; i < len(data) && len(metricData) < maxDatumsPerCall; i++ {
				datum := data[i]
				metricData = append(metricData, types.MetricDatum{
					MetricName: aws.String(datum.spec.Metric),
					Unit:       datum.spec.Unit,
					Value:      aws.Float64(datum.value),
					Dimensions: toDimensions(datum.dimensions),
					Timestamp:  aws.Time(datum.timestamp),
				})
			}
			_, err := r.cw.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
				Namespace:  aws.String(namespace),
				MetricData: metricData,
			})
			if err != nil {
				return err
			}
		}
		r.lg.Info("emitted metrics", zap.String("namespace", namespace), zap.Int("count", len(data)))
	}
	r.dataByNamespace = make(map[string][]*cloudwatchMetricDatum)
	return nil
}

func toDimensions(m map[string]string) []types.Dimension {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dimensions := make([]types.Dimension, 0, len(keys))
	for _, k := range keys {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(m[k]),
		})
	}
	return dimensions
}

func (r *cloudwatchRegistry) GetRegistered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	registered := 0
	for _, data := range r.dataByNamespace {
		registered += len(data)
	}
	return registered
}
