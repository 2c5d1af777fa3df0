package launcher

import (
	cloudwatchtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/splatloc/train-launcher/internal/metrics"
)

func trainingRuntimeSeconds(namespace string) *metrics.MetricSpec {
	return &metrics.MetricSpec{
		Namespace: namespace,
		Metric:    "TrainingRuntimeSeconds",
		Unit:      cloudwatchtypes.StandardUnitSeconds,
	}
}

func trainingSucceeded(namespace string) *metrics.MetricSpec {
	return &metrics.MetricSpec{
		Namespace: namespace,
		Metric:    "TrainingSucceeded",
		Unit:      cloudwatchtypes.StandardUnitCount,
	}
}

func (l *Launcher) recordMetrics(rec *Record) {
	dims := map[string]string{
		"Scene":       l.cfg.SceneName(),
		"OutputLabel": l.cfg.OutputLabel,
	}
	l.metrics.Record(trainingRuntimeSeconds(l.cfg.MetricNamespace), rec.TimeFrame.Took.Seconds(), dims)
	succeeded := 0.0
	if rec.Succeeded {
		succeeded = 1
	}
	l.metrics.Record(trainingSucceeded(l.cfg.MetricNamespace), succeeded, dims)
}
