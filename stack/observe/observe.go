// Package observe turns AppSync tracing logs into per-field latency metrics
// and alarms.
package observe

import (
	"fmt"
	"time"

	"github.com/acksell/gqlstack"
	"github.com/acksell/gqlstack/stack/api"
	"github.com/acksell/gqlstack/stack/cfn"
)

const (
	// DurationScale converts milliseconds into the unit AppSync reports
	// resolver durations in.
	DurationScale = 1_000_000
	// LatencyThreshold is 300ms.
	LatencyThreshold = 300 * DurationScale

	EvaluationPeriods = 2
	Period            = 2 * time.Minute

	LogGroupID = "APILogGroup"
	// LogRetentionDays matches the CloudFormation default used for API logs.
	LogRetentionDays = 731
)

// Metric describes one log metric filter.
type Metric struct {
	Field         gqlstack.FieldBinding
	Namespace     string
	Name          string
	FilterPattern string
	Value         string
}

func (m Metric) LogicalID() string {
	return cfn.LogicalID(string(m.Field.Type), m.Field.Field, "LatencyFilter")
}

// Alarm watches the metric of one field.
type Alarm struct {
	Field              gqlstack.FieldBinding
	Name               string
	Namespace          string
	MetricName         string
	EvaluationPeriods  int
	Period             time.Duration
	Threshold          int64
	ComparisonOperator string
	Statistic          string
	ActionsEnabled     bool
}

func (a Alarm) LogicalID() string {
	return cfn.LogicalID(string(a.Field.Type), a.Field.Field, "LatencyAlarm")
}

type Pair struct {
	Metric Metric
	Alarm  Alarm
}

// NewMetric builds the latency metric of a field. Namespace is an Fn::Sub
// input; the API id placeholder is resolved at deploy time.
func NewMetric(ref api.Ref, field gqlstack.FieldBinding) (Metric, error) {
	if err := field.Validate(); err != nil {
		return Metric{}, err
	}
	return Metric{
		Field:     field,
		Namespace: "AppSync/" + ref.IDVar(),
		Name:      "Latency-" + field.Field,
		FilterPattern: fmt.Sprintf(`{ $.logType = "Tracing" && $.resolverArn = "*/%s/resolvers/%s" }`,
			field.Type, field.Field),
		Value: "$.duration",
	}, nil
}

func NewAlarm(m Metric) Alarm {
	return Alarm{
		Field:              m.Field,
		Name:               fmt.Sprintf("Latency-%s-%s-Alarm", m.Field.Type, m.Field.Field),
		Namespace:          m.Namespace,
		MetricName:         m.Name,
		EvaluationPeriods:  EvaluationPeriods,
		Period:             Period,
		Threshold:          LatencyThreshold,
		ComparisonOperator: "GreaterThanOrEqualToThreshold",
		Statistic:          "Average",
		ActionsEnabled:     true,
	}
}

// Bind builds a metric and an alarm for every field. Fields are independent
// but the call is all-or-nothing.
func Bind(ref api.Ref, fields []gqlstack.FieldBinding) ([]Pair, error) {
	pairs := make([]Pair, 0, len(fields))
	for _, f := range fields {
		m, err := NewMetric(ref, f)
		if err != nil {
			return nil, fmt.Errorf("metric for %s: %w", f.Key(), err)
		}
		pairs = append(pairs, Pair{Metric: m, Alarm: NewAlarm(m)})
	}
	return pairs, nil
}

// LogGroup is the group AppSync writes API logs to.
func LogGroup(ref api.Ref, retentionDays int) cfn.Resource {
	return cfn.Resource{
		Type: cfn.TypeLogGroup,
		Properties: cfn.Props{
			"LogGroupName":    cfn.Sub("/aws/appsync/apis/" + ref.IDVar()),
			"RetentionInDays": retentionDays,
		},
		DeletionPolicy:      cfn.PolicyRetain,
		UpdateReplacePolicy: cfn.PolicyRetain,
	}
}

func (m Metric) Resource() cfn.Resource {
	return cfn.Resource{
		Type: cfn.TypeMetricFilter,
		Properties: cfn.Props{
			"LogGroupName":  cfn.Ref(LogGroupID),
			"FilterPattern": m.FilterPattern,
			"MetricTransformations": []any{cfn.Props{
				"MetricNamespace": cfn.Sub(m.Namespace),
				"MetricName":      m.Name,
				"MetricValue":     m.Value,
			}},
		},
	}
}

// Resource renders the alarm. It depends on the filter explicitly since it
// refers to the metric by name only.
func (a Alarm) Resource(filterID string) cfn.Resource {
	return cfn.Resource{
		Type: cfn.TypeAlarm,
		Properties: cfn.Props{
			"AlarmName":          a.Name,
			"Namespace":          cfn.Sub(a.Namespace),
			"MetricName":         a.MetricName,
			"Statistic":          a.Statistic,
			"EvaluationPeriods":  a.EvaluationPeriods,
			"Period":             int(a.Period / time.Second),
			"Threshold":          a.Threshold,
			"ComparisonOperator": a.ComparisonOperator,
			"ActionsEnabled":     a.ActionsEnabled,
		},
		DependsOn: []string{filterID},
	}
}

// Fragment renders the log group and every metric/alarm pair.
func Fragment(ref api.Ref, pairs []Pair, retentionDays int) cfn.Fragment {
	frag := cfn.NewFragment()
	frag.Resources[LogGroupID] = LogGroup(ref, retentionDays)
	for _, p := range pairs {
		filterID := p.Metric.LogicalID()
		frag.Resources[filterID] = p.Metric.Resource()
		frag.Resources[p.Alarm.LogicalID()] = p.Alarm.Resource(filterID)
	}
	return frag
}
