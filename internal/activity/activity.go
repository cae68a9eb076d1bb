// Package activity reads back what a provisioned user has been doing:
// management events from CloudTrail, with a CloudWatch Logs filter as
// the fallback for regions where trail delivery lags.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	ctypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// Event is one recorded user action.
type Event struct {
	Time      time.Time
	Name      string
	Source    string
	Resources []string
}

// TrailClient is the CloudTrail subset the reader needs.
type TrailClient interface {
	LookupEvents(ctx context.Context, in *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error)
}

// LogsClient is the CloudWatch Logs subset the reader needs.
type LogsClient interface {
	FilterLogEvents(ctx context.Context, in *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// Reader queries user activity.
type Reader struct {
	trail TrailClient
	logs  LogsClient
}

func New(trail TrailClient, logs LogsClient) *Reader {
	return &Reader{trail: trail, logs: logs}
}

func NewFromConfig(cfg aws.Config) *Reader {
	return New(cloudtrail.NewFromConfig(cfg), cloudwatchlogs.NewFromConfig(cfg))
}

// UserEvents returns up to limit CloudTrail management events for the
// named user since the given time, newest first as CloudTrail reports
// them.
func (r *Reader) UserEvents(ctx context.Context, username string, since time.Time, limit int32) ([]Event, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	out, err := r.trail.LookupEvents(ctx, &cloudtrail.LookupEventsInput{
		LookupAttributes: []ctypes.LookupAttribute{{
			AttributeKey:   ctypes.LookupAttributeKeyUsername,
			AttributeValue: aws.String(username),
		}},
		StartTime:  aws.Time(since),
		MaxResults: aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("activity: lookup events: %w", err)
	}

	events := make([]Event, 0, len(out.Events))
	for _, e := range out.Events {
		ev := Event{
			Name:   aws.ToString(e.EventName),
			Source: aws.ToString(e.EventSource),
		}
		if e.EventTime != nil {
			ev.Time = *e.EventTime
		}
		for _, res := range e.Resources {
			if name := aws.ToString(res.ResourceName); name != "" {
				ev.Resources = append(ev.Resources, name)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// LogLines filters a log group for entries mentioning the user. Used
// when CloudTrail has not delivered recent events yet.
func (r *Reader) LogLines(ctx context.Context, group, pattern string, since time.Time) ([]string, error) {
	out, err := r.logs.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName:  aws.String(group),
		FilterPattern: aws.String(pattern),
		StartTime:     aws.Int64(since.UnixMilli()),
	})
	if err != nil {
		return nil, fmt.Errorf("activity: filter log events: %w", err)
	}
	lines := make([]string, 0, len(out.Events))
	for _, e := range out.Events {
		if msg := aws.ToString(e.Message); msg != "" {
			lines = append(lines, msg)
		}
	}
	return lines, nil
}
