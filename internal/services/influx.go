package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"activity-logs/internal/config"
	"activity-logs/internal/utils"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// ActivityEvent is one audit event rendered into a generated log
type ActivityEvent struct {
	Time   time.Time
	Tags   map[string]string
	Fields map[string]interface{}
}

// eventSource yields the events of one UTC day
type eventSource interface {
	QueryEvents(ctx context.Context, start, stop time.Time) ([]ActivityEvent, error)
}

// InfluxGenerator renders a day's audit events stored in InfluxDB as a text log
type InfluxGenerator struct {
	client influxdb2.Client
	source eventSource
}

// NewInfluxGenerator connects to InfluxDB and checks its health
func NewInfluxGenerator(cfg *config.InfluxDBConfig) (*InfluxGenerator, error) {
	log.Printf("Initializing InfluxDB client: url=%s, org=%s, bucket=%s", cfg.URL, cfg.Org, cfg.Bucket)

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		log.Printf("WARNING: InfluxDB health check returned status: %s", health.Status)
	}

	return &InfluxGenerator{
		client: client,
		source: &influxEventSource{
			queryAPI:    client.QueryAPI(cfg.Org),
			bucket:      cfg.Bucket,
			measurement: cfg.Measurement,
		},
	}, nil
}

func (g *InfluxGenerator) Generate(ctx context.Context, date string) ([]byte, error) {
	day, err := utils.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}
	start, stop := utils.DayRange(day)

	events, err := g.source.QueryEvents(ctx, start, stop)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("no activity recorded for date %s", date)
	}
	return RenderEvents(events), nil
}

// Close releases the InfluxDB client
func (g *InfluxGenerator) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// RenderEvents formats events one per line, oldest first:
// <RFC3339 time> key=value ... with tags before fields, each sorted by key
func RenderEvents(events []ActivityEvent) []byte {
	sorted := make([]ActivityEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var buf bytes.Buffer
	for _, event := range sorted {
		buf.WriteString(event.Time.UTC().Format(time.RFC3339Nano))
		writePairs(&buf, event.Tags)
		fields := make(map[string]string, len(event.Fields))
		for k, v := range event.Fields {
			fields[k] = fmt.Sprint(v)
		}
		writePairs(&buf, fields)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writePairs(buf *bytes.Buffer, pairs map[string]string) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := pairs[k]
		if strings.ContainsAny(value, " \t\"") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(buf, " %s=%s", k, value)
	}
}

type influxEventSource struct {
	queryAPI    api.QueryAPI
	bucket      string
	measurement string
}

func (s *influxEventSource) QueryEvents(ctx context.Context, start, stop time.Time) ([]ActivityEvent, error) {
	query := fmt.Sprintf(`from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r["_measurement"] == "%s")
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"])`,
		s.bucket, start.Format(time.RFC3339), stop.Format(time.RFC3339), s.measurement)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query InfluxDB: %w", err)
	}
	defer result.Close()

	var events []ActivityEvent
	for result.Next() {
		record := result.Record()
		event := ActivityEvent{
			Time:   record.Time(),
			Tags:   make(map[string]string),
			Fields: make(map[string]interface{}),
		}
		for key, value := range record.Values() {
			if key == "result" || key == "table" || strings.HasPrefix(key, "_") {
				continue
			}
			if str, ok := value.(string); ok {
				event.Tags[key] = str
			} else if value != nil {
				event.Fields[key] = value
			}
		}
		events = append(events, event)
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to read InfluxDB result: %w", result.Err())
	}
	return events, nil
}
