package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/service/availability"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Booking   BookingConfig   `yaml:"booking"`
	Worker    WorkerConfig    `yaml:"worker"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	// URL takes precedence over the discrete fields when set.
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig with an empty Addr disables idempotency keys.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig with no brokers disables event publishing and the worker.
// PublishTimeoutMillis bounds the events published after each committed
// change; PublishRetries is how many attempts the worker makes per event.
type KafkaConfig struct {
	Brokers              []string `yaml:"brokers"`
	ReservationTopic     string   `yaml:"reservation_topic"`
	NotificationsTopic   string   `yaml:"notifications_topic"`
	CompletionsTopic     string   `yaml:"completions_topic"`
	GroupID              string   `yaml:"group_id"`
	PublishTimeoutMillis int      `yaml:"publish_timeout_ms"`
	PublishRetries       int      `yaml:"publish_retries"`
}

func (k KafkaConfig) PublishTimeout() time.Duration {
	return time.Duration(k.PublishTimeoutMillis) * time.Millisecond
}

type BookingConfig struct {
	Storage                string              `yaml:"storage"`
	StoreTimeoutMillis     int                 `yaml:"store_timeout_ms"`
	DefaultDurationMinutes int                 `yaml:"default_duration_minutes"`
	IdempotencyTTLMinutes  int                 `yaml:"idempotency_ttl_minutes"`
	SlotStepMinutes        int                 `yaml:"slot_step_minutes"`
	BusinessHours          BusinessHoursConfig `yaml:"business_hours"`
}

func (b BookingConfig) StoreTimeout() time.Duration {
	return time.Duration(b.StoreTimeoutMillis) * time.Millisecond
}

func (b BookingConfig) IdempotencyTTL() time.Duration {
	return time.Duration(b.IdempotencyTTLMinutes) * time.Minute
}

func (b BookingConfig) SlotStep() time.Duration {
	return time.Duration(b.SlotStepMinutes) * time.Minute
}

// BusinessHoursConfig lists open ranges as "HH:MM-HH:MM". Weekday keys are
// lowercase English day names; an empty list closes that day.
type BusinessHoursConfig struct {
	Default  []string            `yaml:"default"`
	Weekdays map[string][]string `yaml:"weekdays"`
}

func (h BusinessHoursConfig) Hours() (availability.BusinessHours, error) {
	def, err := parseRanges(h.Default)
	if err != nil {
		return availability.BusinessHours{}, fmt.Errorf("default: %w", err)
	}
	hours := availability.BusinessHours{Default: def}
	if len(h.Weekdays) > 0 {
		hours.Weekdays = make(map[time.Weekday][]calendar.Interval, len(h.Weekdays))
	}
	for name, ranges := range h.Weekdays {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return availability.BusinessHours{}, fmt.Errorf("unknown weekday %q", name)
		}
		open, err := parseRanges(ranges)
		if err != nil {
			return availability.BusinessHours{}, fmt.Errorf("%s: %w", name, err)
		}
		hours.Weekdays[day] = open
	}
	if err := hours.Validate(); err != nil {
		return availability.BusinessHours{}, err
	}
	return hours, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseRanges(ranges []string) ([]calendar.Interval, error) {
	open := make([]calendar.Interval, 0, len(ranges))
	for _, raw := range ranges {
		from, to, ok := strings.Cut(raw, "-")
		if !ok {
			return nil, fmt.Errorf("range %q: want HH:MM-HH:MM", raw)
		}
		start, err := calendar.ParseTimeOfDay(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", raw, err)
		}
		end, err := parseRangeEnd(strings.TrimSpace(to))
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", raw, err)
		}
		open = append(open, calendar.Interval{Start: start, End: end})
	}
	return open, nil
}

// parseRangeEnd also accepts "24:00" for a range that runs to midnight.
func parseRangeEnd(s string) (calendar.TimeOfDay, error) {
	if s == "24:00" {
		return calendar.EndOfDay, nil
	}
	return calendar.ParseTimeOfDay(s)
}

type WorkerConfig struct {
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func (l LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadConfig reads a .env file if present, then the YAML file at path, then
// applies environment overrides and defaults. A missing YAML file is not an
// error: defaults plus environment are enough to run with the memory store.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("HTTP_ADDRESS"); ok && v != "" {
		c.HTTP.Address = v
	}
	if v, ok := lookup("GRPC_ADDRESS"); ok && v != "" {
		c.GRPC.Address = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("BOOKING_STORAGE"); ok && v != "" {
		c.Booking.Storage = v
	}
	if v, ok := lookup("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
	if v, ok := lookup("OTEL_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.Enabled = enabled
		}
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Kafka.ReservationTopic == "" {
		c.Kafka.ReservationTopic = "reservation_events"
	}
	if c.Kafka.CompletionsTopic == "" {
		c.Kafka.CompletionsTopic = "reservation_completions"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "salonbooking-worker"
	}
	if c.Kafka.PublishTimeoutMillis == 0 {
		c.Kafka.PublishTimeoutMillis = 2000
	}
	if c.Kafka.PublishRetries == 0 {
		c.Kafka.PublishRetries = 3
	}
	if c.Booking.Storage == "" {
		c.Booking.Storage = StoragePostgres
	}
	if c.Booking.StoreTimeoutMillis == 0 {
		c.Booking.StoreTimeoutMillis = 3000
	}
	if c.Booking.IdempotencyTTLMinutes == 0 {
		c.Booking.IdempotencyTTLMinutes = 24 * 60
	}
	if c.Booking.DefaultDurationMinutes == 0 {
		c.Booking.DefaultDurationMinutes = 60
	}
	if c.Booking.SlotStepMinutes == 0 {
		c.Booking.SlotStepMinutes = 60
	}
	if len(c.Booking.BusinessHours.Default) == 0 {
		c.Booking.BusinessHours.Default = []string{"09:00-17:00"}
	}
	if c.Worker.ShutdownTimeoutSeconds == 0 {
		c.Worker.ShutdownTimeoutSeconds = 10
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "salonbooking"
	}
	if c.Telemetry.OTLPEndpoint == "" {
		c.Telemetry.OTLPEndpoint = "localhost:4317"
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 1
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Booking.Storage {
	case StoragePostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			errs = append(errs, errors.New("database: url or host is required for postgres storage"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("booking.storage: unknown backend %q", c.Booking.Storage))
	}
	if c.Booking.StoreTimeoutMillis < 0 {
		errs = append(errs, errors.New("booking.store_timeout_ms must not be negative"))
	}
	if c.Kafka.PublishTimeoutMillis < 0 || c.Kafka.PublishRetries < 0 {
		errs = append(errs, errors.New("kafka: publish_timeout_ms and publish_retries must not be negative"))
	}
	if c.Booking.DefaultDurationMinutes < 0 {
		errs = append(errs, errors.New("booking.default_duration_minutes must be positive"))
	}
	if c.Booking.SlotStepMinutes < 0 {
		errs = append(errs, errors.New("booking.slot_step_minutes must not be negative"))
	}
	if _, err := c.Booking.BusinessHours.Hours(); err != nil {
		errs = append(errs, fmt.Errorf("booking.business_hours: %w", err))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sample_ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
