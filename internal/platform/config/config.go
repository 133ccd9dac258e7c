package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	AuditLog     AuditLogConfig     `yaml:"audit_log"`
	TimeTracking TimeTrackingConfig `yaml:"time_tracking"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host                string        `yaml:"host"`
	Port                int           `yaml:"port"`
	User                string        `yaml:"user"`
	Password            string        `yaml:"password"`
	Name                string        `yaml:"name"`
	SSLMode             string        `yaml:"ssl_mode"`
	MaxOpenConns        int           `yaml:"max_open_conns"`
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	ConnMaxLifetime     time.Duration `yaml:"-"`
	ConnMaxIdleTime     time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw  string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw  string        `yaml:"conn_max_idle_time"`
	ApplicationName     string        `yaml:"application_name"`
	StatementTimeout    time.Duration `yaml:"-"`
	StatementTimeoutRaw string        `yaml:"statement_timeout"`
	LogQueries          bool          `yaml:"log_queries"`
}

// AuditLogConfig は勤怠修正の監査ログ (MongoDB) の設定です。URI が空の場合は無効です。
type AuditLogConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// Enabled は監査ログが設定されているかを返します。
func (a AuditLogConfig) Enabled() bool {
	return a.URI != ""
}

// TimeTrackingConfig は勤怠に関する運用設定です。AutoCheckOutAt は 0 時からの経過時間です。
type TimeTrackingConfig struct {
	Timezone                 string         `yaml:"timezone"`
	AutoCheckOutAtRaw        string         `yaml:"auto_checkout_at"`
	AutoCheckOutIntervalRaw  string         `yaml:"auto_checkout_interval"`
	OvertimeThresholdMinutes int            `yaml:"overtime_threshold_minutes"`
	DefaultLocale            string         `yaml:"default_locale"`
	Location                 *time.Location `yaml:"-"`
	AutoCheckOutAt           time.Duration  `yaml:"-"`
	AutoCheckOutInterval     time.Duration  `yaml:"-"`
}

// LoggingConfig はログ出力の設定です。
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load は指定されたパスから設定ファイルを読み込みます。${VAR} は環境変数で置換されます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	return Parse(b)
}

// Parse は YAML を解釈し、検証済みの設定を返します。
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(b), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandEnv は設定されている環境変数のプレースホルダだけを置換します。未設定のものはそのまま残します。
func expandEnv(b []byte) []byte {
	return placeholderPattern.ReplaceAllFunc(b, func(match []byte) []byte {
		name := placeholderPattern.FindSubmatch(match)[1]
		if v, ok := os.LookupEnv(string(name)); ok {
			return []byte(v)
		}
		return match
	})
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.AuditLog.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.TimeTracking.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Logging.validateAndNormalize(); err != nil {
		return err
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	statementTimeout, err := parseDurationAllowEmpty(d.StatementTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: database.statement_timeout: %w", err)
	}
	d.StatementTimeout = statementTimeout

	return nil
}

func (a *AuditLogConfig) validateAndNormalize() error {
	if !a.Enabled() {
		return nil
	}
	if a.Database == "" {
		return fmt.Errorf("config: audit_log.database must be set")
	}
	if a.Collection == "" {
		a.Collection = "session_edits"
	}

	timeout, err := parseDurationAllowEmpty(a.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: audit_log.timeout: %w", err)
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	a.Timeout = timeout

	return nil
}

func (t *TimeTrackingConfig) validateAndNormalize() error {
	if t.Timezone == "" {
		t.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return fmt.Errorf("config: time_tracking.timezone: %w", err)
	}
	t.Location = loc

	if t.AutoCheckOutAtRaw == "" {
		t.AutoCheckOutAtRaw = "20:00"
	}
	at, err := parseClock(t.AutoCheckOutAtRaw)
	if err != nil {
		return fmt.Errorf("config: time_tracking.auto_checkout_at: %w", err)
	}
	t.AutoCheckOutAt = at

	interval, err := parseDurationAllowEmpty(t.AutoCheckOutIntervalRaw)
	if err != nil {
		return fmt.Errorf("config: time_tracking.auto_checkout_interval: %w", err)
	}
	if interval == 0 {
		interval = 15 * time.Minute
	}
	t.AutoCheckOutInterval = interval

	if t.OvertimeThresholdMinutes < 0 {
		return fmt.Errorf("config: time_tracking.overtime_threshold_minutes must not be negative")
	}
	if t.OvertimeThresholdMinutes == 0 {
		t.OvertimeThresholdMinutes = 480
	}

	if t.DefaultLocale == "" {
		t.DefaultLocale = "en"
	}

	return nil
}

func (l *LoggingConfig) validateAndNormalize() error {
	if l.Level == "" {
		l.Level = "info"
	}
	switch l.Format {
	case "":
		l.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be text or json, got %q", l.Format)
	}
	return nil
}

// parseClock は HH:MM 形式を 0 時からの経過時間に変換します。
func parseClock(raw string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, fmt.Errorf("expected HH:MM, got %q", raw)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
