// =============================================================================
// 📦 OpenFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖 + prompts.yaml
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("OPENFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量 → TAVILY_API_KEY 兜底
// YAML 中的未知键视为错误，避免拼写错误被静默忽略。
// =============================================================================
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 配置结构
// =============================================================================

// Config 是 OpenFlow 的完整配置结构。加载后视为只读。
type Config struct {
	Server     ServerConfig     `yaml:"server" env:"SERVER"`
	Agent      AgentConfig      `yaml:"agent" env:"AGENT"`
	MultiAgent MultiAgentConfig `yaml:"multi_agent" env:"MULTI_AGENT"`
	AgentTools AgentToolsConfig `yaml:"agent_tools" env:"AGENT_TOOLS"`
	Profile8GB ProfileConfig    `yaml:"profile_8gb" env:"PROFILE_8GB"` // 低内存机器推荐参数
	LLM        LLMConfig        `yaml:"llm" env:"LLM"`
	Database   DatabaseConfig   `yaml:"database" env:"DATABASE"`
	Redis      RedisConfig      `yaml:"redis" env:"REDIS"`
	Log        LogConfig        `yaml:"log" env:"LOG"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" env:"TELEMETRY"`
	Auth       AuthConfig       `yaml:"auth" env:"AUTH"`

	// PromptsPath 文件缺失时使用内置提示词
	PromptsPath string  `yaml:"prompts_path" env:"PROMPTS_PATH"`
	Prompts     Prompts `yaml:"-" env:"-"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"` // 覆盖最长的智能体节点
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"` // 0 不限
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	MaxConnections int     `yaml:"max_connections" env:"MAX_CONNECTIONS"` // 0 不限

	// 额外允许的 CORS 来源，本机任意端口始终允许
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// AgentConfig langgraph_agent 节点默认值
type AgentConfig struct {
	Model string `yaml:"model" env:"MODEL"`
	// 为空时使用 prompts.yaml 的 single_agent.system_prompt
	SystemPrompt string   `yaml:"system_prompt" env:"SYSTEM_PROMPT"`
	InputField   string   `yaml:"input_field" env:"INPUT_FIELD"`
	NumCtx       int      `yaml:"num_ctx" env:"NUM_CTX"`
	NumPredict   int      `yaml:"num_predict" env:"NUM_PREDICT"`
	Temperature  float64  `yaml:"temperature" env:"TEMPERATURE"`
	Tools        []string `yaml:"tools" env:"TOOLS"`
	MaxToolCalls int      `yaml:"max_tool_calls" env:"MAX_TOOL_CALLS"`
}

// MultiAgentConfig multi_agent 节点默认值
type MultiAgentConfig struct {
	Model        string  `yaml:"model" env:"MODEL"`
	InputField   string  `yaml:"input_field" env:"INPUT_FIELD"`
	NumCtx       int     `yaml:"num_ctx" env:"NUM_CTX"`
	NumPredict   int     `yaml:"num_predict" env:"NUM_PREDICT"`
	Temperature  float64 `yaml:"temperature" env:"TEMPERATURE"`
	MaxToolCalls int     `yaml:"max_tool_calls" env:"MAX_TOOL_CALLS"`
	// AgentsJSON JSON 数组，覆盖默认步骤列表；非数组或解析失败时忽略
	AgentsJSON string `yaml:"agents_json" env:"AGENTS_JSON"`
}

// AgentToolsConfig 内置工具配置
type AgentToolsConfig struct {
	// http_get 白名单，空表示不限制
	AllowHTTPDomains []string `yaml:"allow_http_domains" env:"ALLOW_HTTP_DOMAINS"`
	TavilyMaxResults int      `yaml:"tavily_max_results" env:"TAVILY_MAX_RESULTS"`
	// 为空时读取 TAVILY_API_KEY
	TavilyAPIKey  string `yaml:"tavily_api_key" env:"TAVILY_API_KEY"`
	TavilyBaseURL string `yaml:"tavily_base_url" env:"TAVILY_BASE_URL"`
	// 搜索结果缓存时间（需启用 Redis）
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// ProfileConfig 模型参数档位
type ProfileConfig struct {
	Model       string  `yaml:"model" env:"MODEL"`
	NumCtx      int     `yaml:"num_ctx" env:"NUM_CTX"`
	NumPredict  int     `yaml:"num_predict" env:"NUM_PREDICT"`
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
}

// LLMConfig 模型后端，目前只有 ollama
type LLMConfig struct {
	Provider  string        `yaml:"provider" env:"PROVIDER"`
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	KeepAlive string        `yaml:"keep_alive" env:"KEEP_ALIVE"` // Ollama keep_alive
}

// DatabaseConfig 工作流与执行记录的存储。Driver 为 sqlite 时 Name 是文件路径。
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // postgres | mysql | sqlite
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig 工具结果缓存
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// LogConfig zap 日志
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`   // debug | info | warn | error
	Format           string   `yaml:"format" env:"FORMAT"` // json | console
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig OTLP 导出
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// AuthConfig JWT 认证配置，JWTSecret 为空时不启用
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
}

// =============================================================================
// 🔧 加载
// =============================================================================

// Loader 按 默认值 → 文件 → 环境变量 的顺序构建 Config
type Loader struct {
	path       string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 使用 OPENFLOW 前缀创建加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: "OPENFLOW"}
}

// WithConfigPath 指定 YAML 文件，文件不存在时忽略
func (l *Loader) WithConfigPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnvPrefix 替换环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 追加在加载完成后运行的校验
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 构建配置，随后读取 prompts.yaml 并依次运行校验
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := l.applyFile(cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if cfg.AgentTools.TavilyAPIKey == "" {
		cfg.AgentTools.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
	}
	cfg.Prompts = LoadPrompts(cfg.PromptsPath)

	for _, validate := range l.validators {
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) applyFile(cfg *Config) error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", l.path, err)
	}
	return nil
}

// =============================================================================
// 🌱 环境变量
// =============================================================================

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnv 按 env 标签把 PREFIX_SECTION_FIELD 写入结构体字段。
// 空值视为未设置；所有解析失败一并返回。
func applyEnv(v reflect.Value, prefix string) error {
	var errs []error
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		field := v.Field(i)

		if field.Kind() == reflect.Struct {
			if err := applyEnv(field, key); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		raw, ok := os.LookupEnv(key)
		if !ok || raw == "" || !field.CanSet() {
			continue
		}
		if err := parseInto(field, raw); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		}
	}
	return errors.Join(errs...)
}

func parseInto(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		field.Set(reflect.ValueOf(splitCSV(raw)))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// splitCSV 逗号分隔，去掉空白项
func splitCSV(value string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// =============================================================================
// ✅ 校验
// =============================================================================

// Validate 检查会让服务或节点默认值不可用的配置，返回全部问题
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		bad("invalid HTTP port %d", c.Server.HTTPPort)
	}
	if c.Server.RateLimitRPS < 0 {
		bad("rate_limit_rps must not be negative")
	}

	if c.Agent.Model == "" || c.MultiAgent.Model == "" {
		bad("agent model must not be empty")
	}
	if c.Agent.NumCtx <= 0 || c.Agent.NumPredict <= 0 || c.Agent.MaxToolCalls <= 0 {
		bad("agent num_ctx, num_predict and max_tool_calls must be positive")
	}
	if c.MultiAgent.NumCtx <= 0 || c.MultiAgent.NumPredict <= 0 || c.MultiAgent.MaxToolCalls <= 0 {
		bad("multi_agent num_ctx, num_predict and max_tool_calls must be positive")
	}
	if c.AgentTools.TavilyMaxResults <= 0 {
		bad("tavily_max_results must be positive")
	}

	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		bad("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		bad("invalid log level %q", c.Log.Level)
	}
	return errors.Join(errs...)
}

// DSN 返回 postgres 与 mysql 的连接串；sqlite 返回文件路径。
// 时间统一按 UTC 读写。
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.Name)
	case "sqlite":
		return d.Name
	}
	return ""
}
