// =============================================================================
// 📦 OpenFlow 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Agent:       DefaultAgentConfig(),
		MultiAgent:  DefaultMultiAgentConfig(),
		AgentTools:  DefaultAgentToolsConfig(),
		Profile8GB:  DefaultProfile8GBConfig(),
		LLM:         DefaultLLMConfig(),
		Database:    DefaultDatabaseConfig(),
		Redis:       DefaultRedisConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
		Auth:        AuthConfig{Issuer: "openflow"},
		PromptsPath: "prompts.yaml",
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		CORSOrigins:     []string{"http://127.0.0.1:5173", "http://localhost:5173"},
	}
}

// DefaultAgentConfig 返回默认 Agent 配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:        "qwen2.5:1.5b",
		InputField:   "message",
		NumCtx:       1024,
		NumPredict:   128,
		Temperature:  0.2,
		Tools:        []string{"calculator", "utc_time"},
		MaxToolCalls: 6,
	}
}

// DefaultMultiAgentConfig 返回默认多智能体配置
func DefaultMultiAgentConfig() MultiAgentConfig {
	return MultiAgentConfig{
		Model:        "qwen2.5:1.5b",
		InputField:   "message",
		NumCtx:       1024,
		NumPredict:   128,
		Temperature:  0.2,
		MaxToolCalls: 4,
	}
}

// DefaultAgentToolsConfig 返回默认工具配置
func DefaultAgentToolsConfig() AgentToolsConfig {
	return AgentToolsConfig{
		AllowHTTPDomains: []string{},
		TavilyMaxResults: 5,
		CacheTTL:         10 * time.Minute,
	}
}

// DefaultProfile8GBConfig 返回 8GB 内存机器的推荐参数
func DefaultProfile8GBConfig() ProfileConfig {
	return ProfileConfig{
		Model:       "qwen2.5:1.5b",
		NumCtx:      1024,
		NumPredict:  128,
		Temperature: 0.2,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Timeout:  2 * time.Minute,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "openflow",
		Name:            "data/workflows.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "openflow",
		SampleRate:   0.1,
	}
}
