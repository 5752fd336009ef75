/*
Package main 提供 OpenFlow 服务端与命令行入口。

# 概述

cmd/openflow 是 OpenFlow 的可执行入口，提供 HTTP API 服务、
本地执行工作流文件、节点与工具目录查询、健康检查和版本查询等子命令。
程序支持 YAML 配置文件与 OPENFLOW_ 前缀环境变量、结构化日志（zap）、
Prometheus 指标以及 OpenTelemetry 追踪。

# 核心类型

  - Server      — 主服务器，装配存储、执行引擎与中间件链并负责优雅关闭
  - runtime     — serve 与 run 共用的节点注册表、智能体编排器与执行引擎
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、run、nodes、tools、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、Instrument（span、指标与访问日志）、
    CORS、clientLimiter（按 IP 令牌桶，随服务运行定期清理）、
    JWTAuth（配置 auth.jwt_secret 时启用）
  - /metrics 使用独立的 Prometheus 注册表
  - 优雅关闭：信号 → 关闭 HTTP → 关闭 Redis → 关闭数据库
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
