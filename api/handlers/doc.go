/*
Package handlers 提供 OpenFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现工作流 CRUD、工作流执行、执行记录查询、节点与工具目录、
只读配置快照以及健康检查端点。所有 Handler 均遵循标准 net/http 接口，
路径参数通过 Go 1.22 ServeMux 的 r.PathValue 读取。

# 核心类型

  - WorkflowHandler  — 工作流创建、更新、查询、执行与执行记录
  - CatalogHandler   — /node-types、/node-catalog、/tool-catalog、/config
  - HealthHandler    — /health、/ready、/version
  - ErrorBody        — 错误响应体 {"detail": ..., "code": ...}
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码
  - Check            — 依赖检查（数据库为关键项，Redis 与 Ollama 失败只降级）

# 错误处理

带错误码的 *types.Error 按错误码映射为 HTTP 状态码；
未编码错误一律返回 500 且不向客户端暴露内部细节。
工作流执行失败返回 400，detail 以 "Execution failed: " 开头，
同一文本（不含前缀）写入执行记录的 error 字段。
*/
package handlers
