/*
# 概述

包 providers 提供模型服务商适配的公共基础层：HTTP 错误到 types.Error
的映射与错误响应体解析。具体服务商实现位于子包（ollama）。

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为带错误码与 Retryable 标记的 types.Error
  - MapTransportError — 将网络错误/超时映射为 UPSTREAM_TIMEOUT 或 UPSTREAM_ERROR
  - ReadErrorMessage — 从错误响应体提取可读消息
*/
package providers
