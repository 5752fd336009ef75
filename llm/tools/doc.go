/*
# 概述

包 tools 提供智能体可调用的内置工具、工具执行器与 ReAct 执行循环。

# 内置工具

  - calculator — 算术表达式求值（abs/round/min/max/sqrt），错误以文本返回
  - utc_time — 当前 UTC 时间（RFC3339）
  - http_get — 受域名白名单约束的网页抓取，8 秒超时，最多 4000 字节
  - tavily_search — Tavily 搜索，返回精简 JSON，可选结果缓存

# 核心类型

  - Catalog — 按名称构建工具集合，未知名称静默跳过
  - Executor — 按名称解析工具调用，有界并发、单工具限流（x/time/rate）与超时
  - ToolLoop      — "模型 → 工具 → 模型" 循环，超过模型调用上限返回 TOOL_LOOP_LIMIT
*/
package tools
