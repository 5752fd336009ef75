/*
包 llm 提供大语言模型的统一接入契约。

# 概述

本包只定义请求、响应与 Provider 接口；具体后端位于 llm/providers
子包（当前为本地 Ollama），工具注册、执行与 ReAct 循环位于 llm/tools。
消息模型与 types 包共享（Message、ToolCall、ToolSchema 为类型别名）。

# 核心类型

  - [Provider]：Completion / HealthCheck / Name
  - [ChatRequest]：模型、消息、工具以及 Temperature、NumCtx、MaxTokens 生成参数
  - [ChatResponse] / [ChatChoice] / [ChatUsage]：补全结果
  - [HealthStatus]：健康检查结果（延迟与可用模型列表）
*/
package llm
