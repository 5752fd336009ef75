/*
Package types 提供 OpenFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、agent、llm、
api 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Value / Object / List — 负载（payload）的封闭和类型：String、Int、Float、Bool、Null、Object、List
  - Error / ErrorCode     — 结构化错误体系，含 HTTP 状态码与 Retryable 标记
  - Message / ContentPart — 对话消息（纯文本 Content 或多段 Parts）
  - ToolSchema / ToolResult — 工具定义与执行结果

# 主要能力

  - 负载转换：FromAny / ToAny / ParseJSON / Text
  - 整数字面量解码为 Int，其余数字为 Float
  - 错误工具链：AsError / GetErrorCode / IsErrorCode / IsRetryable
  - Context 传播：WithTraceID / WithWorkflowID / WithExecutionID / WithNodeID
*/
package types
