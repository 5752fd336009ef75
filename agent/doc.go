/*
# 概述

包 agent 实现智能体节点：单智能体调用与顺序多智能体链。

# 核心类型

  - Orchestrator — langgraph_agent 与 multi_agent 节点处理器
  - Settings / ResolveSettings — 参数与配置默认值合并及校验（INVALID_AGENT_CONFIG）
  - Runner / ReActRunner — 模型调用能力；ReActRunner 基于 llm.Provider 与工具循环
  - DefaultsProvider / ToolProvider — 配置默认值与工具装配的外部接口

# 链式协议

第 1 步接收原始输入；之后每一步接收原始请求与当前上下文拼接的提示词。
只有非空白输出才会更新当前上下文，每一步都会写入一条 trace 记录。
*/
package agent
