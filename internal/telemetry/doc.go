// Package telemetry 封装 OpenTelemetry SDK 初始化，
// 为工作流引擎与智能体编排器提供 tracer。
// 禁用时使用 noop 实现，不连接任何外部服务。
package telemetry
