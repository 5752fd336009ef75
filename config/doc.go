// Package config 提供 OpenFlow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 OPENFLOW）的顺序加载，
// 并读取 prompts.yaml 中的系统提示词。加载完成后配置只读，
// 同时作为智能体节点的默认参数来源和 GET /config 的数据来源。
package config
