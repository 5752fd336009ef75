/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP 请求、工作流与节点执行、
LLM 调用、工具缓存命中率与数据库连接池。

Collector 实现 workflow.Recorder，可直接交给引擎；InstrumentProvider 与
InstrumentCache 以装饰器方式为 LLM Provider 和工具结果缓存增加统计。
指标注册到调用方传入的 Registerer，测试时使用独立注册表。
*/
package metrics
