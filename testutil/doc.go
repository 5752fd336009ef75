/*
Package testutil 提供 OpenFlow 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 存储辅助: OpenTestDB 在临时目录创建 sqlite 数据库并在测试结束时关闭
  - 文件辅助: WriteTempFile 写入临时文件并返回路径
  - 异步断言: AssertEventuallyTrue 轮询等待条件满足

# 子包

  - testutil/mocks: ScriptedProvider，按脚本依次返回回复的 LLM Provider，
    记录每次请求并支持错误注入
  - testutil/fixtures: 预置工作流定义（合流、智能体链等）
*/
package testutil
