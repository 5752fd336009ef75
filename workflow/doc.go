/*
Package workflow 提供工作流图的定义、节点注册表与执行引擎。

# 概述

工作流是由类型化节点组成的有向无环图。每个节点接收一个负载（payload，
即 types.Object），交给其类型对应的 Handler 处理，产出新的负载供下游
节点使用。执行为单次、确定性的串行遍历，不做节点级并发。

# 核心类型

  - Workflow / Node   — 工作流定义（节点列表 + 有序边表），支持 JSON / YAML
  - EdgeMap           — 有序边表：source → targets，保持声明顺序
  - Handler / NodeSpec — 节点处理器契约与注册描述
  - NodeRegistry      — 类型名 → NodeSpec，读写锁保护，后注册覆盖先注册
  - Engine            — 执行引擎：拓扑排序、上游合并、分发

# 执行语义

  - 排序：Kahn 算法，零入度节点按声明顺序入队（FIFO），后继按 targets 顺序释放
  - 校验：悬空边 → UNKNOWN_NODE_REFERENCE；存在环 → CYCLIC_GRAPH；两者均在任何节点执行前返回
  - 输入：无上游 → 运行输入原样传入；有上游 → 按边表顺序浅合并上游输出，后写覆盖
  - 结果：空工作流返回输入；否则返回拓扑序最后一个节点的输出
  - 失败：首个节点错误即终止，处理器错误原样返回，节点 ID 只记入日志与 span
*/
package workflow
