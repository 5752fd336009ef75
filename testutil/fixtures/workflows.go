// Package fixtures 提供测试用的预置工作流定义。
package fixtures

import (
	"testing"

	"github.com/BaSui01/openflow/workflow"
)

// MergeWorkflowJSON 菱形图：trigger 分叉到 a、b，二者在 join 合流。
// 输入 {"x":1} 时 join 输出 {"x":1,"y":3,"z":4}。
const MergeWorkflowJSON = `{
	"id": "wf-merge",
	"name": "Merge",
	"nodes": [
		{"id": "trigger", "type": "manual_trigger"},
		{"id": "a", "type": "set_fields", "params": {"fields": {"y": 2}}},
		{"id": "b", "type": "set_fields", "params": {"fields": {"y": 3, "z": 4}}},
		{"id": "join", "type": "manual_trigger"}
	],
	"edges": {"trigger": ["a", "b"], "a": ["join"], "b": ["join"]}
}`

// CyclicWorkflowJSON 含环的两节点图
const CyclicWorkflowJSON = `{
	"id": "loop",
	"name": "Loop",
	"nodes": [
		{"id": "a", "type": "manual_trigger"},
		{"id": "b", "type": "manual_trigger"}
	],
	"edges": {"a": ["b"], "b": ["a"]}
}`

// AgentChainWorkflowYAML trigger → 两步智能体链 → 模板
const AgentChainWorkflowYAML = `
id: agent-chain
name: Agent chain
nodes:
  - id: start
    type: manual_trigger
  - id: agents
    type: langgraph_agent
    params:
      model: test-model
      tools: [calculator]
      agents:
        - name: researcher
          system_prompt: Collect facts.
        - name: writer
          system_prompt: Write the answer.
          tools: []
  - id: render
    type: template
    params:
      template: "{{json}}"
edges:
  start: [agents]
  agents: [render]
`

// MustParseJSON 解析 JSON 工作流，失败时终止测试
func MustParseJSON(t testing.TB, data string) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.ParseJSON([]byte(data))
	if err != nil {
		t.Fatalf("parse workflow: %v", err)
	}
	return wf
}

// MustParseYAML 解析 YAML 工作流，失败时终止测试
func MustParseYAML(t testing.TB, data string) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.ParseYAML([]byte(data))
	if err != nil {
		t.Fatalf("parse workflow: %v", err)
	}
	return wf
}
