// Package api wires the OpenFlow HTTP handlers into a router.
//
// # Endpoints
//
//	GET  /health                      liveness
//	GET  /ready                       dependency checks
//	GET  /version                     build information
//	GET  /metrics                     Prometheus metrics
//	GET  /node-types                  registered node type names
//	GET  /node-catalog                node types with descriptions
//	GET  /tool-catalog                built-in agent tools
//	GET  /config                      public configuration snapshot
//	POST /workflows                   create a workflow with a caller id
//	POST /workflows/new               create a workflow with a generated id
//	GET  /workflows                   list workflows, newest first
//	GET  /workflows/{id}              fetch a workflow
//	PUT  /workflows/{id}              replace a workflow
//	POST /workflows/{id}/run          execute a workflow
//	GET  /workflows/{id}/executions   list executions of a workflow
//	GET  /executions/{id}             fetch an execution record
//
// Errors are returned as {"detail": "...", "code": "..."}.
package api
