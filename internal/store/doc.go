// Package store 使用 GORM 持久化工作流定义与执行记录。
//
// 工作流以 JSON 定义整体存储，列表按 created_at 倒序返回；
// 执行记录保存状态、起止时间、结果与错误信息。表结构通过 AutoMigrate 维护。
package store
