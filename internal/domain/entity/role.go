// Package entity 定义领域实体
package entity

// Role 问答会话中一条消息的角色，与 LLM Chat 接口的
// system/user/assistant 三种消息角色一一对应。
type Role string

const (
	// RoleSystem 系统提示，注入回答规则与拒答约定
	RoleSystem Role = "system"
	// RoleUser 提问方，落库为会话轮次的问题
	RoleUser Role = "user"
	// RoleAssistant 模型回答，随引用一起落库
	RoleAssistant Role = "assistant"
)
