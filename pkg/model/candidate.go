// pkg/model/candidate.go
package model

import "time"

// ChangeType 变更类型
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// ChangeEvent 远程文档库的单条变更
type ChangeEvent struct {
	Type       ChangeType             `json:"changeType"`
	DocumentID string                 `json:"documentId"`
	Data       map[string]interface{} `json:"documentData"`
}

// Candidate 候选通知：已归一化、尚未通过资格过滤的变更
type Candidate struct {
	Category   Category          `json:"category"`
	EntityKey  string            `json:"entity_key"`  // 订阅过滤键：班级名、学生学号、家长学号等
	DocumentID string            `json:"document_id"` // 去重键
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Context    map[string]string `json:"context"`
	CreatedAt  time.Time         `json:"created_at"`  // 文档生产方时钟
	ReceivedAt time.Time         `json:"received_at"` // 本地收到时间
}

// Child 被跟踪的子女实体
type Child struct {
	Matricule string `yaml:"matricule" json:"matricule"`
	FullName  string `yaml:"full_name" json:"full_name"`
	Class     string `yaml:"class" json:"class"`
	Type      string `yaml:"type" json:"type"` // primary / secondary
}

// Secondary 是否为中学部学生（成绩和作业订阅仅限中学部）
func (c Child) Secondary() bool {
	return c.Type == "secondary"
}

// Parent 当前登录家长
type Parent struct {
	Matricule string `yaml:"matricule" json:"matricule"`
	FullName  string `yaml:"full_name" json:"full_name"`
}
