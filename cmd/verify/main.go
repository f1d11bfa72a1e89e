package main

import (
	"fmt"
	"log"
	"time"

	"ColombeNotify/pkg/model"
)

func main() {
	log.Println("开始简单验证...")

	// 创建一条模拟的变更事件
	event := model.ChangeEvent{
		Type:       model.ChangeAdded,
		DocumentID: "grade_20260830_001",
		Data: map[string]interface{}{
			"className":   "3ème A",
			"subjectName": "Mathématiques",
			"grades":      []interface{}{map[string]interface{}{"studentMatricule": "MAT001"}},
		},
	}

	// 打印变更事件
	fmt.Printf("变更事件: %+v\n", event)

	// 创建一条模拟的候选通知
	candidate := model.Candidate{
		Category:   model.CategoryGrade,
		EntityKey:  "3ème A",
		DocumentID: event.DocumentID,
		Title:      model.TitleForCategory(model.CategoryGrade),
		Body:       "Amadou a des nouvelles notes en Mathématiques",
		Context:    map[string]string{"childId": "MAT001", "page": "grades"},
		CreatedAt:  time.Now(),
		ReceivedAt: time.Now(),
	}

	// 打印候选通知
	fmt.Printf("候选通知: %+v\n", candidate)

	// 生成记录ID并打印
	fmt.Printf("记录ID示例: %s\n", model.NewRecordID())

	log.Println("验证完成")
}
