// pkg/model/notification.go
package model

import (
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"
)

// Category 通知类别枚举
type Category string

const (
	CategoryGrade        Category = "grade"        // 成绩
	CategoryIncident     Category = "incident"     // 事件记录
	CategoryHomework     Category = "homework"     // 作业
	CategoryAnnouncement Category = "announcement" // 缴费通告
	CategoryAttendance   Category = "attendance"   // 考勤
	CategorySchedule     Category = "schedule"     // 课程表
	CategoryTest         Category = "test"         // 测试通知
	CategoryGeneral      Category = "general"      // 通用
)

// Valid 检查类别是否有效
func (c Category) Valid() bool {
	switch c {
	case CategoryGrade, CategoryIncident, CategoryHomework, CategoryAnnouncement,
		CategoryAttendance, CategorySchedule, CategoryTest, CategoryGeneral:
		return true
	}
	return false
}

// NotificationRecord 通知记录
// ID、Category、CreatedAt 创建后不可变；Read 只允许 false -> true
type NotificationRecord struct {
	ID        string            `gorm:"primaryKey" json:"id"`
	Category  Category          `gorm:"type:varchar(20);not null;index" json:"category"`
	Title     string            `gorm:"not null" json:"title"`
	Body      string            `gorm:"type:text" json:"body"`
	Context   map[string]string `gorm:"serializer:json" json:"context"` // 导航/过滤上下文，按类别变化，不校验
	Read      bool              `gorm:"default:false;index" json:"read"`
	CreatedAt time.Time         `gorm:"index:idx_record_created" json:"created_at"`
}

func (n *NotificationRecord) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = NewRecordID()
	}
	return nil
}

func (NotificationRecord) TableName() string {
	return "notification_records"
}

// NewRecordID 生成通知ID：时间戳+随机后缀，唯一性为尽力而为
func NewRecordID() string {
	return fmt.Sprintf("notif_%d_%s", time.Now().UnixMilli(), randomSuffix(9))
}

const suffixChars = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixChars[rand.Intn(len(suffixChars))]
	}
	return string(b)
}

// CategoryCheckpoint 类别检查点：每个类别最近一次成功检查的时间
// 状态机：UNCHECKED -> CHECKED(lastSeenAt=T)，每次成功检查覆盖T，无终止状态
type CategoryCheckpoint struct {
	Category   Category  `gorm:"primaryKey;type:varchar(20)" json:"category"`
	LastSeenAt time.Time `gorm:"not null" json:"last_seen_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CategoryCheckpoint) TableName() string {
	return "category_checkpoints"
}

// TitleForCategory 根据类别返回通知标题（后台唤醒消息自带标题时被覆盖）
func TitleForCategory(category Category) string {
	switch category {
	case CategoryGrade:
		return "📊 Nouvelles notes"
	case CategoryIncident:
		return "⚠️ Nouvel incident"
	case CategoryHomework:
		return "📚 Nouveau devoir"
	case CategoryAnnouncement:
		return "📄 Nouveau communiqué"
	case CategoryAttendance:
		return "📅 Mise à jour présence"
	case CategorySchedule:
		return "⏰ Nouvel horaire"
	case CategoryTest:
		return "🧪 Test"
	default:
		return "🔔 Nouvelle notification"
	}
}

// PageForCategory 类别对应的默认导航页面
func PageForCategory(category Category) string {
	switch category {
	case CategoryGrade:
		return "grades"
	case CategoryIncident, CategoryAttendance:
		return "presence-incidents"
	case CategoryHomework:
		return "homework"
	case CategoryAnnouncement:
		return "communiques"
	case CategorySchedule:
		return "timetable"
	default:
		return "dashboard"
	}
}
