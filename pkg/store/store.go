// pkg/store/store.go
package store

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"ColombeNotify/pkg/model"
)

// Store 持久化通知存储
// 读失败视为空库（fail-open），写失败记录日志后丢弃，不向调用方暴露；
// 每个公开操作在单个事务内完成读-改-写，避免前后台背靠背写入丢失更新。
type Store struct {
	db         *gorm.DB
	maxRecords int
}

// ListFilter 通知列表过滤条件
type ListFilter struct {
	Category   model.Category // 为空表示全部类别
	Page       string         // 按导航页面过滤
	UnreadOnly bool
	Limit      int // <=0 表示不限制
}

// NewStore 创建通知存储
func NewStore(db *gorm.DB, maxRecords int) *Store {
	if maxRecords <= 0 {
		maxRecords = 200
	}
	return &Store{db: db, maxRecords: maxRecords}
}

// MaxRecords 通知保留上限
func (s *Store) MaxRecords() int {
	return s.maxRecords
}

// Load 恢复上一会话状态（建表/迁移），失败时降级为空库
func (s *Store) Load() error {
	if err := s.db.AutoMigrate(&model.NotificationRecord{}, &model.CategoryCheckpoint{}); err != nil {
		log.Printf("存储迁移失败，按空库继续: %v", err)
		return nil
	}

	count := s.Count()
	unread := s.UnreadCount()
	log.Printf("已加载 %d 条通知（%d 条未读）", count, unread)
	return nil
}

// Append 追加通知记录并裁剪超限的最旧记录
func (s *Store) Append(record *model.NotificationRecord) {
	if record.ID == "" {
		record.ID = model.NewRecordID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("保存通知记录失败: %w", err)
		}
		return evictOverflow(tx, s.maxRecords)
	})
	if err != nil {
		// 写失败不上抛，调用方不得假定持久化成功
		log.Printf("追加通知失败: %v", err)
	}
}

// evictOverflow 超出保留上限时淘汰最旧记录
func evictOverflow(tx *gorm.DB, maxRecords int) error {
	var count int64
	if err := tx.Model(&model.NotificationRecord{}).Count(&count).Error; err != nil {
		return fmt.Errorf("统计通知数量失败: %w", err)
	}
	if count <= int64(maxRecords) {
		return nil
	}

	overflow := count - int64(maxRecords)
	var victims []model.NotificationRecord
	if err := tx.Order("created_at ASC, id ASC").Limit(int(overflow)).Find(&victims).Error; err != nil {
		return fmt.Errorf("查找待淘汰通知失败: %w", err)
	}
	for _, v := range victims {
		if err := tx.Delete(&model.NotificationRecord{}, "id = ?", v.ID).Error; err != nil {
			return fmt.Errorf("淘汰通知 %s 失败: %w", v.ID, err)
		}
	}
	return nil
}

// MarkRead 标记单条已读，不存在或已读时返回 false
func (s *Store) MarkRead(id string) bool {
	result := s.db.Model(&model.NotificationRecord{}).
		Where("id = ? AND read = ?", id, false).
		Update("read", true)
	if result.Error != nil {
		log.Printf("标记已读失败: %v", result.Error)
		return false
	}
	return result.RowsAffected > 0
}

// MarkReadByPage 按页面（可选按子女）批量标记已读，返回标记数量
func (s *Store) MarkReadByPage(page, childID string) int64 {
	var records []model.NotificationRecord
	if err := s.db.Where("read = ?", false).Find(&records).Error; err != nil {
		log.Printf("查询未读通知失败: %v", err)
		return 0
	}

	// 页面和子女信息在Context里，逐条匹配
	var marked int64
	for _, rec := range records {
		if rec.Context["page"] != page {
			continue
		}
		if childID != "" && rec.Context["childId"] != childID {
			continue
		}
		if s.MarkRead(rec.ID) {
			marked++
		}
	}
	return marked
}

// MarkAllRead 全部标记已读，幂等
func (s *Store) MarkAllRead() {
	err := s.db.Model(&model.NotificationRecord{}).
		Where("read = ?", false).
		Update("read", true).Error
	if err != nil {
		log.Printf("全部标记已读失败: %v", err)
	}
}

// List 按过滤条件返回通知，最新在前
func (s *Store) List(filter ListFilter) []model.NotificationRecord {
	query := s.db.Model(&model.NotificationRecord{}).Order("created_at DESC, id DESC")
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []model.NotificationRecord
	if err := query.Find(&records).Error; err != nil {
		log.Printf("查询通知失败: %v", err)
		return nil
	}

	if filter.Page == "" {
		return records
	}
	filtered := records[:0]
	for _, rec := range records {
		if rec.Context["page"] == filter.Page {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

// UnreadCount 未读数量，徽章的唯一真值来源
func (s *Store) UnreadCount() int64 {
	var count int64
	err := s.db.Model(&model.NotificationRecord{}).
		Where("read = ?", false).
		Count(&count).Error
	if err != nil {
		log.Printf("统计未读数量失败: %v", err)
		return 0
	}
	return count
}

// UnreadCountByPage 按页面统计未读数量（菜单徽章用）
func (s *Store) UnreadCountByPage(page string) int64 {
	if page == "notifications" {
		return s.UnreadCount()
	}

	var records []model.NotificationRecord
	err := s.db.Where("read = ?", false).Find(&records).Error
	if err != nil {
		log.Printf("统计页面未读数量失败: %v", err)
		return 0
	}

	var count int64
	for _, rec := range records {
		if rec.Context["page"] == page {
			count++
		}
	}
	return count
}

// Count 通知总数
func (s *Store) Count() int64 {
	var count int64
	if err := s.db.Model(&model.NotificationRecord{}).Count(&count).Error; err != nil {
		log.Printf("统计通知数量失败: %v", err)
		return 0
	}
	return count
}

// HasRecordForDocument 是否已存在来自同一源文档的记录（去重）
func (s *Store) HasRecordForDocument(category model.Category, documentID string) bool {
	if documentID == "" {
		return false
	}
	var records []model.NotificationRecord
	err := s.db.Where("category = ?", category).Find(&records).Error
	if err != nil {
		log.Printf("查询文档记录失败: %v", err)
		return false
	}
	for _, rec := range records {
		if rec.Context["documentId"] == documentID {
			return true
		}
	}
	return false
}

// HasRecordForDocumentStatus 是否已存在同一源文档且同一状态的记录
// 考勤的状态修正（absent变late）复用同一份文档，按文档加状态判重才能放行修正
func (s *Store) HasRecordForDocumentStatus(category model.Category, documentID, status string) bool {
	if documentID == "" {
		return false
	}
	var records []model.NotificationRecord
	err := s.db.Where("category = ?", category).Find(&records).Error
	if err != nil {
		log.Printf("查询文档记录失败: %v", err)
		return false
	}
	for _, rec := range records {
		if rec.Context["documentId"] == documentID && rec.Context["status"] == status {
			return true
		}
	}
	return false
}

// Checkpoint 获取类别检查点，首次检查前返回零值和false
func (s *Store) Checkpoint(category model.Category) (time.Time, bool) {
	var cp model.CategoryCheckpoint
	err := s.db.First(&cp, "category = ?", category).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("读取检查点失败: %v", err)
		}
		return time.Time{}, false
	}
	return cp.LastSeenAt, true
}

// SetCheckpoint 覆盖类别检查点，首次成功检查时惰性创建
func (s *Store) SetCheckpoint(category model.Category, lastSeenAt time.Time) {
	cp := model.CategoryCheckpoint{Category: category, LastSeenAt: lastSeenAt}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing model.CategoryCheckpoint
		if err := tx.First(&existing, "category = ?", category).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return tx.Create(&cp).Error
			}
			return err
		}
		return tx.Model(&model.CategoryCheckpoint{}).
			Where("category = ?", category).
			Update("last_seen_at", lastSeenAt).Error
	})
	if err != nil {
		log.Printf("写入检查点失败: %v", err)
	}
}
