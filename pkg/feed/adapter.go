// pkg/feed/adapter.go
package feed

import (
	"fmt"
	"log"
	"sync"
	"time"

	"ColombeNotify/pkg/model"
)

// 远程文档库集合名
const (
	CollectionGrades        = "published_grades"
	CollectionIncidents     = "incidents"
	CollectionHomework      = "homework"
	CollectionAttendance    = "student_attendance"
	CollectionAnnouncements = "parent_communique_relations"
	CollectionSchedules     = "student_schedules"
)

// Emit 候选通知回调
type Emit func(candidate model.Candidate)

// Adapter 变更流适配器
// 按类别和子女订阅远程变更流，把异构变更归一化为候选通知；
// 订阅长期存活，只在拆除时批量取消；重复Setup不会重复派发。
type Adapter struct {
	source   Source
	parent   model.Parent
	children []model.Child
	emit     Emit

	subscriptions map[string]Subscription
	mu            sync.Mutex
}

// NewAdapter 创建变更流适配器
func NewAdapter(source Source, parent model.Parent, children []model.Child, emit Emit) *Adapter {
	return &Adapter{
		source:        source,
		parent:        parent,
		children:      children,
		emit:          emit,
		subscriptions: make(map[string]Subscription),
	}
}

// Setup 配置全部订阅，幂等：已建立的订阅不会重建
func (a *Adapter) Setup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.subscriptions) > 0 {
		log.Println("变更流订阅已配置，跳过")
		return nil
	}

	// 每个子女的各类订阅
	for _, child := range a.children {
		child := child

		if child.Secondary() {
			// 成绩：按班级过滤，仅中学部
			a.subscribe(fmt.Sprintf("grades_%s", child.Matricule), CollectionGrades, child.Class,
				func(event model.ChangeEvent) { a.handleGrade(child, event) })

			// 作业：按班级过滤，仅中学部
			a.subscribe(fmt.Sprintf("homework_%s", child.Matricule), CollectionHomework, child.Class,
				func(event model.ChangeEvent) { a.handleHomework(child, event) })
		}

		// 事件记录：按学号过滤
		a.subscribe(fmt.Sprintf("incidents_%s", child.Matricule), CollectionIncidents, child.Matricule,
			func(event model.ChangeEvent) { a.handleIncident(child, event) })

		// 考勤：按学号过滤
		a.subscribe(fmt.Sprintf("attendance_%s", child.Matricule), CollectionAttendance, child.Matricule,
			func(event model.ChangeEvent) { a.handleAttendance(child, event) })

		// 课程表：按学号过滤
		a.subscribe(fmt.Sprintf("schedule_%s", child.Matricule), CollectionSchedules, child.Matricule,
			func(event model.ChangeEvent) { a.handleSchedule(child, event) })
	}

	// 缴费通告：按家长学号过滤
	a.subscribe("announcements", CollectionAnnouncements, a.parent.Matricule, a.handleAnnouncement)

	log.Printf("已配置 %d 个变更流订阅", len(a.subscriptions))
	return nil
}

// subscribe 建立单个订阅并登记句柄
func (a *Adapter) subscribe(key, collection, entityKey string, handler Handler) {
	sub, err := a.source.Subscribe(collection, entityKey, handler)
	if err != nil {
		log.Printf("订阅 %s 失败: %v", key, err)
		return
	}
	a.subscriptions[key] = sub
}

// SubscriptionCount 当前存活订阅数
func (a *Adapter) SubscriptionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subscriptions)
}

// UnsubscribeAll 拆除时批量取消全部订阅
func (a *Adapter) UnsubscribeAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, sub := range a.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("取消订阅 %s 失败: %v", key, err)
		}
	}
	a.subscriptions = make(map[string]Subscription)
	log.Println("已取消全部变更流订阅")
}

// handleGrade 归一化成绩变更
func (a *Adapter) handleGrade(child model.Child, event model.ChangeEvent) {
	if event.Type != model.ChangeAdded {
		return
	}

	// 成绩文档按班级发布，仅当包含该子女的成绩时才产生候选
	if !gradesContainStudent(event.Data, child.Matricule) {
		return
	}

	subject := stringField(event.Data, "subject", "Matière inconnue")
	a.emit(model.Candidate{
		Category:   model.CategoryGrade,
		EntityKey:  child.Class,
		DocumentID: event.DocumentID,
		Title:      model.TitleForCategory(model.CategoryGrade),
		Body:       fmt.Sprintf("%s a des nouvelles notes en %s", child.FullName, subject),
		Context: map[string]string{
			"page":       "grades",
			"childId":    child.Matricule,
			"childName":  child.FullName,
			"gradeId":    event.DocumentID,
			"documentId": event.DocumentID,
			"subject":    subject,
			"period":     stringField(event.Data, "period", "P1"),
		},
		CreatedAt:  timeField(event.Data, "createdAt"),
		ReceivedAt: time.Now(),
	})
}

// handleIncident 归一化事件记录变更
func (a *Adapter) handleIncident(child model.Child, event model.ChangeEvent) {
	if event.Type != model.ChangeAdded {
		return
	}

	incidentType := stringField(event.Data, "type", "Incident signalé")
	a.emit(model.Candidate{
		Category:   model.CategoryIncident,
		EntityKey:  child.Matricule,
		DocumentID: event.DocumentID,
		Title:      model.TitleForCategory(model.CategoryIncident),
		Body:       fmt.Sprintf("%s: %s", child.FullName, incidentType),
		Context: map[string]string{
			"page":       "presence-incidents",
			"childId":    child.Matricule,
			"childName":  child.FullName,
			"incidentId": event.DocumentID,
			"documentId": event.DocumentID,
			"severity":   stringField(event.Data, "severity", ""),
		},
		CreatedAt:  timeField(event.Data, "createdAt"),
		ReceivedAt: time.Now(),
	})
}

// handleHomework 归一化作业变更
func (a *Adapter) handleHomework(child model.Child, event model.ChangeEvent) {
	if event.Type != model.ChangeAdded {
		return
	}

	subject := stringField(event.Data, "subject", "Matière inconnue")
	title := stringField(event.Data, "title", "Nouveau devoir")
	a.emit(model.Candidate{
		Category:   model.CategoryHomework,
		EntityKey:  child.Class,
		DocumentID: event.DocumentID,
		Title:      model.TitleForCategory(model.CategoryHomework),
		Body:       fmt.Sprintf("%s: %s - %s", child.FullName, subject, title),
		Context: map[string]string{
			"page":       "homework",
			"childId":    child.Matricule,
			"childName":  child.FullName,
			"homeworkId": event.DocumentID,
			"documentId": event.DocumentID,
			"subject":    subject,
			"dueDate":    stringField(event.Data, "dueDate", ""),
		},
		CreatedAt:  timeField(event.Data, "createdAt"),
		ReceivedAt: time.Now(),
	})
}

// handleAttendance 归一化考勤变更
// 考勤同时响应 added 和 modified；要求 published=true 且状态可识别
func (a *Adapter) handleAttendance(child model.Child, event model.ChangeEvent) {
	if event.Type != model.ChangeAdded && event.Type != model.ChangeModified {
		return
	}

	published, _ := event.Data["published"].(bool)
	if !published {
		return
	}

	// 只关心当天的考勤文档，历史日期的补录不打扰家长
	if date := stringField(event.Data, "date", ""); date != "" && date != time.Now().Format("2006-01-02") {
		return
	}

	status := stringField(event.Data, "status", "")
	statusText := attendanceStatusText(status)
	if statusText == "" {
		// 不可识别的状态不产生通知
		return
	}

	// 状态修正取修正时刻，取创建时刻会被检查点当成旧文档吞掉
	created := timeField(event.Data, "createdAt")
	if event.Type == model.ChangeModified {
		created = timeField(event.Data, "updatedAt")
	}

	a.emit(model.Candidate{
		Category:   model.CategoryAttendance,
		EntityKey:  child.Matricule,
		DocumentID: event.DocumentID,
		Title:      model.TitleForCategory(model.CategoryAttendance),
		Body:       fmt.Sprintf("%s %s aujourd'hui", child.FullName, statusText),
		Context: map[string]string{
			"page":       "presence-incidents",
			"childId":    child.Matricule,
			"childName":  child.FullName,
			"documentId": event.DocumentID,
			"status":     status,
		},
		CreatedAt:  created,
		ReceivedAt: time.Now(),
	})
}

// handleAnnouncement 归一化缴费通告变更
func (a *Adapter) handleAnnouncement(event model.ChangeEvent) {
	if event.Type != model.ChangeAdded {
		return
	}

	urgent, _ := event.Data["urgent"].(bool)
	a.emit(model.Candidate{
		Category:   model.CategoryAnnouncement,
		EntityKey:  a.parent.Matricule,
		DocumentID: event.DocumentID,
		Title:      model.TitleForCategory(model.CategoryAnnouncement),
		Body:       "Nouveau communiqué de paiement disponible",
		Context: map[string]string{
			"page":         "communiques",
			"communiqueId": stringField(event.Data, "communiqueId", event.DocumentID),
			"documentId":   event.DocumentID,
			"urgent":       fmt.Sprintf("%t", urgent),
		},
		CreatedAt:  timeField(event.Data, "createdAt"),
		ReceivedAt: time.Now(),
	})
}

// handleSchedule 归一化课程表变更
func (a *Adapter) handleSchedule(child model.Child, event model.ChangeEvent) {
	if event.Type != model.ChangeAdded {
		return
	}

	a.emit(model.Candidate{
		Category:   model.CategorySchedule,
		EntityKey:  child.Matricule,
		DocumentID: event.DocumentID,
		Title:      model.TitleForCategory(model.CategorySchedule),
		Body:       fmt.Sprintf("Nouvel horaire publié pour %s", child.FullName),
		Context: map[string]string{
			"page":       "timetable",
			"childId":    child.Matricule,
			"childName":  child.FullName,
			"documentId": event.DocumentID,
			"month":      stringField(event.Data, "month", ""),
			"week":       stringField(event.Data, "week", ""),
		},
		CreatedAt:  timeField(event.Data, "createdAt"),
		ReceivedAt: time.Now(),
	})
}

// attendanceStatusText 考勤状态文案，不可识别返回空串
func attendanceStatusText(status string) string {
	switch status {
	case "absent":
		return "est absent"
	case "late":
		return "est en retard"
	case "present":
		return "est présent"
	}
	return ""
}

// gradesContainStudent 成绩数组中是否包含指定学号
func gradesContainStudent(data map[string]interface{}, matricule string) bool {
	grades, ok := data["grades"].([]interface{})
	if !ok {
		return false
	}
	for _, g := range grades {
		entry, ok := g.(map[string]interface{})
		if !ok {
			continue
		}
		if entry["studentMatricule"] == matricule {
			return true
		}
	}
	return false
}

// stringField 缺失字段防御性兜底
func stringField(data map[string]interface{}, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// timeField 解析文档时间字段，缺失或无法解析时取当前时间
func timeField(data map[string]interface{}, key string) time.Time {
	switch v := data[key].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return t
		}
	case float64:
		// Unix毫秒时间戳
		return time.UnixMilli(int64(v))
	case time.Time:
		return v
	}
	return time.Now()
}
