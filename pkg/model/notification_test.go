package model

import (
	"regexp"
	"testing"
)

func TestCategoryValid(t *testing.T) {
	valid := []Category{
		CategoryGrade, CategoryIncident, CategoryHomework, CategoryAnnouncement,
		CategoryAttendance, CategorySchedule, CategoryTest, CategoryGeneral,
	}
	for _, c := range valid {
		if !c.Valid() {
			t.Errorf("%s 应为合法类别", c)
		}
	}

	for _, c := range []Category{"", "unknown", "GRADE"} {
		if c.Valid() {
			t.Errorf("%q 不应为合法类别", c)
		}
	}
}

func TestNewRecordID(t *testing.T) {
	pattern := regexp.MustCompile(`^notif_\d+_[0-9a-z]{9}$`)

	t.Run("格式为 notif_时间戳_随机后缀", func(t *testing.T) {
		id := NewRecordID()
		if !pattern.MatchString(id) {
			t.Errorf("记录ID格式不符: %q", id)
		}
	})

	t.Run("连续生成不重复", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := NewRecordID()
			if seen[id] {
				t.Fatalf("记录ID重复: %q", id)
			}
			seen[id] = true
		}
	})
}

func TestTitleForCategory(t *testing.T) {
	cases := map[Category]string{
		CategoryGrade:        "📊 Nouvelles notes",
		CategoryIncident:     "⚠️ Nouvel incident",
		CategoryHomework:     "📚 Nouveau devoir",
		CategoryAnnouncement: "📄 Nouveau communiqué",
		CategoryAttendance:   "📅 Mise à jour présence",
		CategorySchedule:     "⏰ Nouvel horaire",
	}
	for category, want := range cases {
		if got := TitleForCategory(category); got != want {
			t.Errorf("TitleForCategory(%s) = %q, 期望 %q", category, got, want)
		}
	}
}

func TestPageForCategory(t *testing.T) {
	cases := map[Category]string{
		CategoryGrade:        "grades",
		CategoryIncident:     "presence-incidents",
		CategoryAttendance:   "presence-incidents",
		CategoryHomework:     "homework",
		CategoryAnnouncement: "communiques",
		CategorySchedule:     "timetable",
		CategoryGeneral:      "dashboard",
	}
	for category, want := range cases {
		if got := PageForCategory(category); got != want {
			t.Errorf("PageForCategory(%s) = %q, 期望 %q", category, got, want)
		}
	}
}
