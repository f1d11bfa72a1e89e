package api

import (
	"fmt"
	"time"

	"ColombeNotify/pkg/model"
	"ColombeNotify/pkg/store"
)

// DailySummary 生成当日通知总结
func DailySummary(st *store.Store) string {
	today := make([]model.NotificationRecord, 0)
	now := time.Now()
	for _, record := range st.List(store.ListFilter{}) {
		if sameDay(record.CreatedAt, now) {
			today = append(today, record)
		}
	}

	if len(today) == 0 {
		return "Aucune nouvelle notification aujourd'hui."
	}

	summary := fmt.Sprintf("📊 Résumé du jour (%d notifications)\n\n", len(today))
	for _, record := range today {
		summary += fmt.Sprintf("• %s: %s\n", record.Title, record.Body)
	}

	unread := st.UnreadCount()
	if unread > 0 {
		summary += fmt.Sprintf("\n🔔 %d notification(s) non lue(s).", unread)
	}

	return summary
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
