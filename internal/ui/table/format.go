package table

import (
	"fmt"
	"time"
)

// FormatTimeLeft 把剩余时间格式化为倒计时文案
// 超过一天显示 "2d 3h"，一小时以上 "3h 25m"，其余 "25m"；已到期 "Expired"
func FormatTimeLeft(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
