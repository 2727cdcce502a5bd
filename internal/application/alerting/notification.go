package alerting

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

// NotificationTimeLayout формат времени в теле уведомления
const NotificationTimeLayout = "2006-01-02 15:04:05"

// FormatNotification строит тему и текст уведомления об алерте
func FormatNotification(alert *entity.Alert) (string, string) {
	severity := strings.ToUpper(alert.Severity().String())
	subject := fmt.Sprintf("[DB Agent Alert - %s] %s", severity, titleCase(alert.Category()))

	var b strings.Builder
	b.WriteString("A new alert was raised by the database monitoring agent:\n\n")
	fmt.Fprintf(&b, "Severity: %s\n", severity)
	fmt.Fprintf(&b, "Category: %s\n", alert.Category())
	fmt.Fprintf(&b, "Metric: %s\n", alert.MetricName())
	fmt.Fprintf(&b, "Current value: %v\n", alert.CurrentValue())
	fmt.Fprintf(&b, "Threshold: %v\n", alert.ThresholdValue())
	fmt.Fprintf(&b, "Timestamp: %s\n\n", alert.CreatedAt().Format(NotificationTimeLayout))
	fmt.Fprintf(&b, "Message: %s\n\n", alert.Message())
	b.WriteString("---\nDB Operations Agent\n")

	return subject, b.String()
}

// titleCase: заглавная буква в начале каждого слова
func titleCase(s string) string {
	runes := []rune(s)
	startOfWord := true
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if startOfWord {
				runes[i] = unicode.ToUpper(r)
			} else {
				runes[i] = unicode.ToLower(r)
			}
			startOfWord = false
		} else {
			startOfWord = true
		}
	}
	return string(runes)
}
