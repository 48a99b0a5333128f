// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/memberhub/campaign-engine/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Personalize substitutes the recipient placeholders a campaign body may
// carry. Empty fields render as an empty string rather than the raw
// placeholder.
func Personalize(template string, r model.Recipient) string {
	return RenderTemplate(template, map[string]string{
		"first_name": r.FirstName,
		"last_name":  r.LastName,
	})
}
