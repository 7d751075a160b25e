// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"database/sql"
	"encoding/json"
	"html/template"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/olegiv/ocms-redirects/internal/model"
)

// templateFuncs returns custom template functions.
func (r *Renderer) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"lower":     strings.ToLower,
		"upper":     strings.ToUpper,
		"hasPrefix": strings.HasPrefix,
		"truncate": func(s string, length int) string {
			if len(s) <= length {
				return s
			}
			return s[:length] + "..."
		},

		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},

		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"formatDateTime":     formatDateTime,
		"formatNullDateTime": formatNullDateTime,
		"formatNumber":       formatNumber,

		"prettyJSON": prettyJSON,

		"deref": func(p *int64) int64 {
			if p == nil {
				return 0
			}
			return *p
		},
		"statusLabel": statusLabel,
		"responseCodes": func() []model.ResponseCodeChoice {
			return model.ResponseCodeChoices()
		},
		"adminURL": func(parts ...string) string {
			return r.adminPrefix + "/" + strings.TrimPrefix(strings.Join(parts, "/"), "/")
		},

		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				dict[key] = values[i+1]
			}
			return dict
		},
	}
}

func formatDateTime(t time.Time) string {
	return t.Format("Jan 2, 2006 3:04 PM")
}

func formatNullDateTime(t sql.NullTime) string {
	if !t.Valid {
		return "never"
	}
	return formatDateTime(t.Time)
}

var numberPrinter = message.NewPrinter(language.English)

func formatNumber(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}

func prettyJSON(s string) string {
	var data any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return s
	}
	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return s
	}
	return string(pretty)
}

// statusLabel describes the status a redirect answers with.
func statusLabel(code int64, newPath string, pageID sql.NullInt64) string {
	status := model.EffectiveStatus(code, newPath != "" || pageID.Valid)
	switch status {
	case model.ResponseCodePermanent:
		return "301 Permanent"
	case model.ResponseCodeTemporary:
		return "302 Temporary"
	case model.ResponseCodeGone:
		return "410 Gone"
	default:
		return strconv.Itoa(status)
	}
}
