package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/trackwell/issuetracker/internal/services"
)

const maxAuditBody = 2000

// AuditLog writes one system_logs row per write request handled by the
// routes it wraps.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil {
			raw, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			body = maskSensitiveFields(string(raw))
			if len(body) > maxAuditBody {
				body = body[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		var uid *string
		if id := GetUserID(c); id != "" {
			uid = &id
		}

		services.LogInfo(module, action, formatAuditMessage(c.GetString(ContextEmail), method, c.Request.URL.Path, status),
			uid, c.ClientIP(), c.Request.UserAgent(), map[string]interface{}{
				"method": method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   body,
				"audit":  true,
			})
	}
}

// parseRouteInfo maps "/api/users/:id/role" + PUT to ("Users", "Update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	segment := strings.SplitN(strings.TrimPrefix(fullPath, "/api/"), "/", 2)[0]
	if segment == "" {
		module = "Unknown"
	} else {
		words := strings.Fields(strings.ReplaceAll(segment, "-", " "))
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		module = strings.Join(words, "-")
	}

	switch method {
	case http.MethodPost:
		action = "Create"
	case http.MethodPut, http.MethodPatch:
		action = "Update"
	case http.MethodDelete:
		action = "Delete"
	default:
		action = method
	}
	return module, action
}

func formatAuditMessage(actor, method, path string, status int) string {
	outcome := "OK"
	if status < 200 || status >= 300 {
		outcome = "Failed"
	}
	if actor == "" {
		actor = "anonymous"
	}
	return fmt.Sprintf("[Audit] %s %s %s -> %s", actor, method, path, outcome)
}

var sensitiveField = regexp.MustCompile(`(?i)("(?:password|secret|token|refresh_token|access_token|bind_password)"\s*:\s*)"(?:[^"\\]|\\.)*"`)

// maskSensitiveFields blanks the string values of credential-like JSON keys.
func maskSensitiveFields(body string) string {
	return sensitiveField.ReplaceAllString(body, `$1"***"`)
}
