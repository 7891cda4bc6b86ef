package utils

// Server-side messages for error keys. UI strings live in the frontend.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":              "ok",
		"auth.unauthorized":      "Authentication required",
		"error.internal":         "Internal server error",
		"error.bad_request":      "Invalid request body",
		"form.not_found":         "Form not found",
		"form.not_published":     "Form not found or not published",
		"form.expired":           "Form has expired",
		"form.password_required": "Password required",
		"form.password_invalid":  "Invalid password",
		"response.not_found":     "Response not found",
		"response.limit_reached": "Response limit reached",
		"response.duplicate":     "Multiple responses not allowed",
		"question.unknown":       "Answer references an unknown question",
		"question.required":      "A required question was not answered",
		"email.invalid":          "Invalid email address",
		"storage.unavailable":    "Object storage is unavailable",
	},
	"zh": {
		"health.ok":              "好的",
		"auth.unauthorized":      "需要登录",
		"error.internal":         "服务器内部错误",
		"error.bad_request":      "请求体无效",
		"form.not_found":         "表单不存在",
		"form.not_published":     "表单不存在或未发布",
		"form.expired":           "表单已过期",
		"form.password_required": "需要密码",
		"form.password_invalid":  "密码错误",
		"response.not_found":     "回复不存在",
		"response.limit_reached": "回复数量已达上限",
		"response.duplicate":     "不允许重复提交",
		"question.unknown":       "答案引用了不存在的问题",
		"question.required":      "有必答题未作答",
		"email.invalid":          "邮箱地址无效",
		"storage.unavailable":    "对象存储不可用",
	},
}

// SupportedLocales lists the locales with server-side messages.
var SupportedLocales = []string{"en", "zh"}

// Lookup returns the message for key in locale, falling back to English.
func Lookup(locale, key string) (string, bool) {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	if v, ok := translations["en"][key]; ok {
		return v, true
	}
	return "", false
}

// T returns the translated string for key in locale; falls back to English,
// then to the key itself.
func T(locale, key string) string {
	if v, ok := Lookup(locale, key); ok {
		return v
	}
	return key
}
