package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/soaringjerry/FormPulse/internal/utils"
)

const localeKey = "locale"

// Locale picks the response language from ?lang= or Accept-Language.
func Locale() gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := utils.DetermineLocale(c.Query("lang"), c.GetHeader("Accept-Language"), utils.SupportedLocales, "en")
		c.Set(localeKey, locale)
		c.Next()
	}
}

// LocaleFromContext retrieves the locale stored by Locale.
func LocaleFromContext(c *gin.Context) string {
	if s := c.GetString(localeKey); s != "" {
		return s
	}
	return "en"
}
