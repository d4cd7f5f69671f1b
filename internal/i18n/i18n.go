package i18n

import (
	"fmt"
	"strings"

	"github.com/waimai-next/internal/constants"

	"github.com/gin-gonic/gin"
)

// 常用语言别名
const (
	LocaleZH = constants.LocaleZhCN
	LocaleTW = constants.LocaleZhTW
	LocaleEN = constants.LocaleEnUS
)

// T 按语言解析文案，缺失时回退 zh-CN，再回退 key 本身
func T(locale, key string) string {
	if catalog, ok := catalogs[normalizeLocale(locale)]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[constants.LocaleZhCN][key]; ok {
		return msg
	}
	return key
}

// Sprintf 按语言解析带参数的文案
func Sprintf(locale, key string, args ...interface{}) string {
	format := T(locale, key)
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// ResolveLocale 解析请求语言（query 优先，其次 Accept-Language）
func ResolveLocale(c *gin.Context) string {
	if c == nil {
		return constants.LocaleZhCN
	}
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return normalizeLocale(lang)
	}
	header := c.GetHeader("Accept-Language")
	for _, part := range strings.Split(header, ",") {
		lang := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if lang == "" {
			continue
		}
		normalized := normalizeLocale(lang)
		if _, ok := catalogs[normalized]; ok {
			return normalized
		}
	}
	return constants.LocaleZhCN
}

func normalizeLocale(locale string) string {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "zh", "zh-cn", "zh-hans":
		return constants.LocaleZhCN
	case "zh-tw", "zh-hk", "zh-hant":
		return constants.LocaleZhTW
	case "en", "en-us", "en-gb":
		return constants.LocaleEnUS
	default:
		return constants.LocaleZhCN
	}
}
