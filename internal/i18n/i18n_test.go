package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/waimai-next/internal/constants"

	"github.com/gin-gonic/gin"
)

func TestTFallback(t *testing.T) {
	if got := T(constants.LocaleZhCN, "error.order_not_found"); got != "订单不存在" {
		t.Fatalf("unexpected zh-CN message %q", got)
	}
	if got := T(constants.LocaleEnUS, "error.order_not_found"); got == "" || got == "error.order_not_found" {
		t.Fatalf("en-US catalog missing order_not_found, got %q", got)
	}
	// 未知语言回退 zh-CN
	if got := T("fr-FR", "error.order_not_found"); got != "订单不存在" {
		t.Fatalf("unknown locale should fall back to zh-CN, got %q", got)
	}
	// 未知 key 回退 key 本身
	if got := T(constants.LocaleZhCN, "error.nope"); got != "error.nope" {
		t.Fatalf("unknown key should echo key, got %q", got)
	}
}

func TestResolveLocale(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		query  string
		header string
		want   string
	}{
		{name: "default", want: constants.LocaleZhCN},
		{name: "query wins", query: "en", header: "zh-TW", want: constants.LocaleEnUS},
		{name: "query alias", query: "zh-hant", want: constants.LocaleZhTW},
		{name: "accept language", header: "en-US,en;q=0.9,zh;q=0.8", want: constants.LocaleEnUS},
		{name: "accept language fallback", header: "ja-JP,ja;q=0.9", want: constants.LocaleZhCN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			target := "/"
			if tc.query != "" {
				target += "?lang=" + tc.query
			}
			c.Request = httptest.NewRequest("GET", target, nil)
			if tc.header != "" {
				c.Request.Header.Set("Accept-Language", tc.header)
			}
			if got := ResolveLocale(c); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}

	if got := ResolveLocale(nil); got != constants.LocaleZhCN {
		t.Fatalf("nil context should default to zh-CN, got %q", got)
	}
}
