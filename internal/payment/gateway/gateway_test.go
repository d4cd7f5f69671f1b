package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/waimai-next/internal/config"
)

const testSecret = "gateway-secret"

func newTestClient(gatewayURL string) *Client {
	return NewClient(config.PaymentConfig{
		GatewayURL: gatewayURL,
		MerchantID: "1001",
		Secret:     testSecret,
	})
}

func verifySign(t *testing.T, form map[string][]string) {
	t.Helper()
	var keys []string
	for k, values := range form {
		if k == "sign" || len(values) == 0 || values[0] == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+form[k][0])
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&") + testSecret))
	want := strings.ToLower(hex.EncodeToString(sum[:]))
	if got := form["sign"][0]; got != want {
		t.Fatalf("sign mismatch: got %s want %s", got, want)
	}
}

func TestCreateCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/charge/create" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		if r.PostForm.Get("pid") != "1001" || r.PostForm.Get("out_trade_no") != "WM123" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}
		if r.PostForm.Get("money") != "88.00" {
			t.Fatalf("money = %s, want 88.00", r.PostForm.Get("money"))
		}
		verifySign(t, r.PostForm)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":     1,
			"trade_no": "T555",
			"pay_url":  "https://pay.example/cashier?t=T555",
		})
	}))
	defer server.Close()

	intent, err := newTestClient(server.URL).CreateCharge(context.Background(), "WM123", "88.00")
	if err != nil {
		t.Fatalf("create charge failed: %v", err)
	}
	if intent.IntentID != "T555" {
		t.Fatalf("intent id = %s, want T555", intent.IntentID)
	}
	if intent.PayURL != "https://pay.example/cashier?t=T555" {
		t.Fatalf("unexpected pay url: %s", intent.PayURL)
	}
}

func TestCreateChargeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"msg":  "merchant disabled",
		})
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).CreateCharge(context.Background(), "WM123", "88.00"); !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}

	if _, err := newTestClient("http://gateway.local").CreateCharge(context.Background(), "WM123", " "); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid for blank amount, got %v", err)
	}
}

func TestQueryChargePaid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/charge/query" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		if r.PostForm.Get("pid") != "1001" || r.PostForm.Get("out_trade_no") != "WM123" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}
		verifySign(t, r.PostForm)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":         1,
			"trade_no":     "T789",
			"trade_status": "TRADE_SUCCESS",
			"money":        "88.00",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	status, err := client.QueryCharge(context.Background(), "WM123")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !status.Paid() {
		t.Fatalf("expected paid status, got %q", status.TradeStatus)
	}
	if status.TradeNo != "T789" || status.Amount != "88.00" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestQueryChargePending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code":         1,
			"trade_status": "WAIT_BUYER_PAY",
		})
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).QueryCharge(context.Background(), "WM123")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if status.Paid() {
		t.Fatalf("pending charge must not report paid")
	}
}

func TestQueryChargeGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"msg":  "order not found",
		})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).QueryCharge(context.Background(), "WM404")
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
}

func TestQueryChargeHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).QueryCharge(context.Background(), "WM500")
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
}

func TestQueryChargeUnconfigured(t *testing.T) {
	client := NewClient(config.PaymentConfig{})
	if client.Configured() {
		t.Fatalf("empty config should not be configured")
	}
	if _, err := client.QueryCharge(context.Background(), "WM1"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
	if _, err := newTestClient("http://gateway.local").QueryCharge(context.Background(), "  "); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid for blank order no, got %v", err)
	}
}
