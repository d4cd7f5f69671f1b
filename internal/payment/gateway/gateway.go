package gateway

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/waimai-next/internal/config"
)

const (
	// TradeStatusSuccess 网关侧支付成功状态
	TradeStatusSuccess = "TRADE_SUCCESS"
	// TradeStatusPending 网关侧待支付状态
	TradeStatusPending = "WAIT_BUYER_PAY"

	createPath = "/api/charge/create"
	queryPath  = "/api/charge/query"
)

var (
	ErrConfigInvalid   = errors.New("payment gateway config invalid")
	ErrRequestFailed   = errors.New("payment gateway request failed")
	ErrResponseInvalid = errors.New("payment gateway response invalid")
)

// ChargeIntent 网关侧创建的支付单
type ChargeIntent struct {
	IntentID string
	PayURL   string
}

// ChargeStatus 支付单查询结果
type ChargeStatus struct {
	TradeNo     string
	TradeStatus string
	Amount      string
	Raw         map[string]interface{}
}

// Paid 判断网关是否已收款
func (s *ChargeStatus) Paid() bool {
	return s != nil && strings.EqualFold(strings.TrimSpace(s.TradeStatus), TradeStatusSuccess)
}

// Client 支付网关客户端（MD5 表单签名）
type Client struct {
	gatewayURL string
	merchantID string
	secret     string
	httpClient *http.Client
}

// NewClient 创建支付网关客户端
func NewClient(cfg config.PaymentConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		gatewayURL: strings.TrimRight(strings.TrimSpace(cfg.GatewayURL), "/"),
		merchantID: strings.TrimSpace(cfg.MerchantID),
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured 判断网关配置是否完整
func (c *Client) Configured() bool {
	return c != nil && c.gatewayURL != "" && c.merchantID != "" && c.secret != ""
}

// CreateCharge 在网关侧创建支付单，返回支付单号与收银台地址
func (c *Client) CreateCharge(ctx context.Context, orderNo, amount string) (*ChargeIntent, error) {
	if !c.Configured() {
		return nil, ErrConfigInvalid
	}
	if strings.TrimSpace(orderNo) == "" || strings.TrimSpace(amount) == "" {
		return nil, ErrConfigInvalid
	}

	params := map[string]string{
		"pid":          c.merchantID,
		"out_trade_no": orderNo,
		"money":        amount,
		"timestamp":    strconv.FormatInt(time.Now().Unix(), 10),
	}
	params["sign"] = signMD5(buildSignContent(params) + c.secret)

	respBytes, err := c.postForm(ctx, c.gatewayURL+createPath, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp struct {
		Code    int    `json:"code"`
		Msg     string `json:"msg"`
		TradeNo string `json:"trade_no"`
		PayURL  string `json:"pay_url"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 1 || strings.TrimSpace(resp.TradeNo) == "" {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	return &ChargeIntent{
		IntentID: strings.TrimSpace(resp.TradeNo),
		PayURL:   strings.TrimSpace(resp.PayURL),
	}, nil
}

// QueryCharge 查询订单在网关侧的支付状态
func (c *Client) QueryCharge(ctx context.Context, orderNo string) (*ChargeStatus, error) {
	if !c.Configured() {
		return nil, ErrConfigInvalid
	}
	if strings.TrimSpace(orderNo) == "" {
		return nil, ErrConfigInvalid
	}

	params := map[string]string{
		"pid":          c.merchantID,
		"out_trade_no": orderNo,
		"timestamp":    strconv.FormatInt(time.Now().Unix(), 10),
	}
	params["sign"] = signMD5(buildSignContent(params) + c.secret)

	respBytes, err := c.postForm(ctx, c.gatewayURL+queryPath, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		Code        int    `json:"code"`
		Msg         string `json:"msg"`
		TradeNo     string `json:"trade_no"`
		TradeStatus string `json:"trade_status"`
		Money       string `json:"money"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	return &ChargeStatus{
		TradeNo:     strings.TrimSpace(resp.TradeNo),
		TradeStatus: strings.TrimSpace(resp.TradeStatus),
		Amount:      strings.TrimSpace(resp.Money),
		Raw:         raw,
	}, nil
}

// SetHTTPClient 替换 HTTP 客户端（测试用）
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

// SetGatewayURL 替换网关地址（测试用）
func (c *Client) SetGatewayURL(gatewayURL string) {
	c.gatewayURL = strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
}

func (c *Client) postForm(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		values.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func buildSignContent(params map[string]string) string {
	var keys []string
	for k, v := range params {
		if v == "" {
			continue
		}
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return strings.Join(pairs, "&")
}

func signMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return strings.ToLower(hex.EncodeToString(sum[:]))
}
