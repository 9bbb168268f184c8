package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"neuralmail/pkg/core/config"
	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"

	json "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// client 基于 fasthttp 的网络服务实现
type client struct {
	mu           sync.RWMutex
	cfg          config.NetworkConfig
	http         *fasthttp.Client
	dial         fasthttp.DialFunc
	limiter      *rate.Limiter
	headers      map[string]string
	interceptors []Interceptor
	debug        bool
	log          *logger.Log
	err          *errorc.ErrorBuilder
}

func newClient(cfg config.NetworkConfig, log *logger.Log) *client {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultNetworkConfig().Timeout
	}

	c := &client{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		headers: make(map[string]string),
		log:     log,
		err:     errorc.NewErrorBuilder("NetworkService"),
	}
	if cfg.Proxy.Enabled {
		d := cfg.Proxy.GetDialer()
		c.dial = func(addr string) (net.Conn, error) {
			return d.Dial("tcp", addr)
		}
	}
	c.http = c.buildHTTP(false)
	return c
}

func (c *client) buildHTTP(isDebug bool) *fasthttp.Client {
	tlsConfig := &tls.Config{}
	if !isDebug {
		tlsConfig.MinVersion = tls.VersionTLS12
	}
	return &fasthttp.Client{
		Name:            "NeuralMail",
		ReadTimeout:     c.cfg.Timeout,
		WriteTimeout:    c.cfg.Timeout,
		MaxConnsPerHost: 16,
		TLSConfig:       tlsConfig,
		Dial:            c.dial,
	}
}

// ConfigureEnvironment 调试环境打印请求明细，正式环境要求 TLS1.2 以上
func (c *client) ConfigureEnvironment(isDebug bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debug = isDebug
	c.http = c.buildHTTP(isDebug)
}

func (c *client) SetCommonHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

func (c *client) RegisterInterceptor(i Interceptor) {
	if i == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
}

func (c *client) snapshot() (*fasthttp.Client, map[string]string, []Interceptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	interceptors := make([]Interceptor, len(c.interceptors))
	copy(interceptors, c.interceptors)
	return c.http, headers, interceptors, c.debug
}

func (c *client) Request(ctx context.Context, target Target, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.err.New("请求被限流取消", err).Timeout()
	}

	httpClient, headers, interceptors, debug := c.snapshot()

	req, err := c.buildRequest(target, headers)
	if err != nil {
		return err
	}
	for _, i := range interceptors {
		if err := i.Adapt(ctx, req); err != nil {
			return c.err.New("拦截器拒绝请求", err)
		}
	}

	start := time.Now()
	status, body, err := c.do(ctx, httpClient, req)
	if debug {
		c.log.WithField("method", req.Method).WithField("url", req.URL).WithField("status", status).
			WithField("cost", time.Since(start).String()).Debug("网络请求")
	}
	if err != nil {
		return err
	}

	if status < 200 || status > 299 {
		return c.statusError(status, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return c.err.New("解析响应失败", err).Third()
	}
	return nil
}

func (c *client) buildRequest(target Target, headers map[string]string) (*Request, error) {
	method := strings.ToUpper(target.Method)
	if method == "" {
		method = MethodGet
	}

	base := target.BaseURL
	if base == "" {
		base = c.cfg.BaseURL
	}
	rawURL := strings.TrimRight(base, "/")
	if target.Path != "" {
		rawURL += "/" + strings.TrimLeft(target.Path, "/")
	}

	for k, v := range target.Headers {
		headers[k] = v
	}
	req := &Request{Method: method, URL: rawURL, Header: headers}

	switch {
	case len(target.Multipart) > 0:
		body, contentType, err := encodeMultipart(target.Params, target.Multipart)
		if err != nil {
			return nil, c.err.New("构造上传请求失败", err)
		}
		req.Body = body
		req.Header["Content-Type"] = contentType
	case len(target.Params) == 0:
	case method == MethodGet || (target.Encoding == EncodingURL && method == MethodDelete):
		sep := "?"
		if strings.Contains(req.URL, "?") {
			sep = "&"
		}
		req.URL += sep + encodeValues(target.Params)
	case target.Encoding == EncodingURL:
		req.Body = []byte(encodeValues(target.Params))
		req.Header["Content-Type"] = contentTypeForm
	default:
		body, err := json.Marshal(target.Params)
		if err != nil {
			return nil, c.err.New("序列化请求参数失败", err)
		}
		req.Body = body
		req.Header["Content-Type"] = contentTypeJSON
	}
	return req, nil
}

func (c *client) do(ctx context.Context, httpClient *fasthttp.Client, r *Request) (int, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, c.err.New("请求已取消", err).Timeout()
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(r.Method)
	req.SetRequestURI(r.URL)
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	if len(r.Body) > 0 {
		req.SetBody(r.Body)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := httpClient.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return 0, nil, c.err.New("请求超时", err).Timeout()
		}
		return 0, nil, c.err.New("请求发送失败", err).Third()
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return resp.StatusCode(), body, nil
}

// statusError 从 JSON 错误体的 message/code 字段构造错误
func (c *client) statusError(status int, body []byte) error {
	se := &StatusError{StatusCode: status}
	if gjson.ValidBytes(body) {
		result := gjson.ParseBytes(body)
		se.Message = result.Get("message").String()
		se.Code = result.Get("code").String()
	}
	if se.Message == "" {
		se.Message = fasthttp.StatusMessage(status)
	}

	e := c.err.New(se.Message, se)
	switch status {
	case fasthttp.StatusUnauthorized:
		return e.NoAuth()
	case fasthttp.StatusForbidden:
		return e.WithCode(errorc.ErrorCodeForbidden)
	case fasthttp.StatusNotFound:
		return e.NotFound()
	case fasthttp.StatusBadRequest, fasthttp.StatusUnprocessableEntity:
		return e.ValidWithCtx()
	default:
		return e.Third()
	}
}

func encodeValues(params map[string]any) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, fmt.Sprint(v))
	}
	return values.Encode()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(params map[string]any, parts []MultipartPart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fmt.Sprint(params[k])); err != nil {
			return nil, "", err
		}
	}

	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.Name))
		if p.FileName != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(p.FileName))
		}
		h.Set("Content-Disposition", disposition)
		mimeType := p.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		h.Set("Content-Type", mimeType)

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(p.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
