package network

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"neuralmail/pkg/core/config"
	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type captured struct {
	mu      sync.Mutex
	hits    int
	method  string
	uri     string
	ctype   string
	body    string
	headers map[string]string
}

func (c *captured) record(ctx *fasthttp.RequestCtx) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits++
	c.method = string(ctx.Method())
	c.uri = string(ctx.RequestURI())
	c.ctype = string(ctx.Request.Header.ContentType())
	c.body = string(ctx.PostBody())
	c.headers = make(map[string]string)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		c.headers[string(k)] = string(v)
	})
}

func (c *captured) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

func testLog() *logger.Log {
	return logger.NewLogger("error", io.Discard)
}

func testConfig() config.NetworkConfig {
	cfg := config.DefaultNetworkConfig()
	cfg.BaseURL = "http://api.test/v1"
	cfg.Timeout = 2 * time.Second
	cfg.RateLimit = 0
	return cfg
}

func serve(t *testing.T, handler fasthttp.RequestHandler) *fasthttputil.InmemoryListener {
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func dialer(ln *fasthttputil.InmemoryListener) fasthttp.DialFunc {
	return func(addr string) (net.Conn, error) { return ln.Dial() }
}

func newTestClient(t *testing.T, cfg config.NetworkConfig, handler fasthttp.RequestHandler) *client {
	ln := serve(t, handler)
	c := newClient(cfg, testLog())
	c.dial = dialer(ln)
	c.ConfigureEnvironment(true)
	return c
}

// TestClient_GetQuery 测试 GET 参数编码到查询串并解码响应
func TestClient_GetQuery(t *testing.T) {
	var got captured
	c := newTestClient(t, testConfig(), func(ctx *fasthttp.RequestCtx) {
		got.record(ctx)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"items":[1,2],"total":2}`)
	})

	var out struct {
		Items []int `json:"items"`
		Total int   `json:"total"`
	}
	err := c.Request(context.Background(), Target{Path: "/mail/list", Method: MethodGet, Params: map[string]any{"q": "hi there", "page": 2}}, &out)
	require.NoError(t, err)

	assert.Equal(t, "GET", got.method)
	assert.Equal(t, "/v1/mail/list?page=2&q=hi+there", got.uri)
	assert.Equal(t, []int{1, 2}, out.Items)
	assert.Equal(t, 2, out.Total)
}

// TestClient_PostJSONAndInterceptors 测试 JSON 请求体、公共头与拦截器顺序
func TestClient_PostJSONAndInterceptors(t *testing.T) {
	var got captured
	c := newTestClient(t, testConfig(), func(ctx *fasthttp.RequestCtx) {
		got.record(ctx)
		ctx.SetStatusCode(fasthttp.StatusCreated)
	})

	c.SetCommonHeader("X-App-Version", "1.2")
	c.RegisterInterceptor(InterceptorFunc(func(ctx context.Context, req *Request) error {
		req.Header["Authorization"] = "Bearer tok"
		return nil
	}))
	c.RegisterInterceptor(InterceptorFunc(func(ctx context.Context, req *Request) error {
		req.Header["X-Seen-Auth"] = req.Header["Authorization"]
		return nil
	}))

	target := Target{
		Path:    "auth/login",
		Method:  MethodPost,
		Params:  map[string]any{"email": "a@b.co"},
		Headers: map[string]string{"X-Trace": "t1"},
	}
	require.NoError(t, c.Request(context.Background(), target, nil))

	assert.Equal(t, "POST", got.method)
	assert.Equal(t, "/v1/auth/login", got.uri)
	assert.Equal(t, contentTypeJSON, got.ctype)
	assert.JSONEq(t, `{"email":"a@b.co"}`, got.body)
	assert.Equal(t, "1.2", got.headers["X-App-Version"])
	assert.Equal(t, "t1", got.headers["X-Trace"])
	assert.Equal(t, "Bearer tok", got.headers["Authorization"])
	assert.Equal(t, "Bearer tok", got.headers["X-Seen-Auth"])
}

// TestClient_FormEncoding 测试 URL 编码的表单请求体
func TestClient_FormEncoding(t *testing.T) {
	var got captured
	c := newTestClient(t, testConfig(), func(ctx *fasthttp.RequestCtx) {
		got.record(ctx)
	})

	target := Target{Path: "/feedback", Method: MethodPost, Encoding: EncodingURL, Params: map[string]any{"a": 1, "b": "x y"}}
	require.NoError(t, c.Request(context.Background(), target, nil))
	assert.Equal(t, contentTypeForm, got.ctype)
	assert.Equal(t, "a=1&b=x+y", got.body)
}

// TestClient_Multipart 测试附件分段上传
func TestClient_Multipart(t *testing.T) {
	type upload struct {
		subject  string
		filename string
		data     string
	}
	var mu sync.Mutex
	var got upload
	c := newTestClient(t, testConfig(), func(ctx *fasthttp.RequestCtx) {
		form, err := ctx.MultipartForm()
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		got.subject = form.Value["subject"][0]
		fh := form.File["attachment"][0]
		got.filename = fh.Filename
		f, _ := fh.Open()
		b, _ := io.ReadAll(f)
		_ = f.Close()
		got.data = string(b)
	})

	target := Target{
		Path:      "/mail/attachments",
		Method:    MethodPost,
		Params:    map[string]any{"subject": "report"},
		Multipart: []MultipartPart{{Name: "attachment", FileName: "q3.txt", MimeType: "text/plain", Data: []byte("numbers")}},
	}
	require.NoError(t, c.Request(context.Background(), target, nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, upload{subject: "report", filename: "q3.txt", data: "numbers"}, got)
}

// TestClient_StatusError 测试非 2xx 响应转换为错误，消息取自 message 字段
func TestClient_StatusError(t *testing.T) {
	c := newTestClient(t, testConfig(), func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/v1/expired":
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			ctx.SetBodyString(`{"message":"token expired","code":"E401"}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("oops")
		}
	})

	err := c.Request(context.Background(), Target{Path: "/expired"}, nil)
	require.Error(t, err)
	assert.True(t, errorc.HasCode(err, errorc.ErrorCodeNoAuth))
	se, ok := AsStatus(err)
	require.True(t, ok)
	assert.Equal(t, 401, se.StatusCode)
	assert.Equal(t, "E401", se.Code)
	assert.Equal(t, "token expired", se.Message)

	err = c.Request(context.Background(), Target{Path: "/broken"}, nil)
	se, ok = AsStatus(err)
	require.True(t, ok)
	assert.Equal(t, "Internal Server Error", se.Message)
	assert.True(t, errorc.HasCode(err, errorc.ErrorCodeThird))
}

// TestClient_InterceptorAbort 测试拦截器返回错误时不发送请求
func TestClient_InterceptorAbort(t *testing.T) {
	var got captured
	c := newTestClient(t, testConfig(), func(ctx *fasthttp.RequestCtx) { got.record(ctx) })
	denied := errors.New("no session")
	c.RegisterInterceptor(InterceptorFunc(func(ctx context.Context, req *Request) error { return denied }))

	err := c.Request(context.Background(), Target{Path: "/x"}, nil)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 0, got.Hits())
}

// TestClient_RateLimit 测试限流等待遵循 context 超时
func TestClient_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 0.01
	cfg.Burst = 1
	c := newTestClient(t, cfg, func(ctx *fasthttp.RequestCtx) {})

	require.NoError(t, c.Request(context.Background(), Target{Path: "/a"}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Request(ctx, Target{Path: "/b"}, nil)
	require.Error(t, err)
	assert.True(t, errorc.HasCode(err, errorc.ErrorCodeTimeout))
}

// TestModule_Start 测试启动时设置 User-Agent 与版本头
func TestModule_Start(t *testing.T) {
	var got captured
	ln := serve(t, func(ctx *fasthttp.RequestCtx) { got.record(ctx) })

	m := NewModule(testConfig(), "2.3", testLog())
	m.client.dial = dialer(ln)

	r := modular.NewRegistry(testLog())
	m.RegisterServices(r)
	svc, ok := modular.Resolve[Service](r)
	require.True(t, ok)

	require.NoError(t, m.Start(context.Background(), modular.NewLaunchContext(nil, false)))
	require.NoError(t, svc.Request(context.Background(), Target{Path: "/ping"}, nil))

	assert.Equal(t, UserAgent("2.3"), got.headers["User-Agent"])
	assert.Contains(t, got.headers["User-Agent"], "NeuralMail/2.3 (Go; ")
	assert.Equal(t, "2.3", got.headers["X-App-Version"])
	assert.Equal(t, modular.PriorityHigh, m.Priority())
}
