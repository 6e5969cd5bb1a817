package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewCatalogClient_DefaultTimeout(t *testing.T) {
	c, err := NewCatalogClient("", 0)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Timeout != DefaultCatalogTimeout {
		t.Fatalf("期望 timeout=%s，实际=%s", DefaultCatalogTimeout, c.Timeout)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
}

func TestNewCatalogClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewCatalogClient("http://127.0.0.1:8080", 2*time.Second)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
	if c.Timeout != 2*time.Second {
		t.Fatalf("期望 timeout=2s，实际=%s", c.Timeout)
	}
}

func TestNewDownloadClient_NoTotalTimeout(t *testing.T) {
	c, err := NewDownloadClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Timeout != 0 {
		t.Fatalf("下载 client 不应设置总超时，实际=%s", c.Timeout)
	}
}

func TestNewDownloadClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewDownloadClient("http://[::1"); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, err := NewCatalogClient("", time.Second)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("请求失败：%v", err)
	}
	resp.Body.Close()
	if got == "" {
		t.Fatalf("期望设置 User-Agent")
	}
}

func TestClients_ConnectionFailureNotRetried(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		// 不写响应直接断开连接。
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack 失败：%v", err)
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	catalogClient, err := NewCatalogClient("", time.Second)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	downloadClient, err := NewDownloadClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	for name, c := range map[string]*http.Client{"catalog": catalogClient, "download": downloadClient} {
		mu.Lock()
		requests = 0
		mu.Unlock()

		if tr := c.Transport.(*Transport); tr.RetryMax != 0 {
			t.Fatalf("%s：期望 RetryMax=0，实际 %d", name, tr.RetryMax)
		}
		resp, err := c.Get(srv.URL)
		if err == nil {
			resp.Body.Close()
			t.Fatalf("%s：期望连接错误，但请求成功", name)
		}

		mu.Lock()
		got := requests
		mu.Unlock()
		if got != 1 {
			t.Fatalf("%s：连接失败不应重试，期望 1 次请求，实际 %d 次", name, got)
		}
	}
}
