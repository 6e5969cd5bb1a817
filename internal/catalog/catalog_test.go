package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/texcache/internal/domain"
)

func TestParsePage_Fixture(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "bark_brown_02.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}

	job, err := ParsePage("bark_brown_02", "4k", html)
	if err != nil {
		t.Fatalf("ParsePage 失败：%v", err)
	}
	if job.ID == "" {
		t.Fatalf("期望生成 job ID")
	}
	if !reflect.DeepEqual(job.Categories, []string{"wood", "natural"}) {
		t.Fatalf("categories 不一致：%v", job.Categories)
	}
	if !reflect.DeepEqual(job.Tags, []string{"bark", "tree", "outdoor"}) {
		t.Fatalf("tags 不一致：%v", job.Tags)
	}
	if job.Dir != "bark_brown_02_4k.wood=natural.bark=tree=outdoor" {
		t.Fatalf("dir 不一致：%q", job.Dir)
	}
	if len(job.Files) != 2 {
		t.Fatalf("期望 2 个依赖文件，实际 %d", len(job.Files))
	}
	// 依赖文件按相对路径排序。
	if job.Files[0].RelPath != filepath.Join("textures", "bark_brown_02_diff_4k.jpg") {
		t.Fatalf("依赖文件顺序不符合预期：%+v", job.Files)
	}
	if job.Bundle.RelPath != "bark_brown_02.bundle" {
		t.Fatalf("bundle 路径不一致：%q", job.Bundle.RelPath)
	}
	if job.Bundle.URL != "https://dl.polyhaven.org/file/ph-assets/Textures/blend/4k/bark_brown_02/bark_brown_02_4k.blend" {
		t.Fatalf("bundle URL 不一致：%q", job.Bundle.URL)
	}
}

func TestParsePage_MissingResolution(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "bark_brown_02.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	_, err = ParsePage("bark_brown_02", "16k", html)
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("期望 ResolutionError，实际 %v", err)
	}
	// fixture 本身必须可解析：错误原因应是分辨率缺失，而不是 JSON 损坏。
	if !strings.Contains(re.Reason, "16k") {
		t.Fatalf("期望原因指向缺失的分辨率，实际 %q", re.Reason)
	}
	if _, err := ParsePage("bark_brown_02", "1k", html); err != nil {
		t.Fatalf("1k 应可解析：%v", err)
	}
}

func TestParsePage_MissingOrMalformedBlock(t *testing.T) {
	cases := map[string]string{
		"no-block":  `<html><body><p>hi</p></body></html>`,
		"bad-json":  `<html><body><script id="__NEXT_DATA__">{"props":</script></body></html>`,
		"no-data":   `<html><body><script id="__NEXT_DATA__">{"props":{"pageProps":{}}}</script></body></html>`,
		"no-bundle": `<html><body><script id="__NEXT_DATA__">{"props":{"pageProps":{"data":{"categories":[]},"files":{"blend":{"4k":{"blend":{"include":{}}}}}}}}</script></body></html>`,
		"escape":    `<html><body><script id="__NEXT_DATA__">{"props":{"pageProps":{"data":{"categories":[]},"files":{"blend":{"4k":{"blend":{"url":"u","include":{"../../etc/passwd":{"url":"x"}}}}}}}}}</script></body></html>`,
	}
	for name, html := range cases {
		_, err := ParsePage("rock", "4k", []byte(html))
		if !IsResolution(err) {
			t.Fatalf("%s：期望 ResolutionError，实际 %v", name, err)
		}
	}
}

func TestClient_List_PreservesOrderAndQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"zeta":{"name":"Z"},"alpha":{"name":"A"},"mid":{}}`))
	}))
	defer srv.Close()

	c := &Client{IndexURL: srv.URL, HTTP: srv.Client()}
	names, err := c.List(context.Background(), "wood")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !reflect.DeepEqual(names, []string{"zeta", "alpha", "mid"}) {
		t.Fatalf("顺序不一致：%v", names)
	}
	if gotQuery != "c=wood&t=textures" {
		t.Fatalf("query 不符合预期：%q", gotQuery)
	}

	if _, err := c.List(context.Background(), domain.CategoryAll); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if gotQuery != "t=textures" {
		t.Fatalf("category=all 不应带 c 参数：%q", gotQuery)
	}
}

func TestClient_List_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Client{IndexURL: srv.URL, HTTP: srv.Client()}
	_, err := c.List(context.Background(), "wood")
	if !IsNetwork(err) {
		t.Fatalf("期望 NetworkError，实际 %v", err)
	}
}

func TestClient_List_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	hc := srv.Client()
	hc.Timeout = 50 * time.Millisecond
	c := &Client{IndexURL: srv.URL, HTTP: hc}
	_, err := c.List(context.Background(), "wood")
	if !IsNetwork(err) {
		t.Fatalf("超时期望 NetworkError，实际 %v", err)
	}
}

func TestClient_Resolve(t *testing.T) {
	html, err := os.ReadFile(filepath.Join("testdata", "bark_brown_02.html"))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a/bark_brown_02" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(html)
	}))
	defer srv.Close()

	c := &Client{PageURL: srv.URL + "/a/", HTTP: srv.Client()}
	job, err := c.Resolve(context.Background(), "bark_brown_02", "1k")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(job.Files) != 2 || job.Resolution != "1k" {
		t.Fatalf("job 不符合预期：%+v", job)
	}

	_, err = c.Resolve(context.Background(), "missing", "1k")
	if !IsNetwork(err) {
		t.Fatalf("404 期望 NetworkError，实际 %v", err)
	}

	_, err = c.Resolve(context.Background(), "../etc", "1k")
	if !IsResolution(err) {
		t.Fatalf("非法名称期望 ResolutionError，实际 %v", err)
	}
}
