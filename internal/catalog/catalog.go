package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/John-Robertt/texcache/internal/domain"
)

const (
	DefaultIndexURL  = "https://api.polyhaven.com/assets"
	DefaultPageURL   = "https://polyhaven.com/a"
	DefaultAssetType = "textures"
)

// Lister 列出某分类下的 catalog entry 名称（保持远端顺序）。
type Lister interface {
	List(ctx context.Context, category string) ([]string, error)
}

// Resolver 把 entry 名称 + 分辨率解析为可下载的 DownloadJob。
type Resolver interface {
	Resolve(ctx context.Context, name, resolution string) (domain.DownloadJob, error)
}

// Client 是远端 catalog 的最小抽象：一次列表请求 + 每个 entry 一次页面请求。
//
// 约束：
// - 不做缓存、不做状态码重试（由 populate/download 层决定）
// - 超时由 HTTP client 的 Timeout 决定（见 httpx.NewCatalogClient）
type Client struct {
	IndexURL  string
	PageURL   string
	AssetType string
	HTTP      *http.Client
}

var (
	_ Lister   = (*Client)(nil)
	_ Resolver = (*Client)(nil)
)

func (c *Client) indexURL() string {
	if u := strings.TrimSpace(c.IndexURL); u != "" {
		return u
	}
	return DefaultIndexURL
}

func (c *Client) pageURL() string {
	if u := strings.TrimSpace(c.PageURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	return DefaultPageURL
}

func (c *Client) assetType() string {
	if t := strings.TrimSpace(c.AssetType); t != "" {
		return t
	}
	return DefaultAssetType
}

// List 请求 {index}?t=<type>&c=<category>，返回 JSON 对象的 key（文档顺序）。
// category 为 "all" 时不带 c 参数。
func (c *Client) List(ctx context.Context, category string) ([]string, error) {
	q := url.Values{}
	q.Set("t", c.assetType())
	if category != "" && category != domain.CategoryAll {
		q.Set("c", category)
	}
	u := c.indexURL() + "?" + q.Encode()

	b, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(b) {
		return nil, &NetworkError{URL: u, Err: errors.New("响应不是合法 JSON")}
	}
	doc := gjson.ParseBytes(b)
	if !doc.IsObject() {
		return nil, &NetworkError{URL: u, Err: errors.New("响应不是 JSON 对象")}
	}

	names := make([]string, 0, 64)
	doc.ForEach(func(key, _ gjson.Result) bool {
		if k := strings.TrimSpace(key.String()); k != "" {
			names = append(names, k)
		}
		return true
	})
	return names, nil
}

var (
	nameRE       = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	resolutionRE = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// Resolve 抓取 {page}/{name}，从 script#__NEXT_DATA__ 中读取分类、标签、依赖文件与 bundle URL。
func (c *Client) Resolve(ctx context.Context, name, resolution string) (domain.DownloadJob, error) {
	if !nameRE.MatchString(name) {
		return domain.DownloadJob{}, &ResolutionError{Name: name, Resolution: resolution, Reason: "非法 entry 名称"}
	}
	if !resolutionRE.MatchString(resolution) {
		return domain.DownloadJob{}, &ResolutionError{Name: name, Resolution: resolution, Reason: "非法分辨率"}
	}

	pageURL := c.pageURL() + "/" + url.PathEscape(name)
	html, err := c.get(ctx, pageURL)
	if err != nil {
		return domain.DownloadJob{}, err
	}
	return ParsePage(name, resolution, html)
}

// ParsePage 是 Resolve 的纯解析部分：相同输入 => 相同输出（Job.ID 除外）。
func ParsePage(name, resolution string, html []byte) (domain.DownloadJob, error) {
	fail := func(format string, args ...any) (domain.DownloadJob, error) {
		return domain.DownloadJob{}, &ResolutionError{Name: name, Resolution: resolution, Reason: fmt.Sprintf(format, args...)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return fail("HTML 解析失败：%v", err)
	}
	raw := strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text())
	if raw == "" {
		return fail("页面缺少 __NEXT_DATA__ 元数据块")
	}
	if !gjson.Valid(raw) {
		return fail("__NEXT_DATA__ 不是合法 JSON")
	}

	props := gjson.Get(raw, "props.pageProps")
	data := props.Get("data")
	if !data.Exists() {
		return fail("元数据缺少 data 字段")
	}
	cats := stringList(data.Get("categories"))
	tags := stringList(data.Get("tags"))

	blend := props.Get("files.blend." + resolution + ".blend")
	if !blend.Exists() {
		return fail("不存在分辨率 %s", resolution)
	}
	bundleURL := strings.TrimSpace(blend.Get("url").String())
	if bundleURL == "" {
		return fail("缺少 bundle 下载地址")
	}

	var (
		files  []domain.FileSpec
		badRel string
	)
	blend.Get("include").ForEach(func(key, val gjson.Result) bool {
		rel := filepath.Clean(filepath.FromSlash(key.String()))
		if !filepath.IsLocal(rel) {
			badRel = key.String()
			return false
		}
		u := strings.TrimSpace(val.Get("url").String())
		if u == "" {
			badRel = key.String()
			return false
		}
		files = append(files, domain.FileSpec{URL: u, RelPath: rel})
		return true
	})
	if badRel != "" {
		return fail("非法依赖文件条目：%q", badRel)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	return domain.DownloadJob{
		ID:         uuid.NewString(),
		Name:       name,
		Resolution: resolution,
		Categories: cats,
		Tags:       tags,
		Dir:        domain.EncodeDirName(name, resolution, cats, tags),
		Files:      files,
		Bundle:     domain.FileSpec{URL: bundleURL, RelPath: name + domain.BundleExt},
	}, nil
}

func stringList(r gjson.Result) []string {
	out := make([]string, 0, 8)
	for _, v := range r.Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	hc := c.HTTP
	if hc == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: u, StatusCode: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: u, Err: err}
	}
	return b, nil
}
