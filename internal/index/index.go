package index

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/texcache/internal/domain"
)

// Scan 返回 root 下恰好两层深的 bundle 文件（<root>/<entry>/<name>.bundle），按路径字典序排列。
//
// 规则：
// - root 不存在：返回空列表
// - 以 '.' 开头的目录（.catalog 等内部状态）与临时文件不参与扫描
// - 只 stat，不读文件内容
func Scan(root string) ([]string, error) {
	root = filepath.Clean(root)

	paths := make([]string, 0, 64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root && errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipAll
			}
			// entry 可能在扫描期间被替换/删除：跳过即可，下一次扫描会看到稳定状态。
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1

		if d.IsDir() {
			if depth >= 2 || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if depth != 2 || !isBundle(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

func isBundle(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, domain.BundleExt)
}

// Parse 从 bundle 路径解析 AssetRecord（纯文本解析，不访问文件系统）。
//
// - Name：文件名第一个 '.' 之前的部分
// - Resolution：目录前缀 <name>_<res> 的最后一个 '_' 段
// - Categories/Tags：目录名第 2、3 段
func Parse(path string) (domain.AssetRecord, error) {
	base := filepath.Base(path)
	name := base
	if i := strings.Index(base, "."); i >= 0 {
		name = base[:i]
	}

	dir := filepath.Base(filepath.Dir(path))
	prefix, cats, tags, err := domain.ParseDirName(dir)
	if err != nil {
		return domain.AssetRecord{}, err
	}

	return domain.AssetRecord{
		Name:       name,
		Resolution: domain.ResolutionFromPrefix(prefix),
		Categories: cats,
		Tags:       tags,
		Path:       path,
	}, nil
}

// Filter 按分类过滤。category == "all" 时原样返回（仍按路径排序）。
// 返回值总是新切片，不与入参共享底层数组。
func Filter(records []domain.AssetRecord, category string) []domain.AssetRecord {
	out := make([]domain.AssetRecord, 0, len(records))
	for _, r := range records {
		if category == domain.CategoryAll || r.HasCategory(category) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Options 控制 Build 的行为。
type Options struct {
	// Strict=true：任一 entry 目录名无法解析即整体失败（fail-fast）。
	// 默认跳过并记录日志，单个损坏目录不会阻塞所有查询。
	Strict bool
	Logger *slog.Logger
}

// Snapshot 是一次 Build 的结果。
type Snapshot struct {
	Paths   []string             // 未过滤的 bundle 路径（字典序）
	Records []domain.AssetRecord // 过滤后的记录（字典序）
	Skipped []string             // 因目录名无法解析而跳过的路径
}

// Build = Scan + Parse + Filter。
func Build(root, category string, opts Options) (Snapshot, error) {
	paths, err := Scan(root)
	if err != nil {
		return Snapshot{}, err
	}

	records := make([]domain.AssetRecord, 0, len(paths))
	var skipped []string
	for _, p := range paths {
		rec, err := Parse(p)
		if err != nil {
			if opts.Strict {
				return Snapshot{}, err
			}
			skipped = append(skipped, p)
			if opts.Logger != nil {
				opts.Logger.Warn("跳过无法解析的缓存目录", "path", p, "error", err)
			}
			continue
		}
		records = append(records, rec)
	}

	return Snapshot{
		Paths:   paths,
		Records: Filter(records, category),
		Skipped: skipped,
	}, nil
}
