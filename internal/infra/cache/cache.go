package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/texcache/internal/domain"
	"github.com/John-Robertt/texcache/internal/infra/fsx"
)

// Store 描述 cache root 的磁盘布局：
//
//	<root>/<name>_<res>.<cats>.<tags>/<name>.bundle   资源 entry（见 domain.EncodeDirName）
//	<root>/.catalog/<type>-<category>.json           最近一次成功的 catalog 列表
//	<root>/.texcache.lock                            跨进程 populate 锁
//
// 约束：
// - ReadOnly=true 时拒绝一切写入
// - 以 '.' 开头的目录不是 entry（index 扫描只匹配 entry 目录下的 *.bundle）
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// EntryDir 返回 entry 目录的绝对路径。
func (s Store) EntryDir(dirName string) string {
	return filepath.Join(s.Root, dirName)
}

// BundleName 返回 entry 内主资源包的文件名。
func BundleName(name string) string {
	return name + domain.BundleExt
}

// FindBundle 查找 <name>_<res>.* 目录下已完整落盘的 <name>.bundle。
// root 不存在不算错误。
func (s Store) FindBundle(name, resolution string) (string, bool, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}

	prefix := name + "_" + resolution + "."
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		p := filepath.Join(s.Root, e.Name(), BundleName(name))
		fi, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", false, err
		}
		if fi.Mode().IsRegular() {
			return p, true, nil
		}
	}
	return "", false, nil
}

// LockPath 返回跨进程 populate 锁文件路径。
func (s Store) LockPath() string {
	return filepath.Join(s.Root, ".texcache.lock")
}

// CatalogSnapshotPath 返回 catalog 列表快照的绝对路径。
func (s Store) CatalogSnapshotPath(assetType, category string) (string, error) {
	t, err := cleanKey(assetType)
	if err != nil {
		return "", err
	}
	c, err := cleanKey(category)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, ".catalog", t+"-"+c+".json"), nil
}

// ReadCatalogSnapshot 读取 catalog 列表快照；不存在时 ok=false。
func (s Store) ReadCatalogSnapshot(assetType, category string) ([]string, bool, error) {
	path, err := s.CatalogSnapshotPath(assetType, category)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return nil, false, fmt.Errorf("catalog 快照 %q 损坏：%w", path, err)
	}
	return names, true, nil
}

func (s Store) WriteCatalogSnapshot(assetType, category string, names []string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.CatalogSnapshotPath(assetType, category)
	if err != nil {
		return err
	}
	b, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), b)
}

var keyUnsafeRE = regexp.MustCompile(`[^a-z0-9_-]`)

// cleanKey 把 key 规范为文件名安全的形式：小写，[a-z0-9_-] 以外的字符替换为 '-'。
// 例如 "wood,clean" => "wood-clean"，"../etc" => "---etc"。
func cleanKey(k string) (string, error) {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return "", fmt.Errorf("key 不能为空")
	}
	return keyUnsafeRE.ReplaceAllString(k, "-"), nil
}
