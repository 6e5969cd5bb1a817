package domain

// AssetRecord 是缓存中一个已完整落盘的资源包（bundle）。
//
// 约束：
// - 只由磁盘上真实存在的 bundle 文件生成（下载方通过 rename 原子发布）
// - Categories/Tags 完全来自所在目录名（见 EncodeDirName），不依赖网络
type AssetRecord struct {
	Name       string
	Resolution string
	Categories []string
	Tags       []string
	Path       string // bundle 文件的本地路径
}

// HasCategory 判断 c 是否属于该资源的分类集合。
func (r AssetRecord) HasCategory(c string) bool {
	for _, x := range r.Categories {
		if x == c {
			return true
		}
	}
	return false
}

// CategoryAll 表示不过滤分类。
const CategoryAll = "all"

// BundleExt 是主资源包的文件扩展名。
const BundleExt = ".bundle"
