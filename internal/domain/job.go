package domain

// FileSpec 是一个待下载文件：远端 URL + 相对 entry 目录的本地路径。
type FileSpec struct {
	URL     string
	RelPath string
}

// DownloadJob 是一次 catalog 条目解析的结果，只在下载期间存在。
// 下载成功后以文件形式落盘，之后由 index 重新解析为 AssetRecord。
type DownloadJob struct {
	ID         string // 仅用于日志关联
	Name       string
	Resolution string
	Categories []string
	Tags       []string

	// Dir 是 entry 目录名（相对 cache root），由 EncodeDirName 生成。
	Dir string

	Files  []FileSpec // 依赖文件（贴图等）
	Bundle FileSpec   // 主资源包；RelPath 固定为 <Name>.bundle
}
