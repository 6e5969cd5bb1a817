package assets

import (
	"context"

	"github.com/John-Robertt/texcache/internal/domain"
)

// Handle 是宿主环境导入 bundle 后返回的对象，对本包不透明。
type Handle any

// HostLoader 把 bundle 文件导入宿主环境（例如 3D 软件的材质库）。
// 导入逻辑不属于本模块，由调用方注入。
type HostLoader interface {
	Load(ctx context.Context, path string) (Handle, error)
}

// LoadIntoHost 把 rec 对应的 bundle 交给注入的 HostLoader。
func (m *Manager) LoadIntoHost(ctx context.Context, rec domain.AssetRecord) (Handle, error) {
	if m.loader == nil {
		return nil, ErrNoHostLoader
	}
	return m.loader.Load(ctx, rec.Path)
}
