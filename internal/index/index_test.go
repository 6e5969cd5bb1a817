package index

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/John-Robertt/texcache/internal/domain"
)

func TestScan_TwoLevelsSortedIgnoresInternal(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "rock_4k.stone.outdoor", "rock.bundle"))
	touch(t, filepath.Join(root, "bark_4k.wood.outdoor", "bark.bundle"))
	// 依赖文件、临时文件、第三层 bundle、内部目录都不应出现。
	touch(t, filepath.Join(root, "bark_4k.wood.outdoor", "textures", "bark_diff.jpg"))
	touch(t, filepath.Join(root, "bark_4k.wood.outdoor", "textures", "nested.bundle"))
	touch(t, filepath.Join(root, "bark_4k.wood.outdoor", ".bark.bundle.tmp-123"))
	touch(t, filepath.Join(root, ".catalog", "x.bundle"))
	touch(t, filepath.Join(root, "top.bundle"))

	got, err := Scan(root)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := []string{
		filepath.Join(root, "bark_4k.wood.outdoor", "bark.bundle"),
		filepath.Join(root, "rock_4k.stone.outdoor", "rock.bundle"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %v，实际 %v", want, got)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	got, err := Scan(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(got) != 0 {
		t.Fatalf("期望空列表，实际 %v", got)
	}
}

func TestParse(t *testing.T) {
	p := filepath.Join("/cache", "bark_brown_02_4k.wood=clean.outdoor=rough", "bark_brown_02.bundle")
	rec, err := Parse(p)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	want := domain.AssetRecord{
		Name:       "bark_brown_02",
		Resolution: "4k",
		Categories: []string{"wood", "clean"},
		Tags:       []string{"outdoor", "rough"},
		Path:       p,
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("期望 %+v，实际 %+v", want, rec)
	}
}

func TestParse_MalformedDir(t *testing.T) {
	_, err := Parse(filepath.Join("/cache", "bark_4k", "bark.bundle"))
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("期望 ParseError，实际 %v", err)
	}
}

func TestFilter_SubsetAndAll(t *testing.T) {
	records := []domain.AssetRecord{
		{Name: "c", Categories: []string{"wood"}, Path: "/r/c"},
		{Name: "a", Categories: []string{"wood", "clean"}, Path: "/r/a"},
		{Name: "b", Categories: []string{"fabric"}, Path: "/r/b"},
	}

	all := Filter(records, domain.CategoryAll)
	if len(all) != len(records) {
		t.Fatalf("all 应返回全部记录，实际 %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Path > all[i].Path {
			t.Fatalf("结果未按路径排序：%v", all)
		}
	}

	for _, c := range []string{"wood", "clean", "fabric", "metal"} {
		got := Filter(records, c)
		for _, r := range got {
			if !r.HasCategory(c) {
				t.Fatalf("category=%s 结果包含不匹配记录：%+v", c, r)
			}
			if !containsPath(records, r.Path) {
				t.Fatalf("结果不是输入的子集：%+v", r)
			}
		}
	}
	if got := Filter(records, "wood"); len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("wood 过滤结果不符合预期：%+v", got)
	}
	if got := Filter(records, "metal"); len(got) != 0 {
		t.Fatalf("metal 应为空，实际 %+v", got)
	}
}

func TestBuild_SkipMalformedByDefault(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "bark_4k.bark=wood.outdoor", "bark.bundle"))
	touch(t, filepath.Join(root, "broken_4k", "broken.bundle"))

	snap, err := Build(root, "bark", Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(snap.Paths) != 2 {
		t.Fatalf("期望 2 个原始路径，实际 %d", len(snap.Paths))
	}
	if len(snap.Records) != 1 || snap.Records[0].Name != "bark" {
		t.Fatalf("期望仅 bark，实际 %+v", snap.Records)
	}
	if len(snap.Skipped) != 1 {
		t.Fatalf("期望跳过 1 个，实际 %v", snap.Skipped)
	}
}

func TestBuild_StrictFailsFast(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "bark_4k.bark.outdoor", "bark.bundle"))
	touch(t, filepath.Join(root, "broken_4k", "broken.bundle"))

	_, err := Build(root, domain.CategoryAll, Options{Strict: true})
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("strict 模式期望 ParseError，实际 %v", err)
	}
}

func containsPath(records []domain.AssetRecord, p string) bool {
	for _, r := range records {
		if r.Path == p {
			return true
		}
	}
	return false
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
