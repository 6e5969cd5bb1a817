package domain

import (
	"fmt"
	"strings"
)

// ParseError 表示 cache 子目录名不符合 prefix.cats.tags 三段式编码。
type ParseError struct {
	Dir    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("无法解析缓存目录名 %q：%s", e.Dir, e.Reason)
}

// EncodeDirName 把元数据编码进 entry 目录名：
//
//	<name>_<res>.<cat1>=<cat2>.<tag1>=<tag2>
//
// token 内会破坏编码的字符（'.'、'='、路径分隔符）替换为 '-'。
func EncodeDirName(name, resolution string, categories, tags []string) string {
	prefix := cleanToken(name) + "_" + cleanToken(resolution)
	return prefix + "." + joinTokens(categories) + "." + joinTokens(tags)
}

// ParseDirName 解析 EncodeDirName 的输出。空段解析为空列表。
func ParseDirName(dir string) (prefix string, categories, tags []string, err error) {
	parts := strings.Split(dir, ".")
	if len(parts) != 3 {
		return "", nil, nil, &ParseError{Dir: dir, Reason: fmt.Sprintf("期望 3 段，实际 %d 段", len(parts))}
	}
	if parts[0] == "" {
		return "", nil, nil, &ParseError{Dir: dir, Reason: "前缀为空"}
	}
	return parts[0], splitTokens(parts[1]), splitTokens(parts[2]), nil
}

// ResolutionFromPrefix 取 <name>_<res> 的最后一个 '_' 段。
func ResolutionFromPrefix(prefix string) string {
	i := strings.LastIndex(prefix, "_")
	if i < 0 {
		return ""
	}
	return prefix[i+1:]
}

var tokenReplacer = strings.NewReplacer(".", "-", "=", "-", "/", "-", "\\", "-")

func cleanToken(s string) string {
	return tokenReplacer.Replace(strings.TrimSpace(s))
}

func joinTokens(in []string) string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = cleanToken(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, "=")
}

func splitTokens(seg string) []string {
	if seg == "" {
		return []string{}
	}
	return strings.Split(seg, "=")
}
