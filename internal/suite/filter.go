package suite

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter 决定是否运行某个用例
type Filter func(TestID) bool

// RegexFilters 命令行 -run / -skip 对应的正则过滤
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// AsFilter 用例路径需匹配 MustMatch（若有）且不匹配 MustNotMatch
func (r RegexFilters) AsFilter(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.matchPrefix(id.Path)) &&
		!r.MustNotMatch.matchFull(id.Path)
}

// RegexList 可重复的正则参数，每个模式按 / 分段逐级匹配用例路径
type RegexList struct {
	raw      []string
	patterns [][]*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.raw {
		ss = append(ss, `"`+p+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set 由命令行解析器调用
func (r *RegexList) Set(value string) error {
	var parts []*regexp.Regexp
	for _, elem := range strings.Split(value, "/") {
		rx, err := regexp.Compile(elem)
		if err != nil {
			return fmt.Errorf("invalid regex %q: %w", value, err)
		}
		parts = append(parts, rx)
	}
	r.raw = append(r.raw, value)
	r.patterns = append(r.patterns, parts)
	return nil
}

// IsDefined 是否设置了任意模式
func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

// AnyMatch 任一模式完整匹配路径即为真
func (r RegexList) AnyMatch(s string) bool {
	return r.matchFull(strings.Split(s, "/"))
}

// Values 返回原始模式文本
func (r RegexList) Values() []string {
	return append([]string(nil), r.raw...)
}

// matchPrefix 路径与模式的公共层级全部匹配；父用例因此不会被提前过滤
func (r RegexList) matchPrefix(path []string) bool {
	for _, p := range r.patterns {
		if matchElems(p, path) {
			return true
		}
	}
	return false
}

// matchFull 模式的每一级都有对应的路径段且匹配
func (r RegexList) matchFull(path []string) bool {
	for _, p := range r.patterns {
		if len(path) >= len(p) && matchElems(p, path) {
			return true
		}
	}
	return false
}

func matchElems(p []*regexp.Regexp, path []string) bool {
	for i := 0; i < len(p) && i < len(path); i++ {
		if !p[i].MatchString(path[i]) {
			return false
		}
	}
	return true
}
