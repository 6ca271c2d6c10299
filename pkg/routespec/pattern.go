package routespec

import (
	"net/url"
	"sort"
	"strings"

	"cdpharness/pkg/model"
	"cdpharness/pkg/traffic"
)

// Pattern 解析后的 URL 匹配模式
type Pattern struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Prefix bool              // 路径以 * 结尾时按前缀匹配
	Query  map[string]string // 请求必须包含且值相等的查询参数
}

// ParsePattern 解析 URL 模式，支持绝对路径、带查询参数的路径和完整 URL
func ParsePattern(raw string) (*Pattern, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, &model.ConfigurationError{Pattern: raw, Reason: "empty pattern"}
	}
	if !strings.HasPrefix(s, "/") && !strings.Contains(s, "://") {
		return nil, &model.ConfigurationError{Pattern: raw, Reason: "must be an absolute path or a full URL"}
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, &model.ConfigurationError{Pattern: raw, Reason: "unparsable URL", Err: err}
	}
	if u.Fragment != "" {
		return nil, &model.ConfigurationError{Pattern: raw, Reason: "fragments are never sent to the server"}
	}

	p := &Pattern{Raw: raw, Path: u.Path}
	if u.Scheme != "" {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, &model.ConfigurationError{Pattern: raw, Reason: "unsupported scheme " + u.Scheme}
		}
		if u.Host == "" {
			return nil, &model.ConfigurationError{Pattern: raw, Reason: "missing host"}
		}
		p.Scheme = strings.ToLower(u.Scheme)
		p.Host = strings.ToLower(u.Host)
	}
	if p.Path == "" {
		p.Path = "/"
	}

	if i := strings.Index(p.Path, "*"); i != -1 {
		if i != len(p.Path)-1 {
			return nil, &model.ConfigurationError{Pattern: raw, Reason: "only a trailing * is supported"}
		}
		p.Prefix = true
		p.Path = strings.TrimSuffix(p.Path, "*")
	}

	if u.RawQuery != "" {
		values, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return nil, &model.ConfigurationError{Pattern: raw, Reason: "unparsable query", Err: err}
		}
		p.Query = make(map[string]string, len(values))
		for k, vs := range values {
			if k == "" {
				return nil, &model.ConfigurationError{Pattern: raw, Reason: "empty query key"}
			}
			if len(vs) > 1 {
				return nil, &model.ConfigurationError{Pattern: raw, Reason: "repeated query key " + k}
			}
			p.Query[k] = vs[0]
		}
	}
	return p, nil
}

// Match 判断请求是否满足模式：路径相等，模式中的查询参数必须全部出现且值相等
func (p *Pattern) Match(req *traffic.Request) bool {
	if p.Scheme != "" && !strings.EqualFold(req.Scheme, p.Scheme) {
		return false
	}
	if p.Host != "" && !strings.EqualFold(req.Host, p.Host) {
		return false
	}
	if p.Prefix {
		if !strings.HasPrefix(req.Path, p.Path) {
			return false
		}
	} else if req.Path != p.Path {
		return false
	}
	for k, want := range p.Query {
		got, ok := req.Query[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// String 返回模式的规范形式
func (p *Pattern) String() string {
	var b strings.Builder
	if p.Scheme != "" {
		b.WriteString(p.Scheme + "://" + p.Host)
	}
	b.WriteString(p.Path)
	if p.Prefix {
		b.WriteString("*")
	}
	if len(p.Query) > 0 {
		keys := make([]string, 0, len(p.Query))
		for k := range p.Query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				b.WriteString("?")
			} else {
				b.WriteString("&")
			}
			b.WriteString(url.QueryEscape(k) + "=" + url.QueryEscape(p.Query[k]))
		}
	}
	return b.String()
}
