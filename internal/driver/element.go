package driver

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Element 按测试标识定位的元素，所有断言均为轮询断言
type Element struct {
	s    *Session
	id   string
	opts []Option
}

// Get 按 data-testid 查找元素
func (s *Session) Get(id string, opts ...Option) *Element {
	return &Element{s: s, id: id, opts: opts}
}

// WithTimeout 返回使用新超时的副本
func (e *Element) WithTimeout(d time.Duration) *Element {
	opts := append(append([]Option(nil), e.opts...), WithTimeout(d))
	return &Element{s: e.s, id: e.id, opts: opts}
}

// Selector 返回 CSS 选择器
func (e *Element) Selector() string {
	return fmt.Sprintf("[data-testid=%q]", e.id)
}

// State 读取一次即时状态，不重试
func (e *Element) State(ctx context.Context) (ElementState, error) {
	return e.s.snapshot(ctx, e.id)
}

// Should 轮询直到谓词对元素状态成立
func (e *Element) Should(ctx context.Context, description string, pred func(ElementState) (bool, string)) error {
	desc := e.Selector() + " " + description
	check := func(ctx context.Context) (bool, string, error) {
		st, err := e.s.snapshot(ctx, e.id)
		if err != nil {
			return false, "", err
		}
		ok, mismatch := pred(st)
		return ok, mismatch, nil
	}
	return e.s.Eventually(ctx, desc, check, e.opts...)
}

// ShouldExist 元素出现在 DOM 中
func (e *Element) ShouldExist(ctx context.Context) error {
	return e.Should(ctx, "to exist", func(st ElementState) (bool, string) {
		return st.Exists, "it does not exist"
	})
}

// ShouldNotExist 元素不在 DOM 中（从未渲染或已移除都满足）
func (e *Element) ShouldNotExist(ctx context.Context) error {
	return e.Should(ctx, "not to exist", func(st ElementState) (bool, string) {
		return !st.Exists, fmt.Sprintf("it exists as <%s>", st.Tag)
	})
}

// ShouldBeVisible 元素存在、有非零尺寸且未隐藏
func (e *Element) ShouldBeVisible(ctx context.Context) error {
	return e.Should(ctx, "to be visible", visible)
}

// ShouldContainText 元素文本包含给定内容
func (e *Element) ShouldContainText(ctx context.Context, text string) error {
	return e.Should(ctx, fmt.Sprintf("to contain text %q", text), func(st ElementState) (bool, string) {
		if !st.Exists {
			return false, "it does not exist"
		}
		return strings.Contains(st.Text, text), fmt.Sprintf("its text is %q", st.Text)
	})
}

// ShouldHaveAttrContaining 属性存在且包含给定内容
func (e *Element) ShouldHaveAttrContaining(ctx context.Context, name, substr string) error {
	return e.Should(ctx, fmt.Sprintf("to have attribute %s containing %q", name, substr), func(st ElementState) (bool, string) {
		if !st.Exists {
			return false, "it does not exist"
		}
		v, ok := st.Attr(name)
		if !ok {
			return false, fmt.Sprintf("it has no attribute %s", name)
		}
		return strings.Contains(v, substr), fmt.Sprintf("%s is %q", name, v)
	})
}

// ShouldBeDisabled 元素处于禁用状态
func (e *Element) ShouldBeDisabled(ctx context.Context) error {
	return e.Should(ctx, "to be disabled", func(st ElementState) (bool, string) {
		if !st.Exists {
			return false, "it does not exist"
		}
		return st.Disabled, "it is enabled"
	})
}

// ShouldBeEnabled 元素未被禁用
func (e *Element) ShouldBeEnabled(ctx context.Context) error {
	return e.Should(ctx, "to be enabled", func(st ElementState) (bool, string) {
		if !st.Exists {
			return false, "it does not exist"
		}
		return !st.Disabled, "it is disabled"
	})
}

// Count 选项数量约束
type Count struct {
	op string
	n  int
}

// Exactly 数量等于 n
func Exactly(n int) Count { return Count{op: "==", n: n} }

// MoreThan 数量大于 n
func MoreThan(n int) Count { return Count{op: ">", n: n} }

func (c Count) holds(v int) bool {
	if c.op == ">" {
		return v > c.n
	}
	return v == c.n
}

func (c Count) String() string {
	if c.op == ">" {
		return fmt.Sprintf("more than %d", c.n)
	}
	return fmt.Sprintf("exactly %d", c.n)
}

// ShouldHaveOptionCount select 元素的选项数量满足约束
func (e *Element) ShouldHaveOptionCount(ctx context.Context, c Count) error {
	return e.Should(ctx, fmt.Sprintf("to have %s option(s)", c), func(st ElementState) (bool, string) {
		if !st.Exists {
			return false, "it does not exist"
		}
		return c.holds(len(st.Options)), fmt.Sprintf("it has %d option(s)", len(st.Options))
	})
}

// Attr 等待元素存在后读取属性
func (e *Element) Attr(ctx context.Context, name string) (string, error) {
	var val string
	err := e.Should(ctx, "to have attribute "+name, func(st ElementState) (bool, string) {
		if !st.Exists {
			return false, "it does not exist"
		}
		v, ok := st.Attr(name)
		val = v
		return ok, fmt.Sprintf("it has no attribute %s", name)
	})
	return val, err
}

// Text 等待元素存在后读取文本
func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.Should(ctx, "to exist", func(st ElementState) (bool, string) {
		text = st.Text
		return st.Exists, "it does not exist"
	})
	return text, err
}

// Options 等待元素存在后读取 select 选项
func (e *Element) Options(ctx context.Context) ([]OptionState, error) {
	var opts []OptionState
	err := e.Should(ctx, "to exist", func(st ElementState) (bool, string) {
		opts = st.Options
		return st.Exists, "it does not exist"
	})
	return opts, err
}

func visible(st ElementState) (bool, string) {
	switch {
	case !st.Exists:
		return false, "it does not exist"
	case st.Hidden:
		return false, "it is hidden"
	case st.Width <= 0 || st.Height <= 0:
		return false, fmt.Sprintf("it has rendered size %gx%g", st.Width, st.Height)
	}
	return true, ""
}
