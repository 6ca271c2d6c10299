package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Click 等待元素可见且未禁用后派发原生点击，不等待点击产生的副作用
func (s *Session) Click(ctx context.Context, id string, opts ...Option) error {
	el := s.Get(id, opts...)
	if err := el.Should(ctx, "to be visible and enabled", actionable); err != nil {
		return fmt.Errorf("click %s: %w", el.Selector(), err)
	}

	if _, err := s.page.Evaluate(ctx, scrollScript(id)); err != nil {
		return fmt.Errorf("click %s: scroll into view: %w", el.Selector(), err)
	}
	// 滚动后重新读取坐标
	st, err := s.snapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("click %s: %w", el.Selector(), err)
	}
	if ok, mismatch := actionable(st); !ok {
		return fmt.Errorf("click %s: element changed before click: %s", el.Selector(), mismatch)
	}

	s.log.Debug("点击元素", "testid", id, "x", st.X, "y", st.Y)
	if err := s.page.DispatchClick(ctx, st.X, st.Y); err != nil {
		return fmt.Errorf("click %s: %w", el.Selector(), err)
	}
	return nil
}

// SelectOption 等待 select 可操作且存在对应选项（按 value 或文本匹配）后选中并派发 input/change 事件
func (s *Session) SelectOption(ctx context.Context, id, value string, opts ...Option) error {
	el := s.Get(id, opts...)
	err := el.Should(ctx, fmt.Sprintf("to be a visible, enabled <select> with option %q", value), func(st ElementState) (bool, string) {
		if ok, mismatch := actionable(st); !ok {
			return false, mismatch
		}
		if st.Tag != "select" {
			return false, fmt.Sprintf("it is <%s>, not <select>", st.Tag)
		}
		if !hasOption(st.Options, value) {
			return false, fmt.Sprintf("its options are %s", describeOptions(st.Options))
		}
		return true, ""
	})
	if err != nil {
		return fmt.Errorf("select %q on %s: %w", value, el.Selector(), err)
	}

	raw, err := s.page.Evaluate(ctx, selectScript(id, value))
	if err != nil {
		return fmt.Errorf("select %q on %s: %w", value, el.Selector(), err)
	}
	res := gjson.ParseBytes(raw)
	if !res.Get("ok").Bool() {
		return fmt.Errorf("select %q on %s: %s", value, el.Selector(), res.Get("reason").String())
	}
	s.log.Debug("选择选项", "testid", id, "value", res.Get("value").String())
	return nil
}

func actionable(st ElementState) (bool, string) {
	if ok, mismatch := visible(st); !ok {
		return false, mismatch
	}
	if st.Disabled {
		return false, "it is disabled"
	}
	return true, ""
}

func hasOption(opts []OptionState, value string) bool {
	for _, o := range opts {
		if o.Value == value || strings.TrimSpace(o.Text) == value {
			return true
		}
	}
	return false
}

func describeOptions(opts []OptionState) string {
	if len(opts) == 0 {
		return "empty"
	}
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		parts = append(parts, fmt.Sprintf("%q", o.Value))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
