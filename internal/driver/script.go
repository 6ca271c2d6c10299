package driver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// 页面脚本统一写成 /*name*/((args) => {...})(argsJSON) 的形式
const (
	scriptSnapshot = "snapshot"
	scriptScroll   = "scroll"
	scriptSelect   = "select"
)

const findByTestID = `const el = document.querySelector('[data-testid="' + CSS.escape(args.id) + '"]');`

const snapshotBody = findByTestID + `
  if (!el) return { exists: false };
  const r = el.getBoundingClientRect();
  const st = window.getComputedStyle(el);
  const attrs = {};
  for (const a of el.attributes) attrs[a.name] = a.value;
  const out = {
    exists: true,
    tag: el.tagName.toLowerCase(),
    text: el.textContent || '',
    attrs: attrs,
    disabled: !!el.disabled || el.getAttribute('aria-disabled') === 'true',
    hidden: el.hidden || st.display === 'none' || st.visibility === 'hidden' || st.visibility === 'collapse',
    width: r.width,
    height: r.height,
    x: r.left + r.width / 2,
    y: r.top + r.height / 2,
    options: []
  };
  if (el.value !== undefined) out.value = String(el.value);
  if (el.tagName === 'SELECT') {
    for (const o of el.options) out.options.push({ value: o.value, text: o.text, selected: o.selected });
  }
  return out;`

const scrollBody = findByTestID + `
  if (!el) return false;
  el.scrollIntoView({ block: 'center', inline: 'center' });
  return true;`

const selectBody = findByTestID + `
  if (!el) return { ok: false, reason: 'element not found' };
  if (el.tagName !== 'SELECT') return { ok: false, reason: 'element is <' + el.tagName.toLowerCase() + '>, not <select>' };
  const opts = Array.from(el.options);
  let opt = opts.find(o => o.value === args.value);
  if (!opt) opt = opts.find(o => o.text.trim() === args.value);
  if (!opt) return { ok: false, reason: 'no option with value or text ' + JSON.stringify(args.value) };
  const setter = Object.getOwnPropertyDescriptor(HTMLSelectElement.prototype, 'value').set;
  setter.call(el, opt.value);
  opt.selected = true;
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
  return { ok: true, value: opt.value };`

// script 组装带参数的自执行脚本
func script(name, body string, args map[string]string) string {
	data, err := json.Marshal(args)
	if err != nil {
		// map[string]string 不会编码失败
		panic(err)
	}
	return fmt.Sprintf("/*%s*/((args) => {\n  %s\n})(%s)", name, body, data)
}

func snapshotScript(id string) string {
	return script(scriptSnapshot, snapshotBody, map[string]string{"id": id})
}

func scrollScript(id string) string {
	return script(scriptScroll, scrollBody, map[string]string{"id": id})
}

func selectScript(id, value string) string {
	return script(scriptSelect, selectBody, map[string]string{"id": id, "value": value})
}

// parseScript 拆出脚本名与参数，供测试替身使用
func parseScript(expr string) (name string, args gjson.Result) {
	if !strings.HasPrefix(expr, "/*") {
		return "", gjson.Result{}
	}
	end := strings.Index(expr, "*/")
	if end < 0 {
		return "", gjson.Result{}
	}
	name = expr[2:end]
	if i := strings.LastIndex(expr, ")({"); i >= 0 {
		args = gjson.Parse(strings.TrimSuffix(expr[i+2:], ")"))
	}
	return name, args
}

// OptionState select 元素的选项
type OptionState struct {
	Value    string
	Text     string
	Selected bool
}

// ElementState 某一时刻元素的观察结果
type ElementState struct {
	Exists   bool
	Tag      string
	Text     string
	Attrs    map[string]string
	Disabled bool
	Hidden   bool
	Width    float64
	Height   float64
	X        float64
	Y        float64
	Value    string
	HasValue bool
	Options  []OptionState
}

// Visible 元素存在、有非零渲染尺寸且未被显式隐藏
func (s ElementState) Visible() bool {
	return s.Exists && !s.Hidden && s.Width > 0 && s.Height > 0
}

// Attr 返回属性值
func (s ElementState) Attr(name string) (string, bool) {
	v, ok := s.Attrs[name]
	return v, ok
}

func parseState(raw []byte) (ElementState, error) {
	if !gjson.ValidBytes(raw) {
		return ElementState{}, fmt.Errorf("invalid snapshot %q", string(raw))
	}
	res := gjson.ParseBytes(raw)
	st := ElementState{
		Exists:   res.Get("exists").Bool(),
		Tag:      res.Get("tag").String(),
		Text:     res.Get("text").String(),
		Disabled: res.Get("disabled").Bool(),
		Hidden:   res.Get("hidden").Bool(),
		Width:    res.Get("width").Float(),
		Height:   res.Get("height").Float(),
		X:        res.Get("x").Float(),
		Y:        res.Get("y").Float(),
		Attrs:    map[string]string{},
	}
	if v := res.Get("value"); v.Exists() {
		st.Value = v.String()
		st.HasValue = true
	}
	res.Get("attrs").ForEach(func(k, v gjson.Result) bool {
		st.Attrs[k.String()] = v.String()
		return true
	})
	for _, o := range res.Get("options").Array() {
		st.Options = append(st.Options, OptionState{
			Value:    o.Get("value").String(),
			Text:     o.Get("text").String(),
			Selected: o.Get("selected").Bool(),
		})
	}
	return st, nil
}
