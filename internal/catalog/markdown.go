package catalog

import (
	"fmt"
	"strings"
)

var markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Escape neutralizes angle-bracket markup in s. It is applied to the whole
// rendered document, fenced code included.
func Escape(s string) string {
	return markupEscaper.Replace(s)
}

// FilterLabel reduces a gloss to a matchable completion label: only CJK
// unified ideographs (U+4E00..U+9FA5), lowercase ASCII letters and digits
// are kept. Uppercase placeholder names such as (DURATION) drop out.
func FilterLabel(gloss string) string {
	var b strings.Builder
	for _, r := range gloss {
		switch {
		case r >= 0x4e00 && r <= 0x9fa5,
			r >= 'a' && r <= 'z',
			r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Render returns the markdown documentation for the entry r refers to.
func Render(r Ref) string {
	switch r := r.(type) {
	case KeywordRef:
		return RenderKeyword(r.Entry)
	case FunctionRef:
		return RenderFunction(r.Entry)
	default:
		panic(fmt.Sprintf("catalog: unexpected ref %T", r))
	}
}

// RenderKeyword returns the markdown documentation for a keyword.
func RenderKeyword(k *Keyword) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### 关键字：`%s`\n", k.Name)
	b.WriteString(k.Description)
	b.WriteString("\n")
	if k.Example != "" {
		b.WriteString("#### 示例\n```scl\n")
		b.WriteString(k.Example)
		b.WriteString("\n```")
	} else {
		b.WriteString("*当前无示例。*")
	}
	b.WriteString("\n")
	writeGloss(&b, k.Gloss)
	return Escape(b.String())
}

// RenderFunction returns the markdown documentation for a builtin function.
func RenderFunction(f *Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### 内置函数：`%s`\n", f.Name)
	writeGloss(&b, f.Gloss)
	b.WriteString("\n")
	if len(f.Params) > 0 {
		b.WriteString("#### 参数\n调用参数列表顺序：")
		b.WriteString(codeList(f.Params))
		b.WriteString("。")
	} else {
		b.WriteString("*调用不需要传递参数。*")
	}
	b.WriteString("\n")
	if len(f.Extensions) > 0 {
		names := make([]string, len(f.Extensions))
		for i, ext := range f.Extensions {
			names[i] = string(ext)
		}
		b.WriteString("#### 扩展\n积木属于扩展：")
		b.WriteString(codeList(names))
		b.WriteString("。")
	} else {
		b.WriteString("*积木不属于任何扩展。*")
	}
	return Escape(b.String())
}

func writeGloss(b *strings.Builder, gloss string) {
	if gloss == "" {
		b.WriteString("*积木无对应的中文翻译。*")
		return
	}
	b.WriteString("#### 中文\n积木中文翻译：")
	b.WriteString(gloss)
	b.WriteString("。")
}

// codeList backtick-quotes each item and joins them with a full-width comma.
func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, "，")
}
