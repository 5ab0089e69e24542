package document

import (
	"strconv"
	"strings"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the five markup-significant characters with entities.
func Escape(s string) string { return escaper.Replace(s) }

// builder writes one element per line, indented two spaces per level.
type builder struct {
	sb    strings.Builder
	depth int
}

func (b *builder) line(s string) {
	for range b.depth {
		b.sb.WriteString("  ")
	}
	b.sb.WriteString(s)
	b.sb.WriteByte('\n')
}

func (b *builder) blank() { b.sb.WriteByte('\n') }

func (b *builder) open(name string) {
	b.line("<" + name + ">")
	b.depth++
}

func (b *builder) close(name string) {
	b.depth--
	b.line("</" + name + ">")
}

// section writes name as an empty container when fn adds nothing.
func (b *builder) section(name string, n int, fn func()) {
	if n == 0 {
		b.line("<" + name + "></" + name + ">")
		return
	}
	b.open(name)
	fn()
	b.close(name)
}

func (b *builder) field(name, value string) {
	b.line("<" + name + ">" + Escape(value) + "</" + name + ">")
}

func (b *builder) optString(name string, v *string) {
	if v == nil {
		b.field(name, "")
		return
	}
	b.field(name, *v)
}

func (b *builder) optInt(name string, v *int64) {
	if v == nil {
		b.field(name, "")
		return
	}
	b.field(name, strconv.FormatInt(*v, 10))
}

func (b *builder) optBool(name string, v *bool) {
	if v == nil {
		b.field(name, "")
		return
	}
	b.field(name, strconv.FormatBool(*v))
}

func (b *builder) String() string { return b.sb.String() }
