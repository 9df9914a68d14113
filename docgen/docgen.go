// Package docgen renders a chi Module's exported data types and node types
// as sanitized HTML documentation, the same markdown-then-sanitize pipeline
// the teacher's showcase tooling used for rendering agent run output:
// gomarkdown builds the HTML tree, bluemonday's UGC policy strips anything
// an untrusted module description could smuggle in before the result is
// safe to embed in a generated docs site.
package docgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/chigraph/chi"
)

// Render produces sanitized HTML documentation for every type and node type
// a module exports, in a single pass: a Markdown document is built up in
// memory, converted to HTML, then run through bluemonday's UGC policy.
func Render(mod chi.Module) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", mod.FullName())

	if deps := mod.Dependencies(); len(deps) > 0 {
		sorted := append([]string{}, deps...)
		sort.Strings(sorted)
		b.WriteString("**Dependencies:** ")
		b.WriteString(strings.Join(sorted, ", "))
		b.WriteString("\n\n")
	}

	renderTypes(&b, mod)
	renderNodeTypes(&b, mod)

	doc := b.String()

	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags,
	})

	rendered := markdown.ToHTML([]byte(doc), p, renderer)

	policy := bluemonday.UGCPolicy()
	sanitized := policy.SanitizeBytes(rendered)
	return string(sanitized), nil
}

func renderTypes(b *strings.Builder, mod chi.Module) {
	names := append([]string{}, mod.TypeNames()...)
	if len(names) == 0 {
		return
	}
	sort.Strings(names)

	b.WriteString("## Types\n\n")
	for _, name := range names {
		t, ok := mod.TypeFromName(name)
		if !ok {
			continue
		}
		fmt.Fprintf(b, "- `%s`\n", t.QualifiedName())
	}
	b.WriteString("\n")
}

func renderNodeTypes(b *strings.Builder, mod chi.Module) {
	names := append([]string{}, mod.NodeTypeNames()...)
	if len(names) == 0 {
		return
	}
	sort.Strings(names)

	b.WriteString("## Node Types\n\n")
	for _, name := range names {
		nt, ok := mod.NodeTypeFromName(name)
		if !ok {
			continue
		}
		renderNodeType(b, nt)
	}
}

func renderNodeType(b *strings.Builder, nt chi.NodeType) {
	fmt.Fprintf(b, "### %s\n\n", nt.Name())
	if desc := nt.Description(); desc != "" {
		fmt.Fprintf(b, "%s\n\n", desc)
	}
	if nt.Pure() {
		b.WriteString("_Pure node._\n\n")
	}

	if ins := nt.DataInputs(); len(ins) > 0 {
		b.WriteString("Data inputs:\n\n")
		for _, in := range ins {
			fmt.Fprintf(b, "- %s\n", in)
		}
		b.WriteString("\n")
	}
	if outs := nt.DataOutputs(); len(outs) > 0 {
		b.WriteString("Data outputs:\n\n")
		for _, out := range outs {
			fmt.Fprintf(b, "- %s\n", out)
		}
		b.WriteString("\n")
	}
	if ins := nt.ExecInputs(); len(ins) > 0 {
		fmt.Fprintf(b, "Exec inputs: %s\n\n", strings.Join(ins, ", "))
	}
	if outs := nt.ExecOutputs(); len(outs) > 0 {
		fmt.Fprintf(b, "Exec outputs: %s\n\n", strings.Join(outs, ", "))
	}
}
