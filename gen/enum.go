package gen

import (
	"strings"
)

// writeEnums emits frozen enum objects. Numeric enums carry a reverse lookup
// from discriminant to variant name; string enums get an ordered value table.
// Both kinds get a checked __into converter the wrappers call when
// marshalling, so out-of-domain values fail before they reach the guest.
func (g *Generator) writeEnums(w *writer) error {
	for _, e := range g.plan.Program.Enums {
		if e.IsString() {
			quoted := make([]string, len(e.Values))
			for i, v := range e.Values {
				quoted[i] = "'" + v + "'"
			}
			w.line("const __%sValues = [%s];", e.Name, strings.Join(quoted, ", "))
			w.line("")
			w.line("export const %s = Object.freeze({", e.Name)
			w.in()
			for _, v := range e.Values {
				w.line("%s: '%s',", jsIdent(v), v)
			}
			w.out()
			w.line("});")
			w.line("")
			w.line("function __into%s(v) {", e.Name)
			w.line("  const idx = __%sValues.indexOf(v);", e.Name)
			w.line("  if (idx === -1) {")
			w.line("    throw new TypeError(`${v} is not a valid %s`);", e.Name)
			w.line("  }")
			w.line("  return idx;")
			w.line("}")
			w.line("")
			continue
		}

		w.line("export const %s = Object.freeze({", e.Name)
		w.in()
		for _, v := range e.Variants {
			w.line("%s: %d, %d: '%s',", v.Name, v.Value, v.Value, v.Name)
		}
		w.out()
		w.line("});")
		w.line("")
		w.line("function __into%s(v) {", e.Name)
		w.line("  if (typeof %s[v] !== 'string') {", e.Name)
		w.line("    throw new TypeError(`${v} is not a valid %s`);", e.Name)
		w.line("  }")
		w.line("  return v;")
		w.line("}")
		w.line("")
	}
	return nil
}
