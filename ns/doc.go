// Package ns provides the identifier namespace shared by every layer of a
// dataflow topology.
//
// Three name types are defined:
//
//   - Ident: a single name made of ASCII letters, digits, '-' and '_'.
//     Processors are named by Ident in one flat namespace.
//   - Key: a non-empty '/'-joined sequence of Ident, e.g. "outer/inner/frames".
//     Exchanges and connections are named by Key once modules are flattened.
//   - Dir: a possibly empty sequence of Ident naming the point where a module
//     file was mounted. The empty Dir is the root.
//
// All three types are comparable values and can be used directly as map
// keys. They implement encoding.TextMarshaler and encoding.TextUnmarshaler,
// so they decode from JSON strings, JSON object keys and YAML scalars with
// validation applied.
//
// # Notation
//
// The textual form is bit-exact: identifiers match [A-Za-z0-9_-]+ and keys
// are joined by a single '/' with no leading, trailing or doubled slash.
// Parsing and rendering round-trip:
//
//	key, _ := ns.ParseKey("outer/myproc")
//	key.String() // "outer/myproc"
package ns
