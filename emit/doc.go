// Package emit assembles the generated glue into a loadable JS module for a
// concrete target environment. The marshalling body is identical across
// targets; only the loader scaffolding around instantiation differs.
package emit
