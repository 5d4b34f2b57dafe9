// Package metrics holds the Prometheus collectors exported by the binaries.
// Every constructor tolerates a nil registerer and every recorder tolerates a
// nil receiver, so services can run without metrics wired.
package metrics

const namespace = "orderflow"

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
