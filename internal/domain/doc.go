// Package domain models multi-source climate hazard risk data.
//
// # Data Sources
//
// Risk readings come from independent external providers, each with its own
// native score scale:
//
//	gov_index:    government national risk index; percentile ratings 0–100
//	              per hazard type for a census-tract-sized area.
//	commercial_a: commercial property-risk API; 1–10 factor scores per hazard.
//	hydromet:     hydrological monitoring network; gauge saturation ratios
//	              0.0–1.0, flood hazard only.
//
// Provider scales are reconciled onto a common 0–100 scale by the normalize
// package; this package only defines the shapes that flow between components.
//
// # Risk Levels
//
// Combined scores map to a four-level scale with inclusive lower bounds:
//
//	<40 low | 40–59 moderate | 60–79 high | ≥80 very_high
//
// # Error Taxonomy
//
// Provider failures are typed by [ErrorKind] so callers can tell transient
// faults (network, 5xx, remote throttling) from terminal ones (bad
// credentials, malformed parameters). A provider that answers successfully
// but has nothing for the location reports [KindNoData]: that is "no
// contribution", not "failure", and the assessment manifest keeps the two
// apart.
//
// # Scores vs. Absence
//
// Zero is a valid risk score. Absence of data is expressed with [ErrNoData],
// never with a zero-valued assessment.
package domain
