package mongoracle

import "sort"

// Warning is a single non-fatal diagnostic surfaced alongside a translation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CapabilityReport summarizes, per stage keyword, how well it translated:
// "FullSupport", "Emulated", "Partial", "ClientSideOnly", or "Unsupported".
// Expression operators are not listed. Overall rolls up to the worst label
// seen.
type CapabilityReport struct {
	ByOperator map[string]string `json:"by_operator"`
	Overall    string            `json:"overall"`
	ClientSide []string          `json:"client_side,omitempty"`
}

// capabilityRank orders labels from best to worst for the Overall rollup.
var capabilityRank = map[string]int{
	"FullSupport":    0,
	"Emulated":       1,
	"Partial":        2,
	"ClientSideOnly": 3,
	"Unsupported":    4,
}

func newCapabilityReport(caps map[string]string) CapabilityReport {
	report := CapabilityReport{ByOperator: make(map[string]string, len(caps)), Overall: "FullSupport"}
	worst := 0
	for name, label := range caps {
		report.ByOperator[name] = label
		if rank, ok := capabilityRank[label]; ok && rank > worst {
			worst = rank
		}
		if label == "ClientSideOnly" {
			report.ClientSide = append(report.ClientSide, name)
		}
	}
	sort.Strings(report.ClientSide)
	for label, rank := range capabilityRank {
		if rank == worst {
			report.Overall = label
			break
		}
	}
	return report
}
