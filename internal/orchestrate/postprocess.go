package orchestrate

import (
	"log/slog"
	"sort"

	"github.com/coachpraktijk/invoice-agents/internal/model"
)

// drainZeroHours moves cases with zero or absent hours to the no-activity
// list. Active rows keep their order; the no-activity list comes back sorted
// and duplicate free.
func drainZeroHours(res model.LineItemsResult) model.LineItemsResult {
	active := make([]model.ClientCase, 0, len(res.ClientCases))
	noActivity := make(map[string]struct{}, len(res.ClientCasesNoActivity))
	for _, code := range res.ClientCasesNoActivity {
		noActivity[code] = struct{}{}
	}

	for _, c := range res.ClientCases {
		if c.DurationHours == nil || *c.DurationHours == 0 {
			if c.ValidatedClientCaseNumber != "" {
				noActivity[c.ValidatedClientCaseNumber] = struct{}{}
			}
			continue
		}
		active = append(active, c)
	}

	res.ClientCases = active
	res.ClientCasesNoActivity = sortedKeys(noActivity)
	return res
}

// applyCorrections swaps raw codes for their registry forms using the
// correction map built during pre-processing. On a swap the original glyphs
// are preserved in rawClientCaseNumber for audit.
func applyCorrections(res *model.InvoiceResult, corrections map[string]string, logger *slog.Logger) {
	for i := range res.ClientCases {
		raw := res.ClientCases[i].ValidatedClientCaseNumber
		corrected, ok := corrections[raw]
		if !ok || raw == corrected {
			continue
		}
		logger.Info("orchestrate.correction.applied", "raw", raw, "corrected", corrected)
		res.ClientCases[i].RawClientCaseNumber = &raw
		res.ClientCases[i].ValidatedClientCaseNumber = corrected
	}

	fixed := make(map[string]struct{}, len(res.ClientCasesNoActivity))
	for _, code := range res.ClientCasesNoActivity {
		if corrected, ok := corrections[code]; ok {
			code = corrected
		}
		fixed[code] = struct{}{}
	}
	res.ClientCasesNoActivity = sortedKeys(fixed)
}

// enforceAllowList drops every case, active or not, whose validated code is
// outside the per-invoice allow-list. Each drop is logged; this is the last
// line of defence against hallucinated codes.
func enforceAllowList(res *model.InvoiceResult, allowedValid []string, logger *slog.Logger) {
	allowed := make(map[string]struct{}, len(allowedValid))
	for _, code := range allowedValid {
		allowed[code] = struct{}{}
	}

	active := make([]model.ClientCase, 0, len(res.ClientCases))
	for _, c := range res.ClientCases {
		if _, ok := allowed[c.ValidatedClientCaseNumber]; ok {
			active = append(active, c)
			continue
		}
		logger.Warn("orchestrate.allowlist.dropped",
			"list", "clientCases",
			"code", c.ValidatedClientCaseNumber,
		)
	}

	kept := make(map[string]struct{}, len(res.ClientCasesNoActivity))
	for _, code := range res.ClientCasesNoActivity {
		if _, ok := allowed[code]; ok {
			kept[code] = struct{}{}
			continue
		}
		logger.Warn("orchestrate.allowlist.dropped",
			"list", "clientCasesNoActivity",
			"code", code,
		)
	}

	res.ClientCases = active
	res.ClientCasesNoActivity = sortedKeys(kept)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
