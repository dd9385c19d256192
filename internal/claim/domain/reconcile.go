package domain

import "strings"

// ReconcileItems merges rows sharing an item code into the first row seen
// with that code. Quantities and amounts are summed, approval numbers are
// comma joined in the order seen, encounter and document references are
// unioned, and the merged row is Submitted if any of its duplicates is.
// Rows folded into another are returned as removed; the input is not modified.
func ReconcileItems(items []ClaimItem) (merged, removed []ClaimItem) {
	index := make(map[string]int, len(items))
	encounters := make(map[string][]string)
	docnames := make(map[string][]string)

	for _, item := range items {
		i, seen := index[item.ItemCode]
		if !seen {
			index[item.ItemCode] = len(merged)
			merged = append(merged, item)
			encounters[item.ItemCode] = appendRefs(nil, item.PatientEncounter)
			docnames[item.ItemCode] = appendRefs(nil, item.RefDocname)
			continue
		}

		row := &merged[i]
		row.ItemQuantity += item.ItemQuantity
		row.AmountClaimed = RoundAmount(row.AmountClaimed + item.AmountClaimed)
		if item.ApprovalRefNo != "" {
			if row.ApprovalRefNo == "" {
				row.ApprovalRefNo = item.ApprovalRefNo
			} else {
				row.ApprovalRefNo += "," + item.ApprovalRefNo
			}
		}
		if item.Status == ItemSubmitted {
			row.Status = ItemSubmitted
		}
		encounters[item.ItemCode] = appendRefs(encounters[item.ItemCode], item.PatientEncounter)
		docnames[item.ItemCode] = appendRefs(docnames[item.ItemCode], item.RefDocname)
		removed = append(removed, item)
	}

	if len(removed) == 0 {
		return merged, nil
	}
	for i := range merged {
		code := merged[i].ItemCode
		merged[i].PatientEncounter = strings.Join(encounters[code], ",")
		merged[i].RefDocname = strings.Join(docnames[code], ",")
	}
	return merged, removed
}

// appendRefs adds the comma separated references in raw that refs does not
// hold yet.
func appendRefs(refs []string, raw string) []string {
	for _, ref := range strings.Split(raw, ",") {
		ref = strings.TrimSpace(ref)
		if ref == "" || containsString(refs, ref) {
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
