package domain

// DeriveHistoryStatus maps a firing's aggregate counts to its outcome:
// partial_success iff 0 < successCount < totalTargeted and
// successCount/totalTargeted >= 0.5; sent iff the success rate is 1;
// failed otherwise (including totalTargeted == 0).
func DeriveHistoryStatus(successCount, totalTargeted int) HistoryStatus {
	if totalTargeted == 0 {
		return HistoryFailed
	}
	if successCount == totalTargeted {
		return HistorySent
	}
	if successCount > 0 && float64(successCount)/float64(totalTargeted) >= 0.5 {
		return HistoryPartialSuccess
	}
	return HistoryFailed
}
