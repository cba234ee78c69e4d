package runner

import (
	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

// AggregateStatus applies the error-share policy to a list of call results:
//
//	FAILED  every call has status >= 400 (including the empty list)
//	PARTIAL some, but not all, calls have status >= 400
//	SUCCESS no call has status >= 400
//
// No status code is special. A single 401 among successful calls yields
// PARTIAL, not FAILED.
func AggregateStatus(calls []*model.CallResult) model.RunStatus {
	failed := 0
	for _, c := range calls {
		if c.Failed() {
			failed++
		}
	}

	switch {
	case len(calls) == 0 || failed == len(calls):
		return model.StatusFailed
	case failed > 0:
		return model.StatusPartial
	default:
		return model.StatusSuccess
	}
}
