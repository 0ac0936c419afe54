package internal

import "expvar"

var (
	requestsTotal  = expvar.NewMap("hookrelay_requests_total")
	parseErrors    = expvar.NewMap("hookrelay_parse_errors_total")
	ignoredEvents  = expvar.NewMap("hookrelay_ignored_events_total")
	dispatchTotal  = expvar.NewMap("hookrelay_dispatches_total")
	dispatchErrors = expvar.NewMap("hookrelay_dispatch_errors_total")
)

func IncRequest(event string) {
	requestsTotal.Add(event, 1)
}

func IncParseError(event string) {
	parseErrors.Add(event, 1)
}

func IncIgnored(event string) {
	ignoredEvents.Add(event, 1)
}

func IncDispatch(workflow string) {
	dispatchTotal.Add(workflow, 1)
}

func IncDispatchError(workflow string) {
	dispatchErrors.Add(workflow, 1)
}
