package restapi

import (
	"aoai-simulated-api/internal/sim"
)

// ResponseSource produces the simulated response for a request:
// the generator manager in generate mode, the record/replay handler
// otherwise.
type ResponseSource interface {
	HandleRequest(rctx *sim.RequestContext) (*sim.Response, error)
}

// RecordingSaver flushes in-memory recordings to disk.
type RecordingSaver interface {
	SaveRecordings() error
}
