package executor

import (
	"net/http"

	"github.com/R3E-Network/starlane/infrastructure/httputil"
	"github.com/R3E-Network/starlane/internal/point"
)

// RawCommandRequest is the JSON body accepted at the command endpoint: one or
// more semicolon-terminated statements.
type RawCommandRequest struct {
	Line string `json:"line"`
}

// HTTPHandler returns the command-endpoint handler: decode the raw command
// line, parse it into Commands, execute each in turn as the caller's agent
// identity, and write the last ReflectedCore as the response. Execution
// stops at the first command that errors, matching the original's
// fail-fast statement sequencing.
func (e *Executor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RawCommandRequest
		if !httputil.DecodeJSON(w, r, &req) {
			return
		}

		agent, err := point.New(httputil.GetUserID(r))
		if err != nil {
			agent = point.Point{}
		}

		cmds, err := ParseRawCommand(RawCommand{Line: req.Line})
		if err != nil {
			WriteReflectedCore(w, FromError(err))
			return
		}

		core := OkEmpty()
		for _, cmd := range cmds {
			core = e.Execute(r.Context(), cmd, agent)
			if core.Status >= http.StatusBadRequest {
				break
			}
		}
		WriteReflectedCore(w, core)
	}
}

// WriteReflectedCore renders a ReflectedCore as its JSON wire form.
func WriteReflectedCore(w http.ResponseWriter, core ReflectedCore) {
	httputil.WriteJSON(w, core.Status, core.Body)
}
