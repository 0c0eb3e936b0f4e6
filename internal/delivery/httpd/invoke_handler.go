package httpd

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tiza/library-service/internal/command"
)

// Invoke is the command bridge endpoint: the body is the flat argument object.
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "command")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, &command.Error{Code: command.CodeInvalidArgument, Message: "Invalid request body", Err: err})
		return
	}

	result, err := h.registry.Invoke(r.Context(), name, body)
	h.respond(w, result, err)
}

// alias exposes a command on a resource-style route. Arguments come from the
// JSON body, the query string and the {id} path parameter, in rising priority.
func (h *Handler) alias(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args := command.Args{}

		if r.Method != http.MethodGet && r.Body != nil {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
			if err != nil {
				writeError(w, &command.Error{Code: command.CodeInvalidArgument, Message: "Invalid request body", Err: err})
				return
			}
			if args, err = command.ParseArgs(body); err != nil {
				h.respond(w, nil, err)
				return
			}
		}

		if err := addQueryArgs(args, r.URL.Query()); err != nil {
			h.respond(w, nil, err)
			return
		}

		if id := chi.URLParam(r, "id"); id != "" {
			raw, _ := json.Marshal(id)
			args["id"] = raw
		}

		result, err := h.registry.InvokeArgs(r.Context(), name, args)
		h.respond(w, result, err)
	}
}

var (
	intParams  = map[string]bool{"page": true, "limit": true}
	boolParams = map[string]bool{"sort_desc": true}
)

func addQueryArgs(args command.Args, values url.Values) error {
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		name := command.SnakeCase(key)

		var v interface{}
		switch {
		case len(vals) > 1:
			v = vals
		case intParams[name]:
			n, err := strconv.Atoi(vals[0])
			if err != nil {
				return &command.Error{Code: command.CodeInvalidArgument, Message: name + " must be an integer", Err: err}
			}
			v = n
		case boolParams[name]:
			b, err := strconv.ParseBool(vals[0])
			if err != nil {
				return &command.Error{Code: command.CodeInvalidArgument, Message: name + " must be a boolean", Err: err}
			}
			v = b
		default:
			v = vals[0]
		}

		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		args[name] = raw
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, result interface{}, err error) {
	if err != nil {
		writeError(w, command.Classify(err))
		return
	}
	writeSuccess(w, result)
}
