package server

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

// Messages used as error data when params have the wrong structure.
const (
	msgByName     = "Params must be passed by name."
	msgByPosition = "Params must be passed by position."
)

// bind maps params onto a new value of the method's params struct. The
// returned value is addressable; it is invalid for methods without params.
func (s *Server) bind(e *MethodEntry, params json.RawMessage) (reflect.Value, *protocol.Error) {
	byPosition := len(params) > 0 && params[0] == '['
	byName := len(params) > 0 && params[0] == '{'

	switch {
	case byPosition && e.ParamStructure == ParamsByName:
		return reflect.Value{}, protocol.NewInvalidParams(protocol.MsgInvalidParams).WithData(msgByName)
	case byName && e.ParamStructure == ParamsByPosition:
		return reflect.Value{}, protocol.NewInvalidParams(protocol.MsgInvalidParams).WithData(msgByPosition)
	}

	values := make(map[string]json.RawMessage, len(e.Params))
	switch {
	case byPosition:
		var list []json.RawMessage
		if err := json.Unmarshal(params, &list); err != nil {
			return reflect.Value{}, s.invalidParams(err)
		}
		if len(list) > len(e.Params) {
			return reflect.Value{}, s.invalidParams(fmt.Errorf("expected at most %d params, got %d", len(e.Params), len(list)))
		}
		for i, raw := range list {
			values[e.Params[i].Name] = raw
		}
	case byName:
		if err := json.Unmarshal(params, &values); err != nil {
			return reflect.Value{}, s.invalidParams(err)
		}
	}

	if e.paramsType == nil {
		return reflect.Value{}, nil
	}

	args := reflect.New(e.paramsType).Elem()
	for i := range e.Params {
		spec := &e.Params[i]
		raw, present := values[spec.Name]

		if !present {
			switch {
			case spec.AcceptsUndefined:
				continue
			case spec.HasDefault:
				raw = spec.Default
			case !spec.Required:
				continue
			default:
				return reflect.Value{}, s.invalidParams(fmt.Errorf("missing required param %q", spec.Name))
			}
		}

		v, err := s.adapter.Coerce(raw, spec.valueType, spec.validation)
		if err != nil {
			if s.debug {
				return reflect.Value{}, s.detail(protocol.NewInternalError(protocol.MsgInternalError), fmt.Errorf("param %q: %w", spec.Name, err), nil)
			}
			return reflect.Value{}, protocol.NewInvalidParams(protocol.MsgInvalidParams)
		}

		field := args.FieldByIndex(spec.field.Index)
		if spec.AcceptsUndefined {
			field.Addr().Interface().(optionalValue).define(v)
			continue
		}
		field.Set(v)
	}
	return args, nil
}

func (s *Server) invalidParams(cause error) *protocol.Error {
	return s.detail(protocol.NewInvalidParams(protocol.MsgInvalidParams), cause, nil)
}
