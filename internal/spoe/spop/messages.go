package spop

import "fmt"

// decodeMessages parses a NOTIFY body: varint message count, then that
// many messages, each [name string][varint arg count][args].
func decodeMessages(d *decoder) ([]Message, error) {
	count, err := d.readVarint()
	if err != nil {
		return nil, fmt.Errorf("spop: decoding message count: %w", err)
	}
	msgs := make([]Message, 0, count)
	for i := uint64(0); i < count; i++ {
		name, err := d.readString()
		if err != nil {
			return nil, fmt.Errorf("spop: decoding message name: %w", err)
		}
		argCount, err := d.readVarint()
		if err != nil {
			return nil, fmt.Errorf("spop: decoding arg count for %q: %w", name, err)
		}
		args := make([]Arg, 0, argCount)
		for j := uint64(0); j < argCount; j++ {
			argName, err := d.readString()
			if err != nil {
				return nil, fmt.Errorf("spop: decoding arg name for %q: %w", name, err)
			}
			v, err := d.readValue()
			if err != nil {
				return nil, fmt.Errorf("spop: decoding value of %q.%q: %w", name, argName, err)
			}
			args = append(args, Arg{Name: argName, Value: v})
		}
		msgs = append(msgs, Message{Name: name, Args: args})
	}
	return msgs, nil
}

func encodeMessages(e *encoder, msgs []Message) {
	e.writeVarint(uint64(len(msgs)))
	for _, m := range msgs {
		e.writeString(m.Name)
		e.writeVarint(uint64(len(m.Args)))
		for _, a := range m.Args {
			e.writeString(a.Name)
			e.writeValue(a.Value)
		}
	}
}

// decodeActions parses an ACK body: varint action count, then that
// many actions tagged 0x01 SET-VAR or 0x02 UNSET-VAR.
func decodeActions(d *decoder) ([]Action, error) {
	count, err := d.readVarint()
	if err != nil {
		return nil, fmt.Errorf("spop: decoding action count: %w", err)
	}
	actions := make([]Action, 0, count)
	for i := uint64(0); i < count; i++ {
		tag, err := d.readByte()
		if err != nil {
			return nil, fmt.Errorf("spop: decoding action tag: %w", err)
		}
		scopeByte, err := d.readByte()
		if err != nil {
			return nil, fmt.Errorf("spop: decoding action scope: %w", err)
		}
		name, err := d.readString()
		if err != nil {
			return nil, fmt.Errorf("spop: decoding action name: %w", err)
		}
		switch actionKind(tag) {
		case actionSetVar:
			v, err := d.readValue()
			if err != nil {
				return nil, fmt.Errorf("spop: decoding SET-VAR value for %q: %w", name, err)
			}
			actions = append(actions, SetVar(Scope(scopeByte), name, v))
		case actionUnsetVar:
			actions = append(actions, UnsetVar(Scope(scopeByte), name))
		default:
			return nil, fmt.Errorf("spop: unknown action tag %d", tag)
		}
	}
	return actions, nil
}

func encodeActions(e *encoder, actions []Action) {
	e.writeVarint(uint64(len(actions)))
	for _, a := range actions {
		e.writeByte(byte(a.kind))
		e.writeByte(byte(a.Scope))
		e.writeString(a.Name)
		if a.kind == actionSetVar {
			e.writeValue(a.Value)
		}
	}
}
