package logging

import (
	"go.uber.org/zap/zapcore"
)

// Strings is a loggable list of strings
type Strings []string

func (a Strings) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, s := range a {
		enc.AppendString(s)
	}
	return nil
}
