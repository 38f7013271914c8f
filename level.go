// Copyright 2022 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package etw

import "fmt"

// Level is the severity of an event. Lower values are more severe; a
// session enabled at a level receives every event at that level or below.
type Level uint8

const (
	LevelAlways Level = iota
	LevelCritical
	LevelError
	LevelWarning
	LevelInfo
	LevelVerbose
)

func (l Level) String() string {
	switch l {
	case LevelAlways:
		return "Always"
	case LevelCritical:
		return "Critical"
	case LevelError:
		return "Error"
	case LevelWarning:
		return "Warning"
	case LevelInfo:
		return "Info"
	case LevelVerbose:
		return "Verbose"
	}
	return fmt.Sprintf("Level(%d)", uint8(l))
}

// Opcode marks the role of an event within an activity.
type Opcode uint8

const (
	OpcodeInfo Opcode = iota
	OpcodeStart
	OpcodeStop
	OpcodeDCStart
	OpcodeDCStop
	OpcodeExtension
	OpcodeReply
	OpcodeResume
	OpcodeSuspend
	OpcodeSend
	OpcodeReceive Opcode = 240
)

// Channel is the event log channel of an event.
type Channel uint8

// ChannelTraceLogging is the channel of self-describing events. Older
// versions of Windows drop such events on any other channel.
const ChannelTraceLogging Channel = 11

// ProviderState is the kind of notification a Backend delivers to an
// EnableCallback.
type ProviderState uint32

const (
	ProviderStateDisable ProviderState = iota
	ProviderStateEnable
	ProviderStateCaptureState
)

// EventDescriptor has the layout of the EVENT_DESCRIPTOR structure passed
// with every write.
type EventDescriptor struct {
	ID      uint16
	Version uint8
	Channel Channel
	Level   Level
	Opcode  Opcode
	Task    uint16
	Keyword uint64
}
