// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cn105

import (
	"fmt"
	"strings"
	"time"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, FormatFrameType(p.Type(), p.Command()), p.Type(), p.Length())

	msg, err := Decode(p)
	if err != nil {
		return result + formatHex(p.Payload())
	}
	return result + formatMessage(msg)
}

// FormatFrame formats raw frame bytes, as delivered to packet observers
func FormatFrame(raw []byte, dir Direction, at time.Time) string {
	arrow := "<-"
	if dir == DirectionSent {
		arrow = "->"
	}
	timestamp := at.Format("15:04:05.000")

	packet, _, err := ParseFrame(raw)
	if err != nil {
		return fmt.Sprintf("[%s] %s %s\n%s", timestamp, arrow, err, formatHex(raw))
	}
	return fmt.Sprintf("[%s] %s %s (0x%02X) len=%d\n%s", timestamp, arrow,
		FormatFrameType(packet.Type(), packet.Command()), packet.Type(), packet.Length(), formatPayload(packet))
}

// FormatFrameType returns the human-readable name for a frame type and command
func FormatFrameType(frameType, command byte) string {
	switch frameType {
	case FrameConnectRequest:
		return "CONNECT"
	case FrameConnectAck:
		return "CONNECT_ACK"
	case FrameSetResponse:
		return "UPDATE_ACK"

	case FrameSetRequest:
		switch command {
		case SetSettings:
			return "SET_SETTINGS"
		case SetRemoteTemp:
			return "SET_REMOTE_TEMP"
		case SetFunctionsPart1:
			return "SET_FUNCTIONS_1"
		case SetFunctionsPart2:
			return "SET_FUNCTIONS_2"
		}
		return "SET_UNKNOWN"

	case FrameInfoRequest, FrameInfoResponse:
		suffix := "_REQUEST"
		if frameType == FrameInfoResponse {
			suffix = ""
		}
		switch command {
		case GetFunctionsPart1:
			return "FUNCTIONS_1" + suffix
		case GetFunctionsPart2:
			return "FUNCTIONS_2" + suffix
		}
		for t, code := range infoCodes {
			if code == command {
				return InfoType(t).String() + suffix
			}
		}
		return "INFO_UNKNOWN" + suffix

	default:
		return "UNKNOWN"
	}
}

func formatPayload(p *Packet) string {
	if p.Type() == FrameInfoResponse || p.Type() == FrameSetResponse || p.Type() == FrameConnectAck {
		if msg, err := Decode(p); err == nil {
			return formatMessage(msg)
		}
	}
	if p.Type() == FrameSetRequest && p.Command() == SetSettings {
		return formatSetSettings(p.Payload())
	}
	return formatHex(p.Payload())
}

func formatMessage(msg Message) string {
	switch m := msg.(type) {
	case *SettingsMessage:
		ext := ""
		if m.Extended {
			ext = " (half-degree)"
		}
		return fmt.Sprintf("  Settings: %s%s\n", m.Settings, ext)

	case *RoomTempMessage:
		return fmt.Sprintf("  Room: %.1f°C\n", m.RoomTemperature)

	case *TimersMessage:
		t := m.Timers
		return fmt.Sprintf("  Timers: %s, On: %d/%d min, Off: %d/%d min\n",
			t.Mode, t.OnMinutesRemaining, t.OnMinutesSet, t.OffMinutesRemaining, t.OffMinutesSet)

	case *StatusMessage:
		op := "No"
		if m.Operating {
			op = "Yes"
		}
		return fmt.Sprintf("  Operating: %s, Compressor: %d Hz\n", op, m.CompressorFrequency)

	case *FunctionsMessage:
		var codes []string
		for _, b := range m.Data {
			code := slotCode(b)
			if code >= MinFunctionCode && code <= MaxFunctionCode {
				codes = append(codes, fmt.Sprintf("%d=%d", code, slotValue(b)))
			}
		}
		return fmt.Sprintf("  Functions part %d: %s\n", m.Part, strings.Join(codes, " "))

	case *UpdateAck, *ConnectAck:
		return "  (no payload)\n"

	default:
		return formatHex(msg.Packet().Payload())
	}
}

func formatSetSettings(payload []byte) string {
	if len(payload) <= posTempExtended {
		return formatHex(payload)
	}
	var fields []string
	c1, c2 := payload[posControl1], payload[posControl2]
	if c1&ControlPower != 0 {
		fields = append(fields, "power="+PowerMap.Decode(payload[posPower]))
	}
	if c1&ControlMode != 0 {
		fields = append(fields, "mode="+ModeMap.Decode(payload[posMode]))
	}
	if c1&ControlTemp != 0 {
		if payload[posTempExtended] != 0 {
			fields = append(fields, fmt.Sprintf("temp=%.1f", halfDegrees(payload[posTempExtended])))
		} else {
			fields = append(fields, fmt.Sprintf("temp=%d", TempMap.Decode(payload[posTemp])))
		}
	}
	if c1&ControlFan != 0 {
		fields = append(fields, "fan="+FanMap.Decode(payload[posFan]))
	}
	if c1&ControlVane != 0 {
		fields = append(fields, "vane="+VaneMap.Decode(payload[posVane]))
	}
	if c2&ControlWideVane != 0 {
		fields = append(fields, "wideVane="+WideVaneMap.Decode(payload[posWideVane]))
	}
	if len(fields) == 0 {
		return "  (no changes)\n"
	}
	return "  Set: " + strings.Join(fields, " ") + "\n"
}

// formatHex renders a hex dump, 16 bytes per line
func formatHex(data []byte) string {
	if len(data) == 0 {
		return "  (no payload)\n"
	}
	var b strings.Builder
	b.WriteString("  Payload: ")
	for i, v := range data {
		if i > 0 && i%16 == 0 {
			b.WriteString("\n           ")
		}
		fmt.Fprintf(&b, "%02X ", v)
	}
	b.WriteString("\n")
	return b.String()
}
