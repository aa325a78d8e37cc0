// go-meshbridge
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-meshbridge.
//
// go-meshbridge is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-meshbridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-meshbridge; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.bug.st/serial"

	"github.com/ZaparooProject/go-meshbridge"
	"github.com/ZaparooProject/go-meshbridge/internal/frame"
	"github.com/ZaparooProject/go-meshbridge/internal/store"
	"github.com/ZaparooProject/go-meshbridge/packet"
)

var (
	sniffBaud int
	sniffDB   string
)

var sniffCmd = &cobra.Command{
	Use:   "sniff <port>",
	Short: "Decode backhaul frames on a serial port",
	Long: `Read a serial port and print every bridge frame found on it.

Frames that fail their checksum are shown with the calculated and received
values. Nothing is written to the port.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fail(sniffPort(cmd.Context(), args[0]))
	},
}

func init() {
	sniffCmd.Flags().IntVarP(&sniffBaud, "baud", "b", 115200, "line speed")
	sniffCmd.Flags().StringVar(&sniffDB, "db", "", "also record frames to this SQLite file")
}

// sniffer decodes a byte stream into frame events.
type sniffer struct {
	parser *frame.Parser
	emit   func(meshbridge.FrameEvent)
	now    func() time.Time
	port   string
}

func newSniffer(port string, emit func(meshbridge.FrameEvent)) *sniffer {
	return &sniffer{
		parser: frame.NewParser(),
		emit:   emit,
		now:    time.Now,
		port:   port,
	}
}

// feed parses data and emits one event per completed frame.
func (s *sniffer) feed(data []byte) {
	for _, b := range data {
		r := s.parser.Feed(b)
		if !r.Complete {
			continue
		}
		calc, recv := s.parser.LastChecksum()
		ev := meshbridge.FrameEvent{
			At:         s.now(),
			Port:       s.port,
			Direction:  meshbridge.DirectionRx,
			Calculated: calc,
			Received:   recv,
			OK:         r.OK,
		}
		if r.OK {
			ev.Payload = s.parser.Payload()
		}
		s.emit(ev)
	}
}

// run reads r until ctx is done or r fails. Read timeouts return (0, nil).
func (s *sniffer) run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			s.feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}

// formatFrame renders ev as "timestamp | len | hex" with a packet summary.
func formatFrame(ev meshbridge.FrameEvent) string {
	ts := ev.At.Format("15:04:05.000")
	if !ev.OK {
		return fmt.Sprintf("%s | checksum mismatch calc=%04X recv=%04X", ts, ev.Calculated, ev.Received)
	}
	line := fmt.Sprintf("%s | %3d | %s", ts, len(ev.Payload), hexGroups(ev.Payload))
	if summary := describePacket(ev.Payload); summary != "" {
		line += " | " + summary
	}
	return line
}

// hexGroups renders b as space separated upper-case hex bytes.
func hexGroups(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.ToUpper(hex.EncodeToString([]byte{v})))
	}
	return sb.String()
}

var payloadNames = map[packet.PayloadType]string{
	packet.PayloadReq:       "req",
	packet.PayloadResponse:  "response",
	packet.PayloadTextMsg:   "text",
	packet.PayloadAck:       "ack",
	packet.PayloadAdvert:    "advert",
	packet.PayloadGroupText: "group_text",
	packet.PayloadGroupData: "group_data",
	packet.PayloadAnonReq:   "anon_req",
	packet.PayloadPath:      "path",
	packet.PayloadTrace:     "trace",
	packet.PayloadMultipart: "multipart",
	packet.PayloadRawCustom: "raw",
}

var routeNames = map[packet.RouteType]string{
	packet.RouteTransportFlood:  "transport_flood",
	packet.RouteFlood:           "flood",
	packet.RouteDirect:          "direct",
	packet.RouteTransportDirect: "transport_direct",
}

// describePacket summarises payload as a mesh packet, or returns "" if it does
// not decode as one.
func describePacket(payload []byte) string {
	var p packet.Packet
	if err := p.ReadFrom(payload); err != nil {
		return ""
	}
	name, ok := payloadNames[p.PayloadType()]
	if !ok {
		name = fmt.Sprintf("type_%d", p.PayloadType())
	}
	return fmt.Sprintf("%s %s path=%d body=%d", routeNames[p.RouteType()], name, len(p.Path), len(p.Payload))
}

func sniffPort(ctx context.Context, port string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sp, err := serial.Open(port, &serial.Mode{
		BaudRate: sniffBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", port, err)
	}
	defer func() { _ = sp.Close() }()
	if err := sp.SetReadTimeout(100 * time.Millisecond); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}

	var frameLog *store.FrameLog
	if sniffDB != "" {
		db, err := store.Open(sniffDB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := store.Migrate(db); err != nil {
			return err
		}
		frameLog = store.NewFrameLog(db)
	}

	var total, failed int
	s := newSniffer(port, func(ev meshbridge.FrameEvent) {
		total++
		if ev.OK {
			pterm.Println(formatFrame(ev))
		} else {
			failed++
			pterm.Warning.Println(formatFrame(ev))
		}
		if frameLog != nil {
			if err := frameLog.Insert(ctx, ev); err != nil {
				pterm.Error.Println(err)
			}
		}
	})

	ctx, stop := signalContext(ctx)
	defer stop()

	pterm.Info.Printfln("sniffing %s at %d baud, Ctrl-C to stop", port, sniffBaud)
	err = s.run(ctx, sp)
	pterm.Info.Printfln("%d frames, %d checksum failures", total, failed)
	return err
}
