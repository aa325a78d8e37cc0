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

package meshbridge

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-meshbridge/internal/frame"
	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/packet"
)

// Bridge errors
var (
	ErrPacketTooLarge    = errors.New("packet exceeds max wire length")
	ErrNotReady          = errors.New("backhaul link not ready")
	ErrShortWrite        = errors.New("backhaul accepted a partial frame")
	ErrBridgeDisabled    = errors.New("bridge disabled")
	ErrChecksumMismatch  = errors.New("frame checksum mismatch")
	ErrDecodeFailed      = errors.New("frame payload is not a valid packet")
	ErrPoolExhausted     = errors.New("packet pool exhausted")
	ErrRadioNotSupported = errors.New("operation not supported by radio")
	ErrNilCollaborator   = errors.New("nil collaborator")
	ErrAlreadyBegun      = errors.New("bridge already begun")
)

// ErrorType classifies bridge errors.
type ErrorType int

const (
	// ErrorTypeUnknown is returned for nil or unclassified errors.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeFraming covers bad magic, oversized length fields and overflow.
	ErrorTypeFraming
	// ErrorTypeIntegrity is a checksum mismatch on a complete frame.
	ErrorTypeIntegrity
	// ErrorTypeOversize is a packet too large to frame.
	ErrorTypeOversize
	// ErrorTypeLink covers connection, discovery and write failures.
	ErrorTypeLink
	// ErrorTypeDecode is a validated frame whose payload is not a packet.
	ErrorTypeDecode
	// ErrorTypeConfig is an unusable configuration.
	ErrorTypeConfig
	// ErrorTypeResource is a bounded resource, such as the packet pool, running out.
	ErrorTypeResource
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeFraming:
		return "framing"
	case ErrorTypeIntegrity:
		return "integrity"
	case ErrorTypeOversize:
		return "oversize"
	case ErrorTypeLink:
		return "link"
	case ErrorTypeDecode:
		return "decode"
	case ErrorTypeConfig:
		return "config"
	case ErrorTypeResource:
		return "resource"
	default:
		return "unknown"
	}
}

// BridgeError carries the operation and port an error occurred on.
type BridgeError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *BridgeError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s on %s: %v", e.Type, e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Type, e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// NewBridgeError wraps err. Link errors are marked retryable because discovery
// continues on its own.
func NewBridgeError(op, port string, err error, errType ErrorType) *BridgeError {
	return &BridgeError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeLink,
	}
}

// newDropError wraps a frame the link failed to carry. The frame is gone, so
// the error is never retryable even though the link recovers.
func newDropError(op, port string, err error) *BridgeError {
	be := NewBridgeError(op, port, err, ErrorTypeLink)
	be.Retryable = false
	return be
}

// IsRetryable reports whether the condition behind err clears by itself.
// Only link lifecycle failures do; a dropped frame never does.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return errors.Is(err, link.ErrDiscoveryFailed) || errors.Is(err, link.ErrRadioInitFailed)
}

// GetErrorType classifies err.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var be *BridgeError
	if errors.As(err, &be) {
		return be.Type
	}

	switch {
	case errors.Is(err, ErrChecksumMismatch):
		return ErrorTypeIntegrity
	case errors.Is(err, ErrPacketTooLarge), errors.Is(err, frame.ErrPayloadTooLarge):
		return ErrorTypeOversize
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrShortWrite),
		errors.Is(err, link.ErrDiscoveryFailed), errors.Is(err, link.ErrRadioInitFailed):
		return ErrorTypeLink
	case errors.Is(err, ErrDecodeFailed), errors.Is(err, packet.ErrTruncated),
		errors.Is(err, packet.ErrPathTooLong), errors.Is(err, packet.ErrPayloadTooLarge),
		errors.Is(err, packet.ErrEmpty):
		return ErrorTypeDecode
	case errors.Is(err, link.ErrInvalidRole), errors.Is(err, link.ErrInvalidAddress),
		errors.Is(err, link.ErrRoleNotSupported), errors.Is(err, ErrRadioNotSupported),
		errors.Is(err, ErrBridgeDisabled):
		return ErrorTypeConfig
	case errors.Is(err, ErrPoolExhausted):
		return ErrorTypeResource
	default:
		return ErrorTypeUnknown
	}
}
