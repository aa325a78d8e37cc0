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
	"github.com/sirupsen/logrus"

	"github.com/ZaparooProject/go-meshbridge/internal/logging"
)

// SetDebugEnabled enables or disables debug output from all bridge packages.
func SetDebugEnabled(enabled bool) {
	logging.SetDebugEnabled(enabled)
}

// SetLogger routes bridge log output through l.
func SetLogger(l *logrus.Logger) {
	logging.SetLogger(l)
}

func debugf(format string, args ...any) {
	logging.Debugf(format, args...)
}

func logger() *logrus.Logger {
	return logging.Logger()
}
