// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import "time"

// SetClock replaces the token clock.
func (t *Tokens) SetClock(now func() time.Time) { t.now = now }
