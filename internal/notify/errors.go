// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"errors"
	"fmt"
)

// ErrNoWebhook is returned by commands that need a webhook URL when none is
// configured.
var ErrNoWebhook = errors.New("no webhook url configured")

// SinkDeliveryError reports a failed delivery to the sink. StatusCode is set
// when the sink answered with a non-success status; Cause is set for
// transport, encoding and rate limiter failures.
type SinkDeliveryError struct {
	StatusCode int
	Body       string
	Cause      error
}

func (e *SinkDeliveryError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("webhook returned status %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	if e.Cause != nil {
		return "webhook delivery failed: " + e.Cause.Error()
	}
	return "webhook delivery failed"
}

func (e *SinkDeliveryError) Unwrap() error {
	return e.Cause
}
