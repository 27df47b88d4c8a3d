/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package latestonlychannel

// Wrap returns a channel which yields only the most recent value received on
// inputCh.  Values which arrive before the previous one was consumed replace
// it, so a slow reader never blocks the writer and never sees stale values.
// The output is closed once inputCh is closed, dropping any unsent value.
func Wrap[T any](inputCh <-chan T) <-chan T {
	outputCh := make(chan T)

	go func() {
		defer close(outputCh)

		var pending T
		// nil while there is nothing to send, which disables that case
		var sendCh chan<- T

		for {
			select {
			case value, ok := <-inputCh:
				if !ok {
					return
				}

				pending = value
				sendCh = outputCh
			case sendCh <- pending:
				sendCh = nil
			}
		}
	}()

	return outputCh
}
