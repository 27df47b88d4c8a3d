package latestonlychannel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWrapBlocksWithoutInput(t *testing.T) {
	inputCh := make(chan int)
	outputCh := Wrap(inputCh)
	defer close(inputCh)

	select {
	case <-outputCh:
		t.Fatalf("should have blocked")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestWrapPassesSingleValues(t *testing.T) {
	inputCh := make(chan int)
	outputCh := Wrap(inputCh)

	inputCh <- 1
	assert.Equal(t, 1, <-outputCh)

	inputCh <- 2
	assert.Equal(t, 2, <-outputCh)

	close(inputCh)

	_, ok := <-outputCh
	assert.False(t, ok, "output channel was not closed")
}

func TestWrapKeepsOnlyLatest(t *testing.T) {
	inputCh := make(chan string)
	outputCh := Wrap(inputCh)

	inputCh <- "0.0.3"
	inputCh <- "0.0.4"
	inputCh <- "0.0.5"
	assert.Equal(t, "0.0.5", <-outputCh)

	inputCh <- "0.0.6"
	inputCh <- "0.0.7"
	assert.Equal(t, "0.0.7", <-outputCh)

	close(inputCh)

	_, ok := <-outputCh
	assert.False(t, ok, "output channel was not closed")
}
