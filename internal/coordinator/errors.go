// SPDX-License-Identifier: EPL-2.0

package coordinator

import (
	"errors"
	"fmt"

	"github.com/ik5/audplay/internal/ring"
)

var (
	// ErrClosed is returned by pushes after Close or CloseWrite.
	ErrClosed = errors.New("coordinator closed")

	// ErrChunkTooLarge indicates a chunk that exceeds the largest capacity the
	// buffer can ever have.
	ErrChunkTooLarge = fmt.Errorf("%w: chunk larger than buffer", ring.ErrOverflow)

	// ErrChunkDropped is returned when the drop-newest policy discarded the
	// chunk.
	ErrChunkDropped = fmt.Errorf("%w: chunk dropped", ring.ErrOverflow)

	// ErrInvalidConfig indicates an inconsistent Config.
	ErrInvalidConfig = errors.New("invalid coordinator config")

	errWaitTimeout = errors.New("throttle wait timed out")
)
