package engine

import (
	"bufio"
	"io"
	"iter"
	"strings"
	"time"
)

// readResult holds the result of a read operation for timeout handling.
type readResult struct {
	line string
	err  error
}

// ResponseReader reads engine output as a sequence of lines bounded by an
// idle timeout. gnubg responses carry no length prefix or terminator, so a
// response is considered complete once the stream has been quiet for the
// timeout duration.
//
// A single pump goroutine owns the underlying reads. A line whose read
// outlives one invocation's deadline is delivered to the next invocation,
// so the reader picks up wherever the stream left off. Not safe for
// concurrent use: the engine protocol is strictly request/response, and the
// caller must drain one response before issuing the next command.
type ResponseReader struct {
	timeout time.Duration
	results chan readResult
	closed  bool
}

// NewResponseReader starts a reader over r with the given idle timeout.
func NewResponseReader(r io.Reader, timeout time.Duration) *ResponseReader {
	rr := &ResponseReader{
		timeout: timeout,
		results: make(chan readResult, 1),
	}
	go rr.pump(bufio.NewReader(r))
	return rr
}

// pump reads lines until the stream closes. It blocks on the results
// channel rather than buffering, so no output is lost between invocations
// and the goroutine exits once EOF (or a read error) is delivered.
func (rr *ResponseReader) pump(br *bufio.Reader) {
	for {
		line, err := br.ReadString('\n')
		rr.results <- readResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// Closed reports whether the underlying stream has reached end-of-stream.
func (rr *ResponseReader) Closed() bool {
	return rr.closed
}

// Lines yields the lines of one engine response in emission order, with
// line separators stripped. The sequence ends when the idle timeout elapses
// with no new line, or immediately when the stream closes. A timeout is not
// an error; it is how response completion is detected.
func (rr *ResponseReader) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if rr.closed {
			return
		}

		timer := time.NewTimer(rr.timeout)
		defer timer.Stop()

		for {
			select {
			case res := <-rr.results:
				if res.err != nil {
					rr.closed = true
					// A final partial line with no trailing separator
					// still belongs to the response.
					if res.line != "" {
						yield(strings.TrimRight(res.line, "\r\n"))
					}
					return
				}
				if !yield(strings.TrimRight(res.line, "\r\n")) {
					return
				}
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(rr.timeout)
			case <-timer.C:
				return
			}
		}
	}
}
